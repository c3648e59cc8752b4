package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/logging"
)

// Stage identifies a pipeline stage.
type Stage string

const (
	StageExtracting        Stage = "EXTRACTING"
	StageTransforming      Stage = "TRANSFORMING"
	StageLoadingDimensions Stage = "LOADING_DIMENSIONS"
	StageLoadingFacts      Stage = "LOADING_FACTS"
	StageDone              Stage = "DONE"
	StageFailed            Stage = "FAILED"
)

// Config holds the settings for one pipeline run.
type Config struct {
	// Source is the path to the sales CSV export.
	Source string

	// BatchSize is the number of fact rows per transaction.
	BatchSize int

	// LoadTimeout bounds each batch write.
	LoadTimeout time.Duration

	// Quality holds the transform-stage data-quality bounds.
	Quality QualityBounds
}

// Pipeline runs Extract -> Transform -> Load as one strictly ordered
// sequence. There is no retry across stages: a re-run is a whole new
// invocation relying on the loader's idempotent upserts.
type Pipeline struct {
	db  db.DB
	cfg Config
}

// NewPipeline creates a pipeline writing through conn.
func NewPipeline(conn db.DB, cfg Config) *Pipeline {
	return &Pipeline{db: conn, cfg: cfg}
}

// Run executes the pipeline. The returned report is always non-nil and
// records per-stage status; the error is non-nil whenever the run ends
// in the FAILED state.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		Source:    p.cfg.Source,
		StartedAt: time.Now(),
		Status:    StageExtracting,
	}

	fail := func(stage Stage, err error) (*RunReport, error) {
		report.Status = StageFailed
		report.FailedStage = stage
		report.Cause = err.Error()
		report.FinishedAt = time.Now()
		report.Stages = append(report.Stages, StageStatus{Stage: stage, OK: false, Err: err.Error()})
		logging.Error().Err(err).Str("stage", string(stage)).Msg("Pipeline failed")
		return report, fmt.Errorf("%s: %w", stage, err)
	}
	pass := func(stage Stage) {
		report.Stages = append(report.Stages, StageStatus{Stage: stage, OK: true})
	}

	// Extract
	logging.Info().Str("source", p.cfg.Source).Msg("Starting pipeline")
	rows, err := Extract(p.cfg.Source)
	if err != nil {
		return fail(StageExtracting, err)
	}
	pass(StageExtracting)

	// Transform
	report.Status = StageTransforming
	out := NewTransformer(p.cfg.Quality).Transform(rows)
	report.Validation = out.Report
	pass(StageTransforming)

	loader := NewLoader(p.db, p.cfg.BatchSize, p.cfg.LoadTimeout)

	// Load dimensions; all five commit before any fact row is written.
	report.Status = StageLoadingDimensions
	dims := loader.LoadDimensions(ctx, out)
	report.DimensionsCreated = dims.Created
	if !dims.OK() {
		report.FailedBatches = len(dims.Failed)
		return fail(StageLoadingDimensions,
			fmt.Errorf("%d dimension table(s) failed, first: %w", len(dims.Failed), dims.Failed[0]))
	}
	pass(StageLoadingDimensions)

	// Load facts
	report.Status = StageLoadingFacts
	facts, err := loader.LoadFacts(ctx, out, dims)
	if facts != nil {
		report.FactsInserted = facts.Inserted
		report.FactsUpdated = facts.Updated
		report.FactsUnchanged = facts.Unchanged
		report.FailedBatches = len(facts.Failed)
	}
	if err != nil {
		return fail(StageLoadingFacts, err)
	}
	if !facts.OK() {
		return fail(StageLoadingFacts,
			fmt.Errorf("%d fact batch(es) failed, first: %w", len(facts.Failed), facts.Failed[0]))
	}
	pass(StageLoadingFacts)

	report.Status = StageDone
	report.FinishedAt = time.Now()

	logging.Info().
		Int("accepted", report.Validation.RowsAccepted).
		Int("rejected", report.Validation.RowsRejected).
		Int("facts_inserted", report.FactsInserted).
		Int("facts_updated", report.FactsUpdated).
		Int("facts_unchanged", report.FactsUnchanged).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Pipeline complete")

	return report, nil
}
