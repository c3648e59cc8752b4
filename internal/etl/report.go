package etl

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StageStatus is the recorded outcome of one pipeline stage.
type StageStatus struct {
	Stage Stage
	OK    bool
	Err   string
}

// RunReport is the user-visible outcome of one pipeline run.
type RunReport struct {
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time

	Validation ValidationReport

	DimensionsCreated map[string]int

	FactsInserted  int
	FactsUpdated   int
	FactsUnchanged int
	FailedBatches  int

	Stages      []StageStatus
	Status      Stage
	FailedStage Stage
	Cause       string
}

// Summary renders the report for terminal output.
func (r *RunReport) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Pipeline run: %s\n", r.Source)
	fmt.Fprintf(&b, "Status: %s", r.Status)
	if r.Status == StageFailed {
		fmt.Fprintf(&b, " (stage %s: %s)", r.FailedStage, r.Cause)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Rows read:     %d\n", r.Validation.RowsRead)
	fmt.Fprintf(&b, "Rows accepted: %d\n", r.Validation.RowsAccepted)
	fmt.Fprintf(&b, "Rows rejected: %d\n", r.Validation.RowsRejected)

	if len(r.Validation.Rejections) > 0 {
		b.WriteString("\nRejections:\n")
		for _, rej := range r.Validation.Rejections {
			fmt.Fprintf(&b, "  row %d: %s (%s)\n", rej.Line, rej.Code, rej.Field)
		}
	}

	if len(r.DimensionsCreated) > 0 {
		b.WriteString("\nDimension members created:\n")
		tables := make([]string, 0, len(r.DimensionsCreated))
		for table := range r.DimensionsCreated {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Fprintf(&b, "  %-12s %d\n", table, r.DimensionsCreated[table])
		}
	}

	b.WriteString("\nFact rows:\n")
	fmt.Fprintf(&b, "  inserted:  %d\n", r.FactsInserted)
	fmt.Fprintf(&b, "  updated:   %d\n", r.FactsUpdated)
	fmt.Fprintf(&b, "  unchanged: %d\n", r.FactsUnchanged)
	if r.FailedBatches > 0 {
		fmt.Fprintf(&b, "  failed batches: %d\n", r.FailedBatches)
	}

	b.WriteString("\nStages:\n")
	for _, s := range r.Stages {
		status := "ok"
		if !s.OK {
			status = "FAILED: " + s.Err
		}
		fmt.Fprintf(&b, "  %-20s %s\n", s.Stage, status)
	}

	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "\nElapsed: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}

	return b.String()
}
