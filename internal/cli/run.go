package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/etl"
	"github.com/dmtran/saleswh/internal/logging"
)

var (
	runSource    string
	runBatchSize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ETL pipeline against a sales CSV export",
	Long: `Extract a sales CSV export, transform it into the dimensional model
and load it into the warehouse. The load is idempotent: re-running over
the same export produces zero net change.

Rows failing validation are rejected individually and listed in the
final report; the remaining rows still load.

Example:
  saleswh run --source data/raw/SuperMarketAnalysis.csv`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "",
		"path to the sales CSV export")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0,
		"fact rows per transaction")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if runSource != "" {
		cfg.ETL.Source = runSource
	}
	if runBatchSize > 0 {
		cfg.ETL.BatchSize = runBatchSize
	}

	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	}()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	pipeline := etl.NewPipeline(pool, etl.Config{
		Source:      cfg.ETL.Source,
		BatchSize:   cfg.ETL.BatchSize,
		LoadTimeout: time.Duration(cfg.ETL.LoadTimeoutSeconds) * time.Second,
		Quality: etl.QualityBounds{
			RatingMin: cfg.Quality.RatingMin,
			RatingMax: cfg.Quality.RatingMax,
			MinSales:  cfg.Quality.MinSales,
			MaxSales:  cfg.Quality.MaxSales,
		},
	})

	report, runErr := pipeline.Run(ctx)
	cmd.Println(report.Summary())
	if runErr != nil {
		return fmt.Errorf("pipeline failed: %w", runErr)
	}

	loaded := report.FactsInserted + report.FactsUpdated + report.FactsUnchanged
	if err := db.SaveRunMetadata(ctx, pool, cfg.ETL.Source, loaded); err != nil {
		logging.Warn().Err(err).Msg("Failed to save run metadata")
	}

	return nil
}
