package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/logging"
	"github.com/dmtran/saleswh/internal/warehouse"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export warehouse tables and the summary view to CSV files",
	Long: `Write every warehouse table and the sales summary view to CSV files,
one file per table, for consumption by BI tools that prefer flat files
over a live database connection.

Example:
  saleswh export --dir ./warehouse-export`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "",
		"directory to write export files to")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportDir != "" {
		cfg.Export.Dir = exportDir
	}

	if err := cfg.ValidateExport(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := warehouse.Export(ctx, pool, cfg.Export.Dir); err != nil {
		return err
	}

	logging.Info().Str("dir", cfg.Export.Dir).Msg("Warehouse export complete")
	return nil
}
