package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/logging"
	"github.com/dmtran/saleswh/internal/warehouse"
)

var setupDropExisting bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the warehouse schema",
	Long: `Create the star-schema warehouse tables and the reporting view in
the target database. Existing tables are left untouched unless
--drop-existing is given.

Example:
  saleswh setup --connection "postgres://user@localhost/warehouse"`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupDropExisting, "drop-existing", false,
		"drop existing warehouse tables before creating the schema")
}

func runSetup(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if setupDropExisting {
		if err := warehouse.DropSchema(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
		if err := db.DropMetadata(ctx, pool); err != nil {
			logging.Debug().Err(err).Msg("No metadata table to drop")
		}
	}

	if err := warehouse.CreateSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Msg("Warehouse setup complete")
	return nil
}
