package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmtran/saleswh/internal/datagen"
	"github.com/dmtran/saleswh/internal/logging"
)

var (
	datagenOut  string
	datagenRows int
	datagenSeed uint64
)

var datagenCmd = &cobra.Command{
	Use:   "datagen",
	Short: "Generate a sample sales CSV file",
	Long: `Generate a sample supermarket sales CSV with the fixed source schema,
useful for trying the pipeline without a real export.

Example:
  saleswh datagen --out sample.csv --rows 1000 --seed 42`,
	RunE: runDatagen,
}

func init() {
	datagenCmd.Flags().StringVar(&datagenOut, "out", "sample-sales.csv",
		"output file path")
	datagenCmd.Flags().IntVar(&datagenRows, "rows", 1000,
		"number of rows to generate")
	datagenCmd.Flags().Uint64Var(&datagenSeed, "seed", 0,
		"random seed (0 = non-deterministic)")
}

func runDatagen(cmd *cobra.Command, args []string) error {
	if datagenRows < 1 {
		return fmt.Errorf("rows must be at least 1")
	}

	f, err := os.Create(datagenOut)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	gen := datagen.NewSalesGenerator(datagenSeed)
	if err := gen.WriteCSV(f, datagenRows); err != nil {
		return fmt.Errorf("failed to generate data: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logging.Info().
		Str("path", datagenOut).
		Int("rows", datagenRows).
		Msg("Sample data generated")

	return nil
}
