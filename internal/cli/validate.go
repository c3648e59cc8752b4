package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/warehouse"
)

var validateSummary bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the loaded warehouse",
	Long: `Report per-table row counts and verify referential integrity: every
fact row must resolve to exactly one member in each dimension.

With --summary, also print sales aggregated by dimension attributes.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateSummary, "summary", false,
		"print the aggregated sales summary report")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	counts, err := warehouse.TableCounts(ctx, pool)
	if err != nil {
		return err
	}

	cmd.Println("Row counts:")
	for _, table := range warehouse.Tables {
		cmd.Printf("  %-14s %d\n", table, counts[table])
	}

	checks, err := warehouse.CheckIntegrity(ctx, pool)
	if err != nil {
		return err
	}

	cmd.Println("\nReferential integrity:")
	dangling := false
	for _, c := range checks {
		status := "ok"
		if c.Orphans > 0 {
			status = fmt.Sprintf("%d dangling fact rows", c.Orphans)
			dangling = true
		}
		cmd.Printf("  %-14s %s\n", c.Dimension, status)
	}

	if validateSummary {
		report, err := warehouse.SummaryReport(ctx, pool)
		if err != nil {
			return err
		}
		cmd.Println("\nSales summary:")
		for _, r := range report {
			cmd.Printf("  %-8s %-8s %-24s %s/%s %-12s  n=%d  sales=%.2f  rating=%.1f\n",
				r.CustomerType, r.Gender, r.ProductLine, r.Branch, r.City,
				r.PaymentMethod, r.TransactionCount, r.TotalSales, r.AvgRating)
		}
	}

	if dangling {
		return fmt.Errorf("referential integrity check failed")
	}
	return nil
}
