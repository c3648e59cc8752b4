//go:build integration

package etl_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmtran/saleswh/internal/datagen"
	"github.com/dmtran/saleswh/internal/etl"
	"github.com/dmtran/saleswh/internal/testutil"
	"github.com/dmtran/saleswh/internal/warehouse"
)

func generateSource(t *testing.T, rows int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sales.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create source file: %v", err)
	}
	defer f.Close()

	if err := datagen.NewSalesGenerator(42).WriteCSV(f, rows); err != nil {
		t.Fatalf("Failed to generate source data: %v", err)
	}
	return path
}

func pipelineConfig(source string) etl.Config {
	return etl.Config{
		Source:      source,
		BatchSize:   100,
		LoadTimeout: 30 * time.Second,
		Quality:     etl.DefaultQualityBounds(),
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	baseConn := testutil.SkipIfNoPostgres(t)
	connStr := testutil.CreateTestDB(t, baseConn)
	pool := testutil.ConnectTestDB(t, connStr)
	ctx := context.Background()

	if err := warehouse.CreateSchema(ctx, pool); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	source := generateSource(t, 500)

	report, err := etl.NewPipeline(pool, pipelineConfig(source)).Run(ctx)
	if err != nil {
		t.Fatalf("First run failed: %v\n%s", err, report.Summary())
	}
	if report.Status != etl.StageDone {
		t.Fatalf("Expected DONE, got %s", report.Status)
	}
	if report.FactsInserted != 500 {
		t.Errorf("Expected 500 facts inserted, got %d", report.FactsInserted)
	}
	if report.Validation.RowsRejected != 0 {
		t.Errorf("Expected no rejections from generated data, got %d",
			report.Validation.RowsRejected)
	}

	counts, err := warehouse.TableCounts(ctx, pool)
	if err != nil {
		t.Fatalf("Failed to count tables: %v", err)
	}
	if counts["fact_sales"] != 500 {
		t.Errorf("Expected 500 fact rows, got %d", counts["fact_sales"])
	}
	if counts["dim_branch"] != 3 {
		t.Errorf("Expected 3 branch members, got %d", counts["dim_branch"])
	}
	if counts["dim_payment"] != 3 {
		t.Errorf("Expected 3 payment members, got %d", counts["dim_payment"])
	}

	checks, err := warehouse.CheckIntegrity(ctx, pool)
	if err != nil {
		t.Fatalf("Integrity check failed: %v", err)
	}
	for _, c := range checks {
		if c.Orphans != 0 {
			t.Errorf("Dimension %s has %d dangling fact rows", c.Dimension, c.Orphans)
		}
	}

	// Re-running over the same export must be a no-op.
	report2, err := etl.NewPipeline(pool, pipelineConfig(source)).Run(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v\n%s", err, report2.Summary())
	}
	if report2.FactsInserted != 0 || report2.FactsUpdated != 0 {
		t.Errorf("Expected an idempotent re-run, got %d inserted / %d updated",
			report2.FactsInserted, report2.FactsUpdated)
	}
	if report2.FactsUnchanged != 500 {
		t.Errorf("Expected 500 unchanged facts, got %d", report2.FactsUnchanged)
	}

	counts2, err := warehouse.TableCounts(ctx, pool)
	if err != nil {
		t.Fatalf("Failed to count tables after re-run: %v", err)
	}
	for table, n := range counts {
		if counts2[table] != n {
			t.Errorf("Table %s changed on re-run: %d -> %d", table, n, counts2[table])
		}
	}
}

func TestPipelineSummaryView(t *testing.T) {
	baseConn := testutil.SkipIfNoPostgres(t)
	connStr := testutil.CreateTestDB(t, baseConn)
	pool := testutil.ConnectTestDB(t, connStr)
	ctx := context.Background()

	if err := warehouse.CreateSchema(ctx, pool); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	source := generateSource(t, 200)
	if _, err := etl.NewPipeline(pool, pipelineConfig(source)).Run(ctx); err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	report, err := warehouse.SummaryReport(ctx, pool)
	if err != nil {
		t.Fatalf("Summary report failed: %v", err)
	}
	if len(report) == 0 {
		t.Fatal("Expected a non-empty summary report")
	}

	var total int64
	for _, r := range report {
		if r.TransactionCount < 1 {
			t.Errorf("Summary group with %d transactions", r.TransactionCount)
		}
		if r.TotalSales <= 0 {
			t.Errorf("Summary group with non-positive sales: %+v", r)
		}
		total += r.TransactionCount
	}
	if total != 200 {
		t.Errorf("Expected summary groups to cover 200 transactions, got %d", total)
	}
}

func TestPipelinePartialLoadAfterRejections(t *testing.T) {
	baseConn := testutil.SkipIfNoPostgres(t)
	connStr := testutil.CreateTestDB(t, baseConn)
	pool := testutil.ConnectTestDB(t, connStr)
	ctx := context.Background()

	if err := warehouse.CreateSchema(ctx, pool); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	// Two valid rows around one with an impossible rating.
	src := filepath.Join(t.TempDir(), "sales.csv")
	content := `Invoice ID,Branch,City,Customer type,Gender,Product line,Unit price,Quantity,Tax 5%,Sales,Date,Time,Payment,cogs,gross margin percentage,gross income,Rating
INV-1,A,Yangon,Member,Female,Health and beauty,74.69,7,26.1415,548.9715,2019-01-05,13:08,Ewallet,522.83,4.761904762,26.1415,9.1
INV-2,B,Mandalay,Normal,Male,Food and beverages,54.84,3,8.226,172.746,2019-03-08,10:29,Cash,164.52,4.761904762,8.226,99
INV-3,C,Naypyitaw,Normal,Male,Home and lifestyle,46.33,7,16.2155,340.5255,2019-03-03,13:23,Credit card,324.31,4.761904762,16.2155,7.4
`
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}

	report, err := etl.NewPipeline(pool, pipelineConfig(src)).Run(ctx)
	if err != nil {
		t.Fatalf("Pipeline run failed: %v\n%s", err, report.Summary())
	}

	if report.Validation.RowsRejected != 1 {
		t.Errorf("Expected 1 rejection, got %d", report.Validation.RowsRejected)
	}
	if report.FactsInserted != 2 {
		t.Errorf("Expected 2 facts inserted, got %d", report.FactsInserted)
	}

	counts, err := warehouse.TableCounts(ctx, pool)
	if err != nil {
		t.Fatalf("Failed to count tables: %v", err)
	}
	if counts["fact_sales"] != 2 {
		t.Errorf("Expected 2 fact rows, got %d", counts["fact_sales"])
	}
}
