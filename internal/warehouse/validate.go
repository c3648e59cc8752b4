package warehouse

import (
	"context"
	"fmt"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/logging"
)

// foreignKeys maps each fact FK column to its dimension table and key.
var foreignKeys = []struct {
	Table  string
	Key    string
	FactFK string
}{
	{"dim_customer", "customer_id", "customer_id"},
	{"dim_product", "product_id", "product_id"},
	{"dim_time", "time_id", "time_id"},
	{"dim_branch", "branch_id", "branch_id"},
	{"dim_payment", "payment_id", "payment_id"},
}

// TableCounts returns the row count of every warehouse table.
func TableCounts(ctx context.Context, conn db.DB) (map[string]int64, error) {
	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		var n int64
		err := conn.QueryRow(ctx, fmt.Sprintf(countSQL, table)).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// OrphanCheck reports fact rows whose FK resolves to no dimension member.
type OrphanCheck struct {
	Dimension string
	Orphans   int64
}

// CheckIntegrity verifies that every fact row resolves to exactly one
// member in each of the five dimensions.
func CheckIntegrity(ctx context.Context, conn db.DB) ([]OrphanCheck, error) {
	checks := make([]OrphanCheck, 0, len(foreignKeys))
	for _, fk := range foreignKeys {
		query := fmt.Sprintf(orphanCheckSQL, fk.Table, fk.FactFK, fk.Key, fk.Key)

		var orphans int64
		if err := conn.QueryRow(ctx, query).Scan(&orphans); err != nil {
			return nil, fmt.Errorf("integrity check against %s failed: %w", fk.Table, err)
		}
		if orphans > 0 {
			logging.Error().
				Str("dimension", fk.Table).
				Int64("orphans", orphans).
				Msg("Dangling fact foreign keys")
		}
		checks = append(checks, OrphanCheck{Dimension: fk.Table, Orphans: orphans})
	}
	return checks, nil
}

// SummaryRow is one line of the aggregated sales report.
type SummaryRow struct {
	CustomerType     string
	Gender           string
	ProductLine      string
	Branch           string
	City             string
	PaymentMethod    string
	TransactionCount int64
	TotalSales       float64
	AvgRating        float64
}

// SummaryReport aggregates loaded sales by dimension attributes,
// ordered by total sales descending.
func SummaryReport(ctx context.Context, conn db.DB) ([]SummaryRow, error) {
	rows, err := conn.Query(ctx, summaryReportSQL)
	if err != nil {
		return nil, fmt.Errorf("summary report query failed: %w", err)
	}
	defer rows.Close()

	var report []SummaryRow
	for rows.Next() {
		var r SummaryRow
		err := rows.Scan(&r.CustomerType, &r.Gender, &r.ProductLine,
			&r.Branch, &r.City, &r.PaymentMethod,
			&r.TransactionCount, &r.TotalSales, &r.AvgRating)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		report = append(report, r)
	}
	return report, rows.Err()
}
