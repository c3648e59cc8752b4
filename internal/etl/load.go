package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/logging"
)

// Upsert statements resolve warehouse keys via the natural-key unique
// constraints: the no-op DO UPDATE makes ON CONFLICT return the
// existing row, and (xmax = 0) distinguishes a fresh insert from a
// conflict hit.
const (
	upsertCustomerSQL = `
        INSERT INTO dim_customer (customer_type, gender)
        VALUES ($1, $2)
        ON CONFLICT (customer_type, gender)
        DO UPDATE SET customer_type = EXCLUDED.customer_type
        RETURNING customer_id, (xmax = 0) AS inserted`

	upsertProductSQL = `
        INSERT INTO dim_product (product_line, unit_price)
        VALUES ($1, $2)
        ON CONFLICT (product_line, unit_price)
        DO UPDATE SET product_line = EXCLUDED.product_line
        RETURNING product_id, (xmax = 0) AS inserted`

	upsertTimeSQL = `
        INSERT INTO dim_time (sale_date, sale_time, year, month, day, quarter, weekday, is_weekend)
        VALUES ($1, $2::time, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (sale_date, sale_time)
        DO UPDATE SET year = EXCLUDED.year
        RETURNING time_id, (xmax = 0) AS inserted`

	upsertBranchSQL = `
        INSERT INTO dim_branch (branch, city)
        VALUES ($1, $2)
        ON CONFLICT (branch, city)
        DO UPDATE SET branch = EXCLUDED.branch
        RETURNING branch_id, (xmax = 0) AS inserted`

	upsertPaymentSQL = `
        INSERT INTO dim_payment (payment_method)
        VALUES ($1)
        ON CONFLICT (payment_method)
        DO UPDATE SET payment_method = EXCLUDED.payment_method
        RETURNING payment_id, (xmax = 0) AS inserted`

	upsertFactSQL = `
        INSERT INTO fact_sales (invoice_id, customer_id, product_id, time_id,
            branch_id, payment_id, quantity, tax_5_percent, sales, cogs,
            gross_margin_percentage, gross_income, rating)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (invoice_id) DO UPDATE SET
            customer_id = EXCLUDED.customer_id,
            product_id = EXCLUDED.product_id,
            time_id = EXCLUDED.time_id,
            branch_id = EXCLUDED.branch_id,
            payment_id = EXCLUDED.payment_id,
            quantity = EXCLUDED.quantity,
            tax_5_percent = EXCLUDED.tax_5_percent,
            sales = EXCLUDED.sales,
            cogs = EXCLUDED.cogs,
            gross_margin_percentage = EXCLUDED.gross_margin_percentage,
            gross_income = EXCLUDED.gross_income,
            rating = EXCLUDED.rating
        WHERE (fact_sales.customer_id, fact_sales.product_id, fact_sales.time_id,
               fact_sales.branch_id, fact_sales.payment_id, fact_sales.quantity,
               fact_sales.tax_5_percent, fact_sales.sales, fact_sales.cogs,
               fact_sales.gross_margin_percentage, fact_sales.gross_income,
               fact_sales.rating)
              IS DISTINCT FROM
              (EXCLUDED.customer_id, EXCLUDED.product_id, EXCLUDED.time_id,
               EXCLUDED.branch_id, EXCLUDED.payment_id, EXCLUDED.quantity,
               EXCLUDED.tax_5_percent, EXCLUDED.sales, EXCLUDED.cogs,
               EXCLUDED.gross_margin_percentage, EXCLUDED.gross_income,
               EXCLUDED.rating)
        RETURNING (xmax = 0) AS inserted`
)

// Loader persists transformer output into the warehouse. Dimension
// tables load before any fact row; repeated loads of the same output
// produce zero net change.
type Loader struct {
	db        db.DB
	batchSize int
	timeout   time.Duration
}

// NewLoader creates a loader writing through conn. batchSize bounds the
// rows per fact transaction; timeout bounds each transaction.
func NewLoader(conn db.DB, batchSize int, timeout time.Duration) *Loader {
	return &Loader{db: conn, batchSize: batchSize, timeout: timeout}
}

// DimensionResult holds the outcome of the dimension load: warehouse
// key mappings per table, members newly created per table, and any
// failed tables.
type DimensionResult struct {
	Created map[string]int
	Failed  []*LoadBatchError

	// keys maps table -> transformer surrogate key -> warehouse key.
	// Warehouse keys are authoritative; the transformer's in-memory
	// keys never reach the fact table.
	keys map[string]map[int64]int64
}

// OK reports whether every dimension table loaded successfully.
func (r *DimensionResult) OK() bool { return len(r.Failed) == 0 }

// FactResult holds the outcome of the fact load.
type FactResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	Failed    []*LoadBatchError
}

// OK reports whether every fact batch loaded successfully.
func (r *FactResult) OK() bool { return len(r.Failed) == 0 }

// LoadDimensions upserts all five dimension tables. The tables are
// disjoint, so they load concurrently; within one table members load
// serially in a single transaction, relying on the natural-key unique
// constraint rather than application locking. All tables complete
// (or fail) before this returns.
func (l *Loader) LoadDimensions(ctx context.Context, out *Output) *DimensionResult {
	res := &DimensionResult{
		Created: make(map[string]int, 5),
		keys:    make(map[string]map[int64]int64, 5),
	}

	jobs := []struct {
		table string
		load  func(context.Context) (map[int64]int64, int, error)
	}{
		{"dim_customer", func(ctx context.Context) (map[int64]int64, int, error) {
			return l.upsertDimension(ctx, "dim_customer", upsertCustomerSQL,
				len(out.Customers),
				func(i int) []any {
					m := out.Customers[i]
					return []any{m.CustomerType, m.Gender}
				},
				func(i int) int64 { return out.Customers[i].Key })
		}},
		{"dim_product", func(ctx context.Context) (map[int64]int64, int, error) {
			return l.upsertDimension(ctx, "dim_product", upsertProductSQL,
				len(out.Products),
				func(i int) []any {
					m := out.Products[i]
					return []any{m.ProductLine, m.UnitPrice}
				},
				func(i int) int64 { return out.Products[i].Key })
		}},
		{"dim_time", func(ctx context.Context) (map[int64]int64, int, error) {
			return l.upsertDimension(ctx, "dim_time", upsertTimeSQL,
				len(out.Times),
				func(i int) []any {
					m := out.Times[i]
					return []any{m.Date, m.TimeOfDay, m.Year, m.Month, m.Day,
						m.Quarter, m.Weekday, m.IsWeekend}
				},
				func(i int) int64 { return out.Times[i].Key })
		}},
		{"dim_branch", func(ctx context.Context) (map[int64]int64, int, error) {
			return l.upsertDimension(ctx, "dim_branch", upsertBranchSQL,
				len(out.Branches),
				func(i int) []any {
					m := out.Branches[i]
					return []any{m.Branch, m.City}
				},
				func(i int) int64 { return out.Branches[i].Key })
		}},
		{"dim_payment", func(ctx context.Context) (map[int64]int64, int, error) {
			return l.upsertDimension(ctx, "dim_payment", upsertPaymentSQL,
				len(out.Payments),
				func(i int) []any {
					return []any{out.Payments[i].PaymentMethod}
				},
				func(i int) int64 { return out.Payments[i].Key })
		}},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(table string, load func(context.Context) (map[int64]int64, int, error)) {
			defer wg.Done()
			keys, created, err := load(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Error().Err(err).Str("table", table).Msg("Dimension load failed")
				res.Failed = append(res.Failed, &LoadBatchError{Table: table, Batch: 1, Err: err})
				return
			}
			res.keys[table] = keys
			res.Created[table] = created
			logging.Info().
				Str("table", table).
				Int("members", len(keys)).
				Int("created", created).
				Msg("Dimension loaded")
		}(job.table, job.load)
	}
	wg.Wait()

	return res
}

// upsertDimension loads one dimension table in a single transaction and
// returns the local-to-warehouse key mapping plus the count of members
// that did not previously exist.
func (l *Loader) upsertDimension(ctx context.Context, table, query string,
	n int, args func(i int) []any, localKey func(i int) int64) (map[int64]int64, int, error) {

	keymap := make(map[int64]int64, n)
	if n == 0 {
		return keymap, 0, nil
	}

	tctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	tx, err := l.db.Begin(tctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin %s transaction: %w", table, err)
	}
	defer tx.Rollback(tctx)

	created := 0
	for i := 0; i < n; i++ {
		var id int64
		var inserted bool
		if err := tx.QueryRow(tctx, query, args(i)...).Scan(&id, &inserted); err != nil {
			return nil, 0, fmt.Errorf("upsert into %s: %w", table, err)
		}
		keymap[localKey(i)] = id
		if inserted {
			created++
		}
	}

	if err := tx.Commit(tctx); err != nil {
		return nil, 0, fmt.Errorf("commit %s: %w", table, err)
	}
	return keymap, created, nil
}

// LoadFacts upserts the fact rows in batches, one transaction per
// batch. It requires a fully successful dimension load; fact keys are
// remapped to warehouse keys before writing. A failed batch is recorded
// and the remaining batches continue.
func (l *Loader) LoadFacts(ctx context.Context, out *Output, dims *DimensionResult) (*FactResult, error) {
	if !dims.OK() {
		return nil, fmt.Errorf("fact load blocked: %d dimension table(s) failed", len(dims.Failed))
	}

	res := &FactResult{}

	for start := 0; start < len(out.Facts); start += l.batchSize {
		end := min(start+l.batchSize, len(out.Facts))
		batchNum := start/l.batchSize + 1

		inserted, updated, unchanged, err := l.loadFactBatch(ctx, out.Facts[start:end], dims)
		if err != nil {
			var dimErr *DimensionResolutionError
			if errors.As(err, &dimErr) {
				// Internal consistency bug, not a batch-level failure.
				return res, err
			}
			logging.Error().Err(err).Int("batch", batchNum).Msg("Fact batch failed")
			res.Failed = append(res.Failed, &LoadBatchError{
				Table: "fact_sales", Batch: batchNum, Err: err,
			})
			continue
		}
		res.Inserted += inserted
		res.Updated += updated
		res.Unchanged += unchanged
	}

	logging.Info().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("failed_batches", len(res.Failed)).
		Msg("Fact load complete")

	return res, nil
}

func (l *Loader) loadFactBatch(ctx context.Context, facts []FactRow, dims *DimensionResult) (inserted, updated, unchanged int, err error) {
	tctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	tx, err := l.db.Begin(tctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("begin fact transaction: %w", err)
	}
	defer tx.Rollback(tctx)

	for _, f := range facts {
		customerID, err := resolveKey(dims, "dim_customer", f, f.CustomerKey)
		if err != nil {
			return 0, 0, 0, err
		}
		productID, err := resolveKey(dims, "dim_product", f, f.ProductKey)
		if err != nil {
			return 0, 0, 0, err
		}
		timeID, err := resolveKey(dims, "dim_time", f, f.TimeKey)
		if err != nil {
			return 0, 0, 0, err
		}
		branchID, err := resolveKey(dims, "dim_branch", f, f.BranchKey)
		if err != nil {
			return 0, 0, 0, err
		}
		paymentID, err := resolveKey(dims, "dim_payment", f, f.PaymentKey)
		if err != nil {
			return 0, 0, 0, err
		}

		var wasInsert bool
		err = tx.QueryRow(tctx, upsertFactSQL,
			f.InvoiceID, customerID, productID, timeID, branchID, paymentID,
			f.Quantity, f.Tax, f.Sales, f.COGS, f.GrossMarginPct,
			f.GrossIncome, f.Rating,
		).Scan(&wasInsert)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Conflict with identical values; the WHERE clause
			// suppressed the update.
			unchanged++
		case err != nil:
			return 0, 0, 0, fmt.Errorf("upsert fact %s: %w", f.InvoiceID, err)
		case wasInsert:
			inserted++
		default:
			updated++
		}
	}

	if err := tx.Commit(tctx); err != nil {
		return 0, 0, 0, fmt.Errorf("commit fact batch: %w", err)
	}
	return inserted, updated, unchanged, nil
}

func resolveKey(dims *DimensionResult, table string, f FactRow, local int64) (int64, error) {
	id, ok := dims.keys[table][local]
	if !ok {
		return 0, &DimensionResolutionError{InvoiceID: f.InvoiceID, Dimension: table, Key: local}
	}
	return id, nil
}
