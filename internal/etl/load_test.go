package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
)

func newMockLoader(t *testing.T, batchSize int) (*Loader, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("Failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewLoader(mock, batchSize, 5*time.Second), mock
}

func keyRows(idCol string, id int64, inserted bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{idCol, "inserted"}).AddRow(id, inserted)
}

// customersOnly builds an output with a single customer member, leaving
// the other dimensions empty so only one table touches the database.
func customersOnly() *Output {
	return &Output{
		Customers: []CustomerMember{
			{Key: 1, CustomerType: "Member", Gender: "Female"},
		},
	}
}

func TestLoadDimensionsRemapsKeys(t *testing.T) {
	loader, mock := newMockLoader(t, 100)

	// The warehouse already holds this member under a different id than
	// the transformer's local key.
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO dim_customer").
		WithArgs("Member", "Female").
		WillReturnRows(keyRows("customer_id", 7, false))
	mock.ExpectCommit()

	res := loader.LoadDimensions(context.Background(), customersOnly())

	if !res.OK() {
		t.Fatalf("Expected dimension load to succeed, failures: %+v", res.Failed)
	}
	if res.Created["dim_customer"] != 0 {
		t.Errorf("Expected 0 created for a conflict hit, got %d", res.Created["dim_customer"])
	}
	if got := res.keys["dim_customer"][1]; got != 7 {
		t.Errorf("Expected local key 1 to map to warehouse key 7, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLoadDimensionsAllTables(t *testing.T) {
	loader, mock := newMockLoader(t, 100)
	// Dimension tables load concurrently.
	mock.MatchExpectationsInOrder(false)

	out := &Output{
		Customers: []CustomerMember{{Key: 1, CustomerType: "Member", Gender: "Female"}},
		Products:  []ProductMember{{Key: 1, ProductLine: "Health and beauty", UnitPrice: 74.69}},
		Times: []TimeMember{{
			Key: 1, Date: time.Date(2019, 1, 5, 0, 0, 0, 0, time.UTC),
			TimeOfDay: "13:08:00", Year: 2019, Month: 1, Day: 5,
			Quarter: 1, Weekday: "Saturday", IsWeekend: true,
		}},
		Branches: []BranchMember{{Key: 1, Branch: "A", City: "Yangon"}},
		Payments: []PaymentMember{{Key: 1, PaymentMethod: "Ewallet"}},
	}

	for _, d := range []struct {
		pattern string
		idCol   string
	}{
		{"INSERT INTO dim_customer", "customer_id"},
		{"INSERT INTO dim_product", "product_id"},
		{"INSERT INTO dim_time", "time_id"},
		{"INSERT INTO dim_branch", "branch_id"},
		{"INSERT INTO dim_payment", "payment_id"},
	} {
		mock.ExpectBegin()
		mock.ExpectQuery(d.pattern).WillReturnRows(keyRows(d.idCol, 1, true))
		mock.ExpectCommit()
	}

	res := loader.LoadDimensions(context.Background(), out)

	if !res.OK() {
		t.Fatalf("Expected dimension load to succeed, failures: %+v", res.Failed)
	}
	for _, table := range []string{
		"dim_customer", "dim_product", "dim_time", "dim_branch", "dim_payment",
	} {
		if res.Created[table] != 1 {
			t.Errorf("Expected 1 created in %s, got %d", table, res.Created[table])
		}
		if len(res.keys[table]) != 1 {
			t.Errorf("Expected 1 key mapping for %s, got %d", table, len(res.keys[table]))
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLoadDimensionsFailureRecorded(t *testing.T) {
	loader, mock := newMockLoader(t, 100)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO dim_customer").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	res := loader.LoadDimensions(context.Background(), customersOnly())

	if res.OK() {
		t.Fatal("Expected dimension load failure")
	}
	if len(res.Failed) != 1 || res.Failed[0].Table != "dim_customer" {
		t.Fatalf("Expected one failure for dim_customer, got %+v", res.Failed)
	}
}

func TestLoadFactsBlockedByFailedDimension(t *testing.T) {
	loader, _ := newMockLoader(t, 100)

	dims := &DimensionResult{
		Created: map[string]int{},
		Failed:  []*LoadBatchError{{Table: "dim_time", Batch: 1, Err: errors.New("boom")}},
		keys:    map[string]map[int64]int64{},
	}

	out := &Output{Facts: []FactRow{{InvoiceID: "INV-1"}}}
	_, err := loader.LoadFacts(context.Background(), out, dims)
	if err == nil {
		t.Fatal("Expected fact load to be blocked")
	}
}

func fullKeymap() *DimensionResult {
	return &DimensionResult{
		Created: map[string]int{},
		keys: map[string]map[int64]int64{
			"dim_customer": {1: 11},
			"dim_product":  {1: 21},
			"dim_time":     {1: 31},
			"dim_branch":   {1: 41},
			"dim_payment":  {1: 51},
		},
	}
}

func factRow(invoice string) FactRow {
	return FactRow{
		InvoiceID: invoice, CustomerKey: 1, ProductKey: 1, TimeKey: 1,
		BranchKey: 1, PaymentKey: 1, Quantity: 7, Tax: 26.1415,
		Sales: 548.9715, COGS: 522.83, GrossMarginPct: 4.761904762,
		GrossIncome: 26.1415, Rating: 9.1,
	}
}

func TestLoadFactsCountsOutcomes(t *testing.T) {
	loader, mock := newMockLoader(t, 100)

	out := &Output{Facts: []FactRow{
		factRow("INV-1"), factRow("INV-2"), factRow("INV-3"),
	}}

	insertedRows := pgxmock.NewRows([]string{"inserted"}).AddRow(true)
	updatedRows := pgxmock.NewRows([]string{"inserted"}).AddRow(false)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fact_sales").WillReturnRows(insertedRows)
	mock.ExpectQuery("INSERT INTO fact_sales").WillReturnRows(updatedRows)
	// Identical row: the conditional update matched nothing.
	mock.ExpectQuery("INSERT INTO fact_sales").WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	res, err := loader.LoadFacts(context.Background(), out, fullKeymap())
	if err != nil {
		t.Fatalf("LoadFacts failed: %v", err)
	}
	if res.Inserted != 1 || res.Updated != 1 || res.Unchanged != 1 {
		t.Errorf("Expected 1/1/1 inserted/updated/unchanged, got %d/%d/%d",
			res.Inserted, res.Updated, res.Unchanged)
	}
	if !res.OK() {
		t.Errorf("Expected no failed batches, got %+v", res.Failed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLoadFactsRemapsToWarehouseKeys(t *testing.T) {
	loader, mock := newMockLoader(t, 100)

	out := &Output{Facts: []FactRow{factRow("INV-1")}}

	f := out.Facts[0]
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fact_sales").
		WithArgs(f.InvoiceID, int64(11), int64(21), int64(31), int64(41), int64(51),
			f.Quantity, f.Tax, f.Sales, f.COGS, f.GrossMarginPct,
			f.GrossIncome, f.Rating).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectCommit()

	if _, err := loader.LoadFacts(context.Background(), out, fullKeymap()); err != nil {
		t.Fatalf("LoadFacts failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLoadFactsBatchFailureContinues(t *testing.T) {
	loader, mock := newMockLoader(t, 1)

	out := &Output{Facts: []FactRow{factRow("INV-1"), factRow("INV-2")}}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fact_sales").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fact_sales").
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectCommit()

	res, err := loader.LoadFacts(context.Background(), out, fullKeymap())
	if err != nil {
		t.Fatalf("LoadFacts failed: %v", err)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("Expected 1 failed batch, got %d", len(res.Failed))
	}
	if res.Failed[0].Batch != 1 {
		t.Errorf("Expected batch 1 to fail, got %d", res.Failed[0].Batch)
	}
	if res.Inserted != 1 {
		t.Errorf("Expected the second batch to load, got %d inserted", res.Inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLoadFactsUnresolvableKeyIsFatal(t *testing.T) {
	loader, mock := newMockLoader(t, 100)

	dims := fullKeymap()
	delete(dims.keys["dim_product"], 1)

	mock.ExpectBegin()
	mock.ExpectRollback()

	out := &Output{Facts: []FactRow{factRow("INV-1")}}
	_, err := loader.LoadFacts(context.Background(), out, dims)
	if err == nil {
		t.Fatal("Expected error for unresolvable dimension key")
	}

	var dimErr *DimensionResolutionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("Expected *DimensionResolutionError, got %T: %v", err, err)
	}
	if dimErr.Dimension != "dim_product" || dimErr.InvoiceID != "INV-1" {
		t.Errorf("Unexpected error detail: %+v", dimErr)
	}
}
