// Package etl implements the extract, transform and load stages of the
// supermarket sales warehouse pipeline.
package etl

import "time"

// Source column names, matching the CSV export's header row.
const (
	ColInvoiceID    = "Invoice ID"
	ColBranch       = "Branch"
	ColCity         = "City"
	ColCustomerType = "Customer type"
	ColGender       = "Gender"
	ColProductLine  = "Product line"
	ColUnitPrice    = "Unit price"
	ColQuantity     = "Quantity"
	ColTax          = "Tax 5%"
	ColSales        = "Sales"
	ColDate         = "Date"
	ColTime         = "Time"
	ColPayment      = "Payment"
	ColCOGS         = "cogs"
	ColGrossMargin  = "gross margin percentage"
	ColGrossIncome  = "gross income"
	ColRating       = "Rating"
)

// RequiredColumns is the fixed column set a source file must provide.
var RequiredColumns = []string{
	ColInvoiceID, ColBranch, ColCity, ColCustomerType, ColGender,
	ColProductLine, ColUnitPrice, ColQuantity, ColTax, ColSales,
	ColDate, ColTime, ColPayment, ColCOGS, ColGrossMargin,
	ColGrossIncome, ColRating,
}

// RawRecord is one untyped source row. Fields is keyed by column name;
// a column absent from a ragged row is simply missing from the map.
type RawRecord struct {
	Line   int // 1-based data row number, header excluded
	Fields map[string]string
}

// RowSet is the extractor's output: the ordered raw records of one file.
type RowSet struct {
	Path    string
	Records []RawRecord
}

// CustomerMember is one distinct (customer type, gender) pair.
type CustomerMember struct {
	Key          int64
	CustomerType string
	Gender       string
}

// ProductMember is one distinct (product line, unit price) pair.
type ProductMember struct {
	Key         int64
	ProductLine string
	UnitPrice   float64
}

// TimeMember is one distinct (date, time) pair with derived calendar
// attributes.
type TimeMember struct {
	Key       int64
	Date      time.Time
	TimeOfDay string // HH:MM:SS
	Year      int
	Month     int
	Day       int
	Quarter   int
	Weekday   string
	IsWeekend bool
}

// BranchMember is one distinct (branch, city) pair.
type BranchMember struct {
	Key    int64
	Branch string
	City   string
}

// PaymentMember is one distinct payment method.
type PaymentMember struct {
	Key           int64
	PaymentMethod string
}

// FactRow is one validated sales transaction with its five surrogate
// keys and metrics.
type FactRow struct {
	InvoiceID   string
	CustomerKey int64
	ProductKey  int64
	TimeKey     int64
	BranchKey   int64
	PaymentKey  int64

	Quantity       int
	Tax            float64
	Sales          float64
	COGS           float64
	GrossMarginPct float64
	GrossIncome    float64
	Rating         float64
}

// Output is the transformer's result: deduplicated dimension members in
// surrogate-key order, the validated fact rows, and the validation
// report for the whole batch.
type Output struct {
	Customers []CustomerMember
	Products  []ProductMember
	Times     []TimeMember
	Branches  []BranchMember
	Payments  []PaymentMember
	Facts     []FactRow

	Report ValidationReport
}

// Rejection records why one source row was excluded.
type Rejection struct {
	Line  int
	Field string
	Code  string
}

// ValidationReport summarizes transform-stage validation for one batch.
type ValidationReport struct {
	RowsRead     int
	RowsAccepted int
	RowsRejected int
	Rejections   []Rejection
}
