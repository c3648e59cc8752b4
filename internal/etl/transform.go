package etl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmtran/saleswh/internal/logging"
)

// Accepted source layouts. The canonical export uses ISO dates and
// 24-hour times; older exports carry US-style dates and AM/PM times.
var (
	dateLayouts = []string{"2006-01-02", "1/2/2006", "01/02/2006", "2006/01/02"}
	timeLayouts = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM"}
)

// QualityBounds carries the data-quality limits applied during
// transform. Ratings outside the scale are rejected; sales outside the
// min/max window are accepted but logged.
type QualityBounds struct {
	RatingMin float64
	RatingMax float64
	MinSales  float64
	MaxSales  float64
}

// DefaultQualityBounds returns the bounds used when none are configured.
func DefaultQualityBounds() QualityBounds {
	return QualityBounds{RatingMin: 0, RatingMax: 10, MinSales: 0, MaxSales: 10000}
}

// Transformer converts raw records into the dimensional model. It owns
// the per-dimension key tables for one batch; surrogate keys are
// assigned in first-occurrence order, so transforming the same input in
// the same order always yields identical keys. The key tables are
// scoped to a single run and discarded after load; the warehouse's own
// keys are resolved by the loader's upserts on the next run.
type Transformer struct {
	bounds QualityBounds

	customerKeys map[string]int64
	productKeys  map[string]int64
	timeKeys     map[string]int64
	branchKeys   map[string]int64
	paymentKeys  map[string]int64

	out Output
}

// NewTransformer creates a transformer with the given quality bounds.
func NewTransformer(bounds QualityBounds) *Transformer {
	return &Transformer{
		bounds:       bounds,
		customerKeys: make(map[string]int64),
		productKeys:  make(map[string]int64),
		timeKeys:     make(map[string]int64),
		branchKeys:   make(map[string]int64),
		paymentKeys:  make(map[string]int64),
	}
}

// Transform processes the whole row set. Rows failing validation are
// rejected, recorded in the report and excluded from the fact output;
// the remaining rows are processed normally.
func (t *Transformer) Transform(rs *RowSet) *Output {
	t.out.Report.RowsRead = len(rs.Records)

	for _, rec := range rs.Records {
		if err := t.transformRecord(rec); err != nil {
			verr, ok := err.(*RecordValidationError)
			if !ok {
				// transformRecord only produces validation errors
				verr = &RecordValidationError{Line: rec.Line, Code: "internal", Err: err}
			}
			logging.Debug().
				Int("row", verr.Line).
				Str("field", verr.Field).
				Str("code", verr.Code).
				Msg("Rejected source row")
			t.out.Report.RowsRejected++
			t.out.Report.Rejections = append(t.out.Report.Rejections, Rejection{
				Line:  verr.Line,
				Field: verr.Field,
				Code:  verr.Code,
			})
			continue
		}
		t.out.Report.RowsAccepted++
	}

	logging.Info().
		Int("read", t.out.Report.RowsRead).
		Int("accepted", t.out.Report.RowsAccepted).
		Int("rejected", t.out.Report.RowsRejected).
		Int("customers", len(t.out.Customers)).
		Int("products", len(t.out.Products)).
		Int("times", len(t.out.Times)).
		Int("branches", len(t.out.Branches)).
		Int("payments", len(t.out.Payments)).
		Msg("Transform complete")

	return &t.out
}

func (t *Transformer) transformRecord(rec RawRecord) error {
	get := func(col string) (string, error) {
		v, ok := rec.Fields[col]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return "", &RecordValidationError{Line: rec.Line, Field: col, Code: CodeMissingField}
		}
		return v, nil
	}

	invoiceID, err := get(ColInvoiceID)
	if err != nil {
		return &RecordValidationError{Line: rec.Line, Field: ColInvoiceID, Code: CodeMissingInvoiceID}
	}

	// Dimension attributes
	branch, err := get(ColBranch)
	if err != nil {
		return err
	}
	city, err := get(ColCity)
	if err != nil {
		return err
	}
	customerType, err := get(ColCustomerType)
	if err != nil {
		return err
	}
	gender, err := get(ColGender)
	if err != nil {
		return err
	}
	productLine, err := get(ColProductLine)
	if err != nil {
		return err
	}
	payment, err := get(ColPayment)
	if err != nil {
		return err
	}

	unitPrice, err := t.parseFloat(rec, ColUnitPrice)
	if err != nil {
		return err
	}
	quantity, err := t.parseQuantity(rec)
	if err != nil {
		return err
	}
	tax, err := t.parseFloat(rec, ColTax)
	if err != nil {
		return err
	}
	sales, err := t.parseFloat(rec, ColSales)
	if err != nil {
		return err
	}
	cogs, err := t.parseFloat(rec, ColCOGS)
	if err != nil {
		return err
	}
	grossMargin, err := t.parseFloat(rec, ColGrossMargin)
	if err != nil {
		return err
	}
	grossIncome, err := t.parseFloat(rec, ColGrossIncome)
	if err != nil {
		return err
	}
	rating, err := t.parseFloat(rec, ColRating)
	if err != nil {
		return err
	}

	date, timeOfDay, err := t.parseTimestamp(rec)
	if err != nil {
		return err
	}

	// Metric invariants
	for _, m := range []struct {
		col string
		val float64
	}{
		{ColUnitPrice, unitPrice},
		{ColTax, tax},
		{ColSales, sales},
		{ColCOGS, cogs},
		{ColGrossIncome, grossIncome},
	} {
		if m.val < 0 {
			return &RecordValidationError{Line: rec.Line, Field: m.col, Code: CodeNegativeMetric}
		}
	}
	if rating < t.bounds.RatingMin || rating > t.bounds.RatingMax {
		return &RecordValidationError{Line: rec.Line, Field: ColRating, Code: CodeRatingOutOfRange}
	}
	if sales < t.bounds.MinSales || sales > t.bounds.MaxSales {
		logging.Warn().
			Int("row", rec.Line).
			Float64("sales", sales).
			Msg("Sales amount outside configured bounds")
	}

	t.out.Facts = append(t.out.Facts, FactRow{
		InvoiceID:      invoiceID,
		CustomerKey:    t.customerKey(customerType, gender),
		ProductKey:     t.productKey(productLine, unitPrice),
		TimeKey:        t.timeKey(date, timeOfDay),
		BranchKey:      t.branchKey(branch, city),
		PaymentKey:     t.paymentKey(payment),
		Quantity:       quantity,
		Tax:            tax,
		Sales:          sales,
		COGS:           cogs,
		GrossMarginPct: grossMargin,
		GrossIncome:    grossIncome,
		Rating:         rating,
	})
	return nil
}

func (t *Transformer) parseFloat(rec RawRecord, col string) (float64, error) {
	raw, ok := rec.Fields[col]
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return 0, &RecordValidationError{Line: rec.Line, Field: col, Code: CodeMissingField}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &RecordValidationError{Line: rec.Line, Field: col, Code: CodeBadNumber, Err: err}
	}
	return v, nil
}

func (t *Transformer) parseQuantity(rec RawRecord) (int, error) {
	raw, ok := rec.Fields[ColQuantity]
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return 0, &RecordValidationError{Line: rec.Line, Field: ColQuantity, Code: CodeMissingField}
	}
	q, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &RecordValidationError{Line: rec.Line, Field: ColQuantity, Code: CodeBadQuantity, Err: err}
	}
	if q <= 0 {
		return 0, &RecordValidationError{Line: rec.Line, Field: ColQuantity, Code: CodeBadQuantity,
			Err: fmt.Errorf("quantity must be positive, got %d", q)}
	}
	return q, nil
}

func (t *Transformer) parseTimestamp(rec RawRecord) (time.Time, string, error) {
	rawDate := strings.TrimSpace(rec.Fields[ColDate])
	if rawDate == "" {
		return time.Time{}, "", &RecordValidationError{Line: rec.Line, Field: ColDate, Code: CodeMissingField}
	}
	rawTime := strings.TrimSpace(rec.Fields[ColTime])
	if rawTime == "" {
		return time.Time{}, "", &RecordValidationError{Line: rec.Line, Field: ColTime, Code: CodeMissingField}
	}

	var date time.Time
	var err error
	parsed := false
	for _, layout := range dateLayouts {
		if date, err = time.Parse(layout, rawDate); err == nil {
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, "", &RecordValidationError{Line: rec.Line, Field: ColDate, Code: CodeBadDate, Err: err}
	}

	var tod time.Time
	parsed = false
	for _, layout := range timeLayouts {
		if tod, err = time.Parse(layout, rawTime); err == nil {
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, "", &RecordValidationError{Line: rec.Line, Field: ColTime, Code: CodeBadTime, Err: err}
	}

	return date, tod.Format("15:04:05"), nil
}

// lookup-or-insert helpers; one per dimension

func (t *Transformer) customerKey(customerType, gender string) int64 {
	k := customerType + "\x1f" + gender
	if key, ok := t.customerKeys[k]; ok {
		return key
	}
	key := int64(len(t.out.Customers) + 1)
	t.customerKeys[k] = key
	t.out.Customers = append(t.out.Customers, CustomerMember{
		Key: key, CustomerType: customerType, Gender: gender,
	})
	return key
}

func (t *Transformer) productKey(productLine string, unitPrice float64) int64 {
	k := productLine + "\x1f" + strconv.FormatFloat(unitPrice, 'f', -1, 64)
	if key, ok := t.productKeys[k]; ok {
		return key
	}
	key := int64(len(t.out.Products) + 1)
	t.productKeys[k] = key
	t.out.Products = append(t.out.Products, ProductMember{
		Key: key, ProductLine: productLine, UnitPrice: unitPrice,
	})
	return key
}

func (t *Transformer) timeKey(date time.Time, timeOfDay string) int64 {
	k := date.Format("2006-01-02") + "\x1f" + timeOfDay
	if key, ok := t.timeKeys[k]; ok {
		return key
	}
	key := int64(len(t.out.Times) + 1)
	t.timeKeys[k] = key

	weekday := date.Weekday()
	t.out.Times = append(t.out.Times, TimeMember{
		Key:       key,
		Date:      date,
		TimeOfDay: timeOfDay,
		Year:      date.Year(),
		Month:     int(date.Month()),
		Day:       date.Day(),
		Quarter:   (int(date.Month())-1)/3 + 1,
		Weekday:   weekday.String(),
		IsWeekend: weekday == time.Saturday || weekday == time.Sunday,
	})
	return key
}

func (t *Transformer) branchKey(branch, city string) int64 {
	k := branch + "\x1f" + city
	if key, ok := t.branchKeys[k]; ok {
		return key
	}
	key := int64(len(t.out.Branches) + 1)
	t.branchKeys[k] = key
	t.out.Branches = append(t.out.Branches, BranchMember{
		Key: key, Branch: branch, City: city,
	})
	return key
}

func (t *Transformer) paymentKey(method string) int64 {
	if key, ok := t.paymentKeys[method]; ok {
		return key
	}
	key := int64(len(t.out.Payments) + 1)
	t.paymentKeys[method] = key
	t.out.Payments = append(t.out.Payments, PaymentMember{
		Key: key, PaymentMethod: method,
	})
	return key
}
