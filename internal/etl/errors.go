package etl

import (
	"fmt"
	"strings"
)

// Rejection reason codes carried by RecordValidationError.
const (
	CodeMissingField     = "missing_field"
	CodeMissingInvoiceID = "missing_invoice_id"
	CodeBadNumber        = "bad_number"
	CodeBadDate          = "bad_date"
	CodeBadTime          = "bad_time"
	CodeBadQuantity      = "bad_quantity"
	CodeNegativeMetric   = "negative_metric"
	CodeRatingOutOfRange = "rating_out_of_range"
)

// SourceReadError means the source file could not be read at all.
// Fatal: nothing downstream runs.
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("reading source %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// SchemaMismatchError means the source is structurally incompatible:
// one or more required columns are missing from the header. Fatal.
type SchemaMismatchError struct {
	Path    string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("source %s is missing required columns: %s",
		e.Path, strings.Join(e.Missing, ", "))
}

// RecordValidationError is row-scoped and non-fatal: the row is rejected
// and collected into the validation report, the batch continues.
type RecordValidationError struct {
	Line  int // 1-based data row number, header excluded
	Field string
	Code  string
	Err   error
}

func (e *RecordValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: field %q: %s: %v", e.Line, e.Field, e.Code, e.Err)
	}
	return fmt.Sprintf("row %d: field %q: %s", e.Line, e.Field, e.Code)
}

func (e *RecordValidationError) Unwrap() error { return e.Err }

// DimensionResolutionError means a fact row references a surrogate key
// with no dimension member behind it. The transformer guarantees this
// cannot happen, so seeing one indicates an internal bug, not bad data.
// Fatal.
type DimensionResolutionError struct {
	InvoiceID string
	Dimension string
	Key       int64
}

func (e *DimensionResolutionError) Error() string {
	return fmt.Sprintf("fact %s: no %s member for surrogate key %d",
		e.InvoiceID, e.Dimension, e.Key)
}

// LoadBatchError reports the failure of one batch write. Independent
// batches continue; any fact batch depending on a failed dimension
// batch is blocked.
type LoadBatchError struct {
	Table string
	Batch int
	Err   error
}

func (e *LoadBatchError) Error() string {
	return fmt.Sprintf("loading %s batch %d: %v", e.Table, e.Batch, e.Err)
}

func (e *LoadBatchError) Unwrap() error { return e.Err }
