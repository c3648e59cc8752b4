package etl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleHeader = `Invoice ID,Branch,City,Customer type,Gender,Product line,Unit price,Quantity,Tax 5%,Sales,Date,Time,Payment,cogs,gross margin percentage,gross income,Rating`

const sampleRow = `750-67-8428,A,Yangon,Member,Female,Health and beauty,74.69,7,26.1415,548.9715,2019-01-05,13:08,Ewallet,522.83,4.761904762,26.1415,9.1`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp CSV: %v", err)
	}
	return path
}

func TestExtract(t *testing.T) {
	path := writeTempCSV(t, sampleHeader+"\n"+sampleRow+"\n")

	rs, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(rs.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(rs.Records))
	}

	rec := rs.Records[0]
	if rec.Line != 1 {
		t.Errorf("Expected line 1, got %d", rec.Line)
	}
	if rec.Fields[ColInvoiceID] != "750-67-8428" {
		t.Errorf("Unexpected invoice id: %q", rec.Fields[ColInvoiceID])
	}
	if rec.Fields[ColProductLine] != "Health and beauty" {
		t.Errorf("Unexpected product line: %q", rec.Fields[ColProductLine])
	}
	if rec.Fields[ColRating] != "9.1" {
		t.Errorf("Unexpected rating: %q", rec.Fields[ColRating])
	}
}

func TestExtractMissingFile(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}

	var srcErr *SourceReadError
	if !errors.As(err, &srcErr) {
		t.Fatalf("Expected *SourceReadError, got %T: %v", err, err)
	}
}

func TestExtractEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")

	_, err := Extract(path)
	var srcErr *SourceReadError
	if !errors.As(err, &srcErr) {
		t.Fatalf("Expected *SourceReadError for empty file, got %T: %v", err, err)
	}
}

func TestExtractMissingColumns(t *testing.T) {
	// Header without Gender and Rating.
	header := `Invoice ID,Branch,City,Customer type,Product line,Unit price,Quantity,Tax 5%,Sales,Date,Time,Payment,cogs,gross margin percentage,gross income`
	path := writeTempCSV(t, header+"\n")

	_, err := Extract(path)
	if err == nil {
		t.Fatal("Expected error for missing columns")
	}

	var schemaErr *SchemaMismatchError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected *SchemaMismatchError, got %T: %v", err, err)
	}
	if len(schemaErr.Missing) != 2 {
		t.Fatalf("Expected 2 missing columns, got %v", schemaErr.Missing)
	}
	for _, want := range []string{ColGender, ColRating} {
		found := false
		for _, got := range schemaErr.Missing {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %q in missing columns, got %v", want, schemaErr.Missing)
		}
	}
}

func TestExtractRaggedRowPassesThrough(t *testing.T) {
	// A short row must not be dropped at extraction; the transformer
	// decides its fate.
	short := "111-22-3333,A,Yangon"
	path := writeTempCSV(t, sampleHeader+"\n"+sampleRow+"\n"+short+"\n")

	rs, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rs.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(rs.Records))
	}

	rec := rs.Records[1]
	if rec.Fields[ColInvoiceID] != "111-22-3333" {
		t.Errorf("Unexpected invoice id: %q", rec.Fields[ColInvoiceID])
	}
	if _, ok := rec.Fields[ColRating]; ok {
		t.Error("Expected rating to be absent from ragged row")
	}
}

func TestExtractPreservesRowOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(sampleHeader + "\n")
	ids := []string{"INV-1", "INV-2", "INV-3"}
	for _, id := range ids {
		sb.WriteString(strings.Replace(sampleRow, "750-67-8428", id, 1) + "\n")
	}
	path := writeTempCSV(t, sb.String())

	rs, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rs.Records) != len(ids) {
		t.Fatalf("Expected %d records, got %d", len(ids), len(rs.Records))
	}
	for i, id := range ids {
		if rs.Records[i].Fields[ColInvoiceID] != id {
			t.Errorf("Record %d: expected %q, got %q", i, id, rs.Records[i].Fields[ColInvoiceID])
		}
		if rs.Records[i].Line != i+1 {
			t.Errorf("Record %d: expected line %d, got %d", i, i+1, rs.Records[i].Line)
		}
	}
}
