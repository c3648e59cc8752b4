package etl

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/dmtran/saleswh/internal/logging"
)

// Extract reads the CSV source at path into an ordered raw row set.
// It fails with *SourceReadError if the file is missing, unreadable or
// has no header, and with *SchemaMismatchError if required columns are
// absent. Row-level problems are not judged here; ragged or malformed
// rows pass through for the transformer to reject.
func Extract(path string) (*RowSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows surface as short records

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			err = errors.New("file has no header row")
		}
		return nil, &SourceReadError{Path: path, Err: err}
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Path: path, Missing: missing}
	}

	rs := &RowSet{Path: path}
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SourceReadError{Path: path, Err: err}
		}

		line++
		fields := make(map[string]string, len(RequiredColumns))
		for _, col := range RequiredColumns {
			if i := colIndex[col]; i < len(record) {
				fields[col] = record[i]
			}
		}
		rs.Records = append(rs.Records, RawRecord{Line: line, Fields: fields})
	}

	logging.Info().
		Str("path", path).
		Int("rows", len(rs.Records)).
		Msg("Extracted source file")

	return rs, nil
}
