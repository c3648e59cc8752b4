package warehouse

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmtran/saleswh/internal/db"
	"github.com/dmtran/saleswh/internal/logging"
)

// Export writes every warehouse table and the sales summary view to CSV
// files under dir, one file per table. Files are overwritten.
func Export(ctx context.Context, conn db.DB, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	for _, spec := range exportSpecs {
		path := filepath.Join(dir, spec.Name+".csv")
		n, err := exportOne(ctx, conn, spec, path)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", spec.Name, err)
		}
		logging.Info().
			Str("table", spec.Name).
			Str("path", path).
			Int("rows", n).
			Msg("Exported")
	}

	return nil
}

func exportOne(ctx context.Context, conn db.DB, spec exportSpec, path string) (int, error) {
	rows, err := conn.Query(ctx, spec.Query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(spec.Columns); err != nil {
		return 0, err
	}

	record := make([]string, len(spec.Columns))
	ptrs := make([]any, len(spec.Columns))
	for i := range record {
		ptrs[i] = &record[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, err
		}
		if err := w.Write(record); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return n, err
	}
	return n, f.Close()
}
