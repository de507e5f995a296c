package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
)

// RecordSource implements pgx.CopyFromSource over a slice of records,
// emitting values in a fixed column order. Missing columns copy as NULL.
type RecordSource struct {
	rows    []model.Record
	columns []string
	idx     int
}

// NewRecordSource creates a CopyFromSource for rows.
func NewRecordSource(rows []model.Record, columns []string) *RecordSource {
	return &RecordSource{rows: rows, columns: columns, idx: -1}
}

// Next advances to the next row.
func (s *RecordSource) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}

// Values returns the current row's values in COPY column order. Text in
// *_date columns is parsed, since COPY's binary format takes no strings
// for date types.
func (s *RecordSource) Values() ([]any, error) {
	row := s.rows[s.idx]
	vals := make([]any, len(s.columns))
	for i, c := range s.columns {
		v := row[c]
		if str, ok := v.(string); ok && strings.HasSuffix(c, "_date") {
			if str == "" {
				vals[i] = nil
				continue
			}
			t := normalize.ParseDate(str)
			if t == nil {
				return nil, fmt.Errorf("row %d: column %s: unparseable date %q", s.idx, c, str)
			}
			v = *t
		}
		vals[i] = v
	}
	return vals, nil
}

// Err returns any error encountered during iteration.
func (s *RecordSource) Err() error {
	return nil
}

var _ pgx.CopyFromSource = (*RecordSource)(nil)

// CopyRecords bulk-loads rows into table. Columns default to the union of
// every row's keys.
func CopyRecords(ctx context.Context, pool Pool, table string, rows []model.Record, columns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		seen := make(map[string]bool)
		for _, r := range rows {
			for _, c := range r.Columns() {
				if !seen[c] {
					seen[c] = true
					columns = append(columns, c)
				}
			}
		}
	}
	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, NewRecordSource(rows, columns))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}
