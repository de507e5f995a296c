package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/gyeh/clinscore/internal/normalize"
)

// Record is one stored assessment or substance row: column name -> raw value.
type Record map[string]any

// Columns returns the record's column names in sorted order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// String renders a column value as text. Missing and nil values are "".
func (r Record) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Time parses a column value as a timestamp.
func (r Record) Time(col string) *time.Time {
	return normalize.ParseDate(r[col])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
