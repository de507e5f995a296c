package store

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
)

// Memory is an in-process Store over fixed tables. It backs tests and the
// fixture mode of the CLI.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]model.Record
	fail   map[string]error
	calls  int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]model.Record),
		fail:   make(map[string]error),
	}
}

// Insert appends rows to table.
func (m *Memory) Insert(table string, rows ...model.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], rows...)
}

// FailTable makes every query against table return err. A nil err clears it.
func (m *Memory) FailTable(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, table)
		return
	}
	m.fail[table] = err
}

// Calls returns the number of Execute calls served.
func (m *Memory) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Execute filters, sorts and windows the table's rows.
func (m *Memory) Execute(ctx context.Context, q *Query) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	failErr := m.fail[q.Table]
	rows, ok := m.tables[q.Table]
	m.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", q.Table)
	}

	var out []model.Record
	for _, r := range rows {
		keep := true
		for _, f := range q.Filters {
			match, err := matches(r[f.Column], f)
			if err != nil {
				return nil, err
			}
			if !match {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compare(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	start := min(q.Offset, len(out))
	end := len(out)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(out))
	}
	out = out[start:end]

	res := make([]model.Record, len(out))
	for i, r := range out {
		res[i] = project(r, q.Columns)
	}
	return res, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() {}

func project(r model.Record, cols []string) model.Record {
	if len(cols) == 0 {
		return r.Clone()
	}
	out := make(model.Record, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func matches(v any, f Filter) (bool, error) {
	switch f.Op {
	case OpEq:
		return v != nil && compare(v, f.Value) == 0, nil
	case OpGte:
		return v != nil && compare(v, f.Value) >= 0, nil
	case OpLte:
		return v != nil && compare(v, f.Value) <= 0, nil
	case OpLike:
		if v == nil {
			return false, nil
		}
		return likeRegexp(fmt.Sprint(f.Value)).MatchString(fmt.Sprint(v)), nil
	}
	return false, fmt.Errorf("unsupported filter op %q", f.Op)
}

// compare orders values as dates when both parse, then as numbers, then as
// text. Nil sorts last.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if ta, tb := normalize.ParseDate(a), normalize.ParseDate(b); ta != nil && tb != nil {
		return ta.Compare(*tb)
	}
	fa, fb := normalize.Float(a, math.NaN()), normalize.Float(b, math.NaN())
	if !math.IsNaN(fa) && !math.IsNaN(fb) {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func likeRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
