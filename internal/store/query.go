// Package store is the tabular query interface the engine reads through.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/gyeh/clinscore/internal/model"
)

// Op is a filter comparison.
type Op string

const (
	OpEq   Op = "eq"
	OpGte  Op = "gte"
	OpLte  Op = "lte"
	OpLike Op = "like"
)

// Filter restricts rows to those where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order sorts rows by Column.
type Order struct {
	Column string
	Desc   bool
}

// Query is a select against one table. Build it with From and the
// chaining methods; a zero Limit means no limit.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Orders  []Order
	Limit   int
	Offset  int
}

// From starts a query selecting every column of table.
func From(table string) *Query {
	return &Query{Table: table}
}

// Select restricts the returned columns. No columns selects all.
func (q *Query) Select(cols ...string) *Query {
	q.Columns = append(q.Columns[:0], cols...)
	return q
}

func (q *Query) where(col string, op Op, v any) *Query {
	q.Filters = append(q.Filters, Filter{Column: col, Op: op, Value: v})
	return q
}

// Eq adds column = v.
func (q *Query) Eq(col string, v any) *Query { return q.where(col, OpEq, v) }

// Gte adds column >= v.
func (q *Query) Gte(col string, v any) *Query { return q.where(col, OpGte, v) }

// Lte adds column <= v.
func (q *Query) Lte(col string, v any) *Query { return q.where(col, OpLte, v) }

// Like adds a SQL LIKE pattern match on column.
func (q *Query) Like(col string, pattern string) *Query { return q.where(col, OpLike, pattern) }

// OrderBy appends a sort key.
func (q *Query) OrderBy(col string, desc bool) *Query {
	q.Orders = append(q.Orders, Order{Column: col, Desc: desc})
	return q
}

// LimitTo caps the number of rows.
func (q *Query) LimitTo(n int) *Query {
	q.Limit = n
	return q
}

// Range selects the inclusive row window [start, end].
func (q *Query) Range(start, end int) *Query {
	q.Offset = start
	q.Limit = end - start + 1
	return q
}

// String renders the query for logs.
func (q *Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "from=%s", q.Table)
	if len(q.Columns) > 0 {
		fmt.Fprintf(&b, " select=%s", strings.Join(q.Columns, ","))
	}
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " %s.%s=%v", f.Column, f.Op, f.Value)
	}
	for _, o := range q.Orders {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, " order=%s.%s", o.Column, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit=%d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " offset=%d", q.Offset)
	}
	return b.String()
}

// Store executes queries against a backing table source.
type Store interface {
	Execute(ctx context.Context, q *Query) ([]model.Record, error)
	Ping(ctx context.Context) error
	Close()
}
