package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/clinscore/internal/db"
	"github.com/gyeh/clinscore/internal/model"
)

// PostgresStore runs queries directly against the backend's Postgres.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Execute builds parameterized SQL for q and returns rows keyed by column.
func (s *PostgresStore) Execute(ctx context.Context, q *Query) ([]model.Record, error) {
	sql, args, err := BuildSQL(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", q.Table, err)
	}
	out := make([]model.Record, len(maps))
	for i, m := range maps {
		out[i] = model.Record(m)
	}
	return out, nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

var sqlOps = map[Op]string{
	OpEq:   "=",
	OpGte:  ">=",
	OpLte:  "<=",
	OpLike: "LIKE",
}

// BuildSQL renders q as a SELECT with quoted identifiers and positional args.
func BuildSQL(q *Query) (string, []any, error) {
	if q.Table == "" {
		return "", nil, fmt.Errorf("query has no table")
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range q.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quote(c))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(quote(q.Table))

	var args []any
	for i, f := range q.Filters {
		op, ok := sqlOps[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s %s $%d", quote(f.Column), op, len(args))
	}

	for i, o := range q.Orders {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(quote(o.Column))
		if o.Desc {
			b.WriteString(" DESC NULLS LAST")
		} else {
			b.WriteString(" ASC NULLS LAST")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}
	return b.String(), args, nil
}

func quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}
