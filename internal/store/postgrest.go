package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gyeh/clinscore/internal/model"
)

// RESTOptions configures a PostgRESTStore.
type RESTOptions struct {
	BaseURL    string // project URL; "/rest/v1" is appended
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	// PingTable and PingColumn name the one-row query Ping runs.
	PingTable  string
	PingColumn string
}

// PostgRESTStore reads through a hosted PostgREST endpoint.
type PostgRESTStore struct {
	client     *resty.Client
	pingTable  string
	pingColumn string
}

// NewPostgREST creates a REST store.
func NewPostgREST(opts RESTOptions) *PostgRESTStore {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/rest/v1").
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("apikey", opts.APIKey).
		SetAuthToken(opts.APIKey)

	return &PostgRESTStore{
		client:     client,
		pingTable:  opts.PingTable,
		pingColumn: opts.PingColumn,
	}
}

// Execute issues a GET for q and decodes the JSON row array. Numbers are
// kept as json.Number.
func (s *PostgRESTStore) Execute(ctx context.Context, q *Query) ([]model.Record, error) {
	params, err := QueryParams(q)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("table", q.Table).
		SetQueryParamsFromValues(params).
		Get("/{table}")
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", q.Table, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("request %s: status %d: %s", q.Table, resp.StatusCode(), truncate(resp.String(), 200))
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	var rows []model.Record
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Table, err)
	}
	return rows, nil
}

// Ping selects one row from the configured table.
func (s *PostgRESTStore) Ping(ctx context.Context) error {
	if s.pingTable == "" {
		return nil
	}
	q := From(s.pingTable).LimitTo(1)
	if s.pingColumn != "" {
		q.Select(s.pingColumn)
	}
	_, err := s.Execute(ctx, q)
	return err
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (s *PostgRESTStore) Close() {}

// QueryParams renders q in PostgREST's horizontal filtering syntax.
func QueryParams(q *Query) (url.Values, error) {
	if q.Table == "" {
		return nil, fmt.Errorf("query has no table")
	}
	v := url.Values{}
	if len(q.Columns) > 0 {
		v.Set("select", strings.Join(q.Columns, ","))
	} else {
		v.Set("select", "*")
	}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEq, OpGte, OpLte, OpLike:
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		v.Add(f.Column, string(f.Op)+"."+restValue(f.Value))
	}
	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir + ".nullslast"
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v, nil
}

func restValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
