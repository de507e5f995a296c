// Package pagination holds page parameters and response metadata for
// list-style operations.
package pagination

import "fmt"

// Bounds and defaults for page parameters.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Params selects one page of a list.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Default returns page 1 at the default page size.
func Default() Params {
	return Params{Page: 1, PageSize: DefaultPageSize}
}

// Validate rejects pages below 1 and sizes outside 1..MaxPageSize.
func (p Params) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", p.Page)
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", MaxPageSize, p.PageSize)
	}
	return nil
}

// Offset is the zero-based index of the first row on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Range returns the inclusive row range covered by the page.
func (p Params) Range() (start, end int) {
	start = p.Offset()
	return start, start + p.PageSize - 1
}

// Meta describes the page returned to the caller.
type Meta struct {
	Page          int  `json:"page"`
	PageSize      int  `json:"page_size"`
	TotalCount    *int `json:"total_count"`
	HasMore       bool `json:"has_more"`
	ReturnedCount int  `json:"returned_count"`
}

// MetaFor builds metadata for a page read from the store without a count
// query. A full page is assumed to have more rows behind it, and the total
// is only known when the first page comes back short.
func MetaFor(p Params, returned int) Meta {
	m := Meta{
		Page:          p.Page,
		PageSize:      p.PageSize,
		HasMore:       returned == p.PageSize,
		ReturnedCount: returned,
	}
	if p.Page == 1 && returned < p.PageSize {
		n := returned
		m.TotalCount = &n
	}
	return m
}

// Slice pages an in-memory list. The total is exact.
func Slice[T any](items []T, p Params) ([]T, Meta) {
	total := len(items)
	start := min(p.Offset(), total)
	end := min(start+p.PageSize, total)
	page := items[start:end]
	return page, Meta{
		Page:          p.Page,
		PageSize:      p.PageSize,
		TotalCount:    &total,
		HasMore:       end < total,
		ReturnedCount: len(page),
	}
}
