package store

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/gyeh/clinscore/internal/model"
)

// Limited throttles queries to a backing store.
type Limited struct {
	next    Store
	limiter *rate.Limiter
}

// NewLimited wraps next with a token bucket of qps and burst. A
// non-positive qps returns next unchanged.
func NewLimited(next Store, qps float64, burst int) Store {
	if qps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// Execute waits for a token then delegates.
func (l *Limited) Execute(ctx context.Context, q *Query) ([]model.Record, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Execute(ctx, q)
}

// Ping bypasses the limiter.
func (l *Limited) Ping(ctx context.Context) error { return l.next.Ping(ctx) }

// Close closes the wrapped store.
func (l *Limited) Close() { l.next.Close() }
