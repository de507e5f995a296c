// Package cache is a bounded in-process TTL cache for tool results.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Defaults used by the server when the config leaves them unset.
const (
	DefaultMaxSize = 1000
	DefaultTTL     = 5 * time.Minute
)

type entry struct {
	value    any
	expires  time.Time
	accessed time.Time
}

// Cache holds values until their TTL elapses. Expiry is checked lazily on
// read. When full, inserting a new key evicts the least recently accessed
// entry.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*entry
	maxSize    int
	defaultTTL time.Duration
	hits       uint64
	misses     uint64
	evictions  uint64

	group singleflight.Group
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns an empty cache. Non-positive arguments fall back to defaults.
func New(maxSize int, defaultTTL time.Duration, opts ...Option) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{
		items:      make(map[string]*entry),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the live value for key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if now.After(e.expires) {
		delete(c.items, key)
		c.misses++
		return nil, false
	}
	e.accessed = now
	c.hits++
	return e.value, true
}

// Set stores value under key. A ttl of zero uses the default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = &entry{value: value, expires: now.Add(ttl), accessed: now}
}

// evictOldest removes the entry with the earliest access time. Caller holds mu.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.items {
		if first || e.accessed.Before(oldest) {
			oldestKey, oldest, first = k, e.accessed, false
		}
	}
	if !first {
		delete(c.items, oldestKey)
		c.evictions++
	}
}

// GetOrLoad returns the cached value for key, or calls load once across
// concurrent callers and caches a successful result for ttl.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (any, error)) (any, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	return v, false, err
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Clear removes every entry and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*entry)
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Size               int     `json:"cache_size"`
	MaxSize            int     `json:"max_size"`
	DefaultTTLSeconds  int     `json:"default_ttl_seconds"`
	UtilizationPercent float64 `json:"cache_utilization_percent"`
	Hits               uint64  `json:"hits"`
	Misses             uint64  `json:"misses"`
	Evictions          uint64  `json:"evictions"`
}

// Stats reports current usage.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	util := float64(len(c.items)) / float64(c.maxSize) * 100
	return Stats{
		Size:               len(c.items),
		MaxSize:            c.maxSize,
		DefaultTTLSeconds:  int(c.defaultTTL / time.Second),
		UtilizationPercent: float64(int(util*100+0.5)) / 100,
		Hits:               c.hits,
		Misses:             c.misses,
		Evictions:          c.evictions,
	}
}
