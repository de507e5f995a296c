package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gyeh/clinscore/internal/cache"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// CacheStatus reports cache usage.
type CacheStatus struct {
	cache.Stats
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// CacheStatus returns current cache statistics.
func (s *Service) CacheStatus() Result {
	return OK(CacheStatus{
		Stats:     s.cache.Stats(),
		Status:    "operational",
		Timestamp: isoTime(s.now()),
	})
}

// Health states, worst last.
const (
	HealthHealthy   = "healthy"
	HealthWarning   = "warning"
	HealthCritical  = "critical"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
	HealthError     = "error"
)

// slowStore is the ping latency above which the store is reported slow.
const slowStore = 5 * time.Second

// HealthOptions selects which checks Health runs.
type HealthOptions struct {
	IncludeDependencies bool
	IncludePerformance  bool
	Timeout             time.Duration
}

// Check is the outcome of one health check.
type Check struct {
	Status              string   `json:"status"`
	Message             string   `json:"message,omitempty"`
	ResponseTimeSeconds *float64 `json:"response_time_seconds,omitempty"`
	RecordCount         *int     `json:"record_count,omitempty"`
	UsagePercent        *float64 `json:"usage_percent,omitempty"`
	HeapAllocMB         *float64 `json:"heap_alloc_mb,omitempty"`
}

// HealthReport is the server's self-assessment.
type HealthReport struct {
	Status             string           `json:"status"`
	Timestamp          string           `json:"timestamp"`
	Version            string           `json:"version"`
	UptimeSeconds      float64          `json:"uptime_seconds"`
	Checks             map[string]Check `json:"checks"`
	Tables             map[string]Check `json:"tables,omitempty"`
	PerformanceMetrics map[string]any   `json:"performance_metrics,omitempty"`
}

// Health checks the process and, optionally, the backing store and every
// table the service reads.
func (s *Service) Health(ctx context.Context, opts HealthOptions) Result {
	now := s.now()
	rep := HealthReport{
		Status:        HealthHealthy,
		Timestamp:     isoTime(now),
		Version:       s.opts.Version,
		UptimeSeconds: scoring.Round(now.Sub(s.started).Seconds(), 3),
		Checks: map[string]Check{
			"server": {Status: HealthHealthy, Message: "Server is running"},
		},
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage := 0.0
	if ms.Sys > 0 {
		usage = scoring.Round(float64(ms.HeapInuse)/float64(ms.Sys)*100, 1)
	}
	heapMB := scoring.Round(float64(ms.HeapAlloc)/(1<<20), 2)
	mem := Check{Status: HealthHealthy, UsagePercent: &usage, HeapAllocMB: &heapMB}
	switch {
	case usage > 90:
		mem.Status = HealthCritical
	case usage > 75:
		mem.Status = HealthWarning
	}
	if mem.Status != HealthHealthy {
		rep.Status = HealthDegraded
	}
	rep.Checks["memory"] = mem

	if opts.IncludeDependencies {
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		s.checkStore(ctx, &rep)
		s.checkTables(ctx, &rep)
	}

	if opts.IncludePerformance {
		rep.PerformanceMetrics = map[string]any{
			"goroutines":     runtime.NumGoroutine(),
			"num_cpu":        runtime.NumCPU(),
			"gc_cycles":      ms.NumGC,
			"heap_objects":   ms.HeapObjects,
			"sys_mb":         scoring.Round(float64(ms.Sys)/(1<<20), 2),
			"cache":          s.cache.Stats(),
			"go_version":     runtime.Version(),
			"uptime_seconds": rep.UptimeSeconds,
		}
	}

	s.log.Info().Str("status", rep.Status).Int("checks", len(rep.Checks)).Msg("health check completed")
	return OK(rep)
}

func (s *Service) checkStore(ctx context.Context, rep *HealthReport) {
	start := time.Now()
	err := s.store.Ping(ctx)
	elapsed := time.Since(start)
	secs := scoring.Round(elapsed.Seconds(), 3)
	if err != nil {
		rep.Checks["database"] = Check{Status: HealthError, Message: fmt.Sprintf("Database connectivity failed: %v", err)}
		rep.Status = HealthUnhealthy
		s.log.Error().Err(err).Msg("database connectivity check failed")
		return
	}
	c := Check{Status: HealthHealthy, ResponseTimeSeconds: &secs,
		Message: fmt.Sprintf("Database responsive (%.2fs)", elapsed.Seconds())}
	if elapsed > slowStore {
		c.Status = HealthWarning
		c.Message = fmt.Sprintf("Database responding slowly (%.2fs)", elapsed.Seconds())
		if rep.Status == HealthHealthy {
			rep.Status = HealthDegraded
		}
	}
	rep.Checks["database"] = c
}

func (s *Service) checkTables(ctx context.Context, rep *HealthReport) {
	rep.Tables = map[string]Check{}
	checkTable := func(key, table string) {
		start := time.Now()
		rows, err := s.store.Execute(ctx, store.From(table).LimitTo(1))
		secs := scoring.Round(time.Since(start).Seconds(), 3)
		if err != nil {
			rep.Tables[key] = Check{Status: HealthError, Message: err.Error()}
			if rep.Status == HealthHealthy {
				rep.Status = HealthDegraded
			}
			return
		}
		n := len(rows)
		rep.Tables[key] = Check{Status: "accessible", ResponseTimeSeconds: &secs, RecordCount: &n}
	}
	for _, k := range model.AllKinds {
		checkTable(string(k.Kind), s.table(k.Kind))
	}
	checkTable("substance_history", s.opts.SubstanceTable)
}
