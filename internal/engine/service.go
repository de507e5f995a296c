// Package engine implements the assessment operations exposed to tool
// callers. Every operation returns a Result and never panics on data.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/clinscore/internal/cache"
	"github.com/gyeh/clinscore/internal/config"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// Options names the backing tables and columns the service reads.
type Options struct {
	Tables         map[model.Kind]string
	SubstanceTable string
	PatientCol     string
	DateCol        string
	SummaryTTL     time.Duration
	Version        string
}

// OptionsFromConfig resolves table and column names from cfg.
func OptionsFromConfig(cfg *config.Config, version string) Options {
	tables := make(map[model.Kind]string, len(model.AllKinds))
	for _, k := range model.AllKinds {
		tables[k.Kind] = cfg.Table(k.Kind)
	}
	return Options{
		Tables:         tables,
		SubstanceTable: cfg.SubstanceTable,
		PatientCol:     cfg.PatientColumn,
		DateCol:        cfg.DateColumn,
		SummaryTTL:     cfg.Cache.SummaryTTL,
		Version:        version,
	}
}

func (o *Options) setDefaults() {
	if o.Tables == nil {
		o.Tables = map[model.Kind]string{}
	}
	for _, k := range model.AllKinds {
		if o.Tables[k.Kind] == "" {
			o.Tables[k.Kind] = k.Table
		}
	}
	if o.SubstanceTable == "" {
		o.SubstanceTable = model.SubstanceTable
	}
	if o.PatientCol == "" {
		o.PatientCol = model.DefaultPatientColumn
	}
	if o.DateCol == "" {
		o.DateCol = model.DefaultDateColumn
	}
	if o.SummaryTTL <= 0 {
		o.SummaryTTL = 30 * time.Minute
	}
	if o.Version == "" {
		o.Version = "dev"
	}
}

// Service runs assessment operations against a Store.
type Service struct {
	store   store.Store
	cache   *cache.Cache
	scorer  *scoring.Scorer
	log     zerolog.Logger
	opts    Options
	now     func() time.Time
	started time.Time
}

// New returns a Service. A nil cache or scorer gets a default instance.
func New(st store.Store, c *cache.Cache, sc *scoring.Scorer, log zerolog.Logger, opts Options) *Service {
	opts.setDefaults()
	if c == nil {
		c = cache.New(cache.DefaultMaxSize, cache.DefaultTTL)
	}
	if sc == nil {
		sc = scoring.NewScorer(nil)
	}
	return &Service{
		store:   st,
		cache:   c,
		scorer:  sc,
		log:     log,
		opts:    opts,
		now:     time.Now,
		started: time.Now(),
	}
}

// Options returns the resolved table and column names.
func (s *Service) Options() Options { return s.opts }

func (s *Service) table(k model.Kind) string { return s.opts.Tables[k] }

// fetch executes q and logs its shape and latency.
func (s *Service) fetch(ctx context.Context, q *store.Query) ([]model.Record, error) {
	start := time.Now()
	rows, err := s.store.Execute(ctx, q)
	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("query", q.String()).
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("store query")
	return rows, err
}

// patientQuery selects every row of table for one patient, newest first
// unless ascending is set.
func (s *Service) patientQuery(table, patient string, ascending bool) *store.Query {
	return store.From(table).
		Eq(s.opts.PatientCol, patient).
		OrderBy(s.opts.DateCol, !ascending)
}

// score scores rec as kind and fills the identifying fields.
func (s *Service) score(rec model.Record, kind model.Kind) model.ScoredAssessment {
	sa := s.scorer.Score(rec, kind)
	sa.PatientID = rec.String(s.opts.PatientCol)
	sa.AssessmentDate = rec.Time(s.opts.DateCol)
	sa.Record = rec
	return sa
}

// scoreAll scores rows against one resolution built from their union of
// columns. The returned resolution is empty when no column matched.
func (s *Service) scoreAll(rows []model.Record, kind model.Kind) ([]model.ScoredAssessment, scoring.Resolution) {
	res := scoring.Resolve(kind, columnsOf(rows))
	out := make([]model.ScoredAssessment, len(rows))
	for i, r := range rows {
		sa := s.scorer.ScoreResolved(r, res)
		sa.PatientID = r.String(s.opts.PatientCol)
		sa.AssessmentDate = r.Time(s.opts.DateCol)
		sa.Record = r
		out[i] = sa
	}
	return out, res
}

const (
	minPatientIDLen = 2
	maxPatientIDLen = 50
)

// patientID trims and upper-cases raw, rejecting ids outside 2..50 characters.
func patientID(raw string) (string, *Result) {
	id := normalize.PatientID(raw)
	if n := len(id); n < minPatientIDLen || n > maxPatientIDLen {
		r := Invalid("Invalid parameters",
			fmt.Sprintf("patient_id must be between %d and %d characters", minPatientIDLen, maxPatientIDLen))
		return "", &r
	}
	return id, nil
}

// parseKind accepts name only if it is one of allowed.
func parseKind(name string, allowed []model.Kind) (model.KindInfo, *Result) {
	info, ok := model.KindByName(name)
	if ok {
		for _, k := range allowed {
			if k == info.Kind {
				return info, nil
			}
		}
	}
	r := Invalid(fmt.Sprintf("Invalid assessment type: %s", name),
		map[string]any{"valid_types": kindStrings(allowed)})
	return model.KindInfo{}, &r
}

var (
	clinicalKinds = []model.Kind{model.KindPTSD, model.KindPHQ, model.KindGAD, model.KindWHO}
	scoredKinds   = []model.Kind{model.KindPTSD, model.KindPHQ, model.KindGAD, model.KindWHO, model.KindDERS}
)

// resultError carries a non-ok Result through the cache loader so that
// only successful payloads are stored.
type resultError struct{ r Result }

func (e *resultError) Error() string { return string(e.r.Status) + ": " + e.r.Message }

// cached runs fn through the cache under a key derived from name and args.
func (s *Service) cached(ctx context.Context, name string, args map[string]string, ttl time.Duration, fn func(context.Context) Result) Result {
	key := cacheKey(name, args)
	v, hit, err := s.cache.GetOrLoad(ctx, key, ttl, func(ctx context.Context) (any, error) {
		r := fn(ctx)
		if !r.IsOK() {
			return nil, &resultError{r}
		}
		return r.Payload, nil
	})
	if err != nil {
		var re *resultError
		if errors.As(err, &re) {
			return re.r
		}
		return Upstream("load "+name, err)
	}
	s.log.Debug().Str("op", name).Bool("cache_hit", hit).Msg("cached result")
	return OK(v)
}

func cacheKey(name string, args map[string]string) string {
	return normalize.ArgsHash(name, args)
}

func columnsOf(rows []model.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for c := range r {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func isoTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
