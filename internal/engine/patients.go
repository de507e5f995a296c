package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
	"github.com/gyeh/clinscore/internal/pagination"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// activeWindow is how recent a patient's last assessment must be for
// active-only listings.
const activeWindow = 365 * 24 * time.Hour

// PatientEntry is one row of a patient listing.
type PatientEntry struct {
	PatientID        string     `json:"patient_id"`
	LatestAssessment *time.Time `json:"latest_assessment"`
}

// ListingMetadata echoes the listing filters.
type ListingMetadata struct {
	AssessmentFilter string `json:"assessment_filter,omitempty"`
	ActiveOnly       bool   `json:"active_only"`
	TableQueried     string `json:"table_queried"`
}

// PatientList is one page of patients.
type PatientList struct {
	Patients   []PatientEntry  `json:"patients"`
	Pagination pagination.Meta `json:"pagination"`
	Metadata   ListingMetadata `json:"metadata"`
}

// ListPatients pages through the patients with assessments of kind
// (PTSD when empty). The store is paged by assessment row and the page is
// then deduplicated by patient, so a page may hold fewer patients than
// page_size.
func (s *Service) ListPatients(ctx context.Context, p pagination.Params, kind string, activeOnly bool) Result {
	if err := p.Validate(); err != nil {
		return Invalid("Invalid parameters", err.Error())
	}
	k := model.KindPTSD
	if kind != "" {
		info, ok := model.KindByName(kind)
		if !ok {
			return Invalid(fmt.Sprintf("Invalid assessment type: %s", kind), map[string]any{"valid_types": model.KindNames()})
		}
		k = info.Kind
	}

	args := map[string]string{
		"page":        strconv.Itoa(p.Page),
		"page_size":   strconv.Itoa(p.PageSize),
		"kind":        string(k),
		"active_only": strconv.FormatBool(activeOnly),
	}
	return s.cached(ctx, "list_patients", args, 0, func(ctx context.Context) Result {
		table := s.table(k)
		q := store.From(table).
			Select(s.opts.PatientCol, s.opts.DateCol).
			OrderBy(s.opts.DateCol, true)
		if activeOnly {
			q.Gte(s.opts.DateCol, s.now().Add(-activeWindow))
		}
		q.Range(p.Range())

		rows, err := s.fetch(ctx, q)
		if err != nil {
			return Upstream("retrieve patients", err)
		}

		patients := []PatientEntry{}
		index := map[string]int{}
		for _, r := range rows {
			id := r.String(s.opts.PatientCol)
			if id == "" {
				continue
			}
			d := r.Time(s.opts.DateCol)
			if i, ok := index[id]; ok {
				cur := patients[i].LatestAssessment
				if d != nil && (cur == nil || d.After(*cur)) {
					patients[i].LatestAssessment = d
				}
				continue
			}
			index[id] = len(patients)
			patients = append(patients, PatientEntry{PatientID: id, LatestAssessment: d})
		}

		meta := pagination.MetaFor(p, len(rows))
		meta.ReturnedCount = len(patients)
		if meta.TotalCount != nil {
			n := len(patients)
			meta.TotalCount = &n
		}
		s.log.Debug().Int("rows", len(rows)).Int("unique_patients", len(patients)).Msg("patients listed")
		return OK(PatientList{
			Patients:   patients,
			Pagination: meta,
			Metadata:   ListingMetadata{AssessmentFilter: kind, ActiveOnly: activeOnly, TableQueried: table},
		})
	})
}

// ScoreMatch is one assessment whose total fell inside a searched range.
type ScoreMatch struct {
	PatientID      string     `json:"patient_id"`
	AssessmentDate *time.Time `json:"assessment_date"`
	TotalScore     float64    `json:"total_score"`
	AssessmentType string     `json:"assessment_type"`
}

// SearchCriteria echoes a score-range search.
type SearchCriteria struct {
	AssessmentType string   `json:"assessment_type"`
	MinScore       *float64 `json:"min_score"`
	MaxScore       *float64 `json:"max_score"`
}

// ScoreSearch is one page of score-range matches, highest total first.
type ScoreSearch struct {
	Patients       []ScoreMatch    `json:"patients"`
	Pagination     pagination.Meta `json:"pagination"`
	SearchCriteria SearchCriteria  `json:"search_criteria"`
	Message        string          `json:"message,omitempty"`
}

// SearchByScoreRange finds assessments of kind whose total lies within
// [min, max]. Either bound may be nil.
func (s *Service) SearchByScoreRange(ctx context.Context, kind string, minScore, maxScore *float64, p pagination.Params) Result {
	if err := p.Validate(); err != nil {
		return Invalid("Invalid parameters", err.Error())
	}
	info, ok := model.KindByName(kind)
	if !ok {
		return Invalid(fmt.Sprintf("Invalid assessment type: %s", kind), map[string]any{"valid_types": model.KindNames()})
	}
	if minScore != nil && maxScore != nil && *minScore > *maxScore {
		return Invalid("Invalid parameters", fmt.Sprintf("min_score %v is greater than max_score %v", *minScore, *maxScore))
	}

	out := ScoreSearch{
		Patients:       []ScoreMatch{},
		SearchCriteria: SearchCriteria{AssessmentType: string(info.Kind), MinScore: minScore, MaxScore: maxScore},
	}
	rows, err := s.fetch(ctx, store.From(s.table(info.Kind)))
	if err != nil {
		return Upstream("search by score range", err)
	}
	scored, res := s.scoreAll(rows, info.Kind)
	switch {
	case len(rows) == 0:
		out.Message = fmt.Sprintf("No %s data found", info.Kind)
	case res.Empty():
		out.Message = fmt.Sprintf("No score columns found for %s", info.Kind)
	}

	var matches []ScoreMatch
	if !res.Empty() {
		for _, sa := range scored {
			if minScore != nil && sa.TotalScore < *minScore {
				continue
			}
			if maxScore != nil && sa.TotalScore > *maxScore {
				continue
			}
			matches = append(matches, ScoreMatch{
				PatientID:      sa.PatientID,
				AssessmentDate: sa.AssessmentDate,
				TotalScore:     sa.TotalScore,
				AssessmentType: string(info.Kind),
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].TotalScore > matches[j].TotalScore })

	page, meta := pagination.Slice(matches, p)
	if page != nil {
		out.Patients = page
	}
	out.Pagination = meta
	return OK(out)
}

// SummaryDates bounds a table's assessment dates.
type SummaryDates struct {
	Earliest *time.Time `json:"earliest"`
	Latest   *time.Time `json:"latest"`
}

// ScoreStatistics describes the distribution of totals in a table.
type ScoreStatistics struct {
	Mean              float64              `json:"mean_total_score"`
	Median            float64              `json:"median_total_score"`
	Std               float64              `json:"std_total_score"`
	Min               float64              `json:"min_total_score"`
	Max               float64              `json:"max_total_score"`
	ScoreDistribution []scoring.ValueCount `json:"score_distribution"`
}

// SummaryStats is the table-wide summary for one kind.
type SummaryStats struct {
	AssessmentType   string           `json:"assessment_type"`
	TotalAssessments int              `json:"total_assessments"`
	UniquePatients   int              `json:"unique_patients"`
	DateRange        SummaryDates     `json:"date_range"`
	ScoreStatistics  *ScoreStatistics `json:"score_statistics,omitempty"`
	Message          string           `json:"message,omitempty"`
	ComputedAt       string           `json:"computed_at"`
}

// SummaryStats summarizes every stored assessment of kind. Results are
// cached for the summary TTL; forceRefresh drops the cached entry first.
func (s *Service) SummaryStats(ctx context.Context, kind string, forceRefresh bool) Result {
	info, ok := model.KindByName(kind)
	if !ok {
		return Invalid(fmt.Sprintf("Invalid assessment type: %s", kind), map[string]any{"valid_types": model.KindNames()})
	}
	args := map[string]string{"kind": string(info.Kind)}
	if forceRefresh {
		s.cache.Delete(cacheKey("summary_stats", args))
		s.log.Info().Str("kind", string(info.Kind)).Msg("summary cache entry dropped on force refresh")
	}
	return s.cached(ctx, "summary_stats", args, s.opts.SummaryTTL, func(ctx context.Context) Result {
		rows, err := s.fetch(ctx, store.From(s.table(info.Kind)))
		if err != nil {
			return Upstream("retrieve statistics", err)
		}
		st := SummaryStats{
			AssessmentType:   string(info.Kind),
			TotalAssessments: len(rows),
			UniquePatients:   s.uniquePatients(rows),
			DateRange:        s.dateBounds(rows),
			ComputedAt:       isoTime(s.now()),
		}
		if len(rows) == 0 {
			st.Message = fmt.Sprintf("No %s data found", info.Kind)
			return OK(st)
		}
		scored, res := s.scoreAll(rows, info.Kind)
		if res.Empty() {
			st.Message = fmt.Sprintf("No score columns found for %s", info.Kind)
			return OK(st)
		}
		totals := totalsOf(scored)
		d := scoring.Describe(totals)
		st.ScoreStatistics = &ScoreStatistics{
			Mean:              d.Mean,
			Median:            d.Median,
			Std:               d.Std,
			Min:               d.Min,
			Max:               d.Max,
			ScoreDistribution: scoring.TopValues(totals, 10),
		}
		return OK(st)
	})
}

// LatestScores is the newest scored assessment of every patient for a kind.
type LatestScores struct {
	AssessmentType string                   `json:"assessment_type"`
	TotalPatients  int                      `json:"total_patients"`
	LatestScores   []model.ScoredAssessment `json:"latest_scores"`
}

// LatestScores returns each patient's newest assessment of kind, scored.
// DERS merges both versions before picking the newest.
func (s *Service) LatestScores(ctx context.Context, kind string) Result {
	info, bad := parseKind(kind, scoredKinds)
	if bad != nil {
		return *bad
	}
	return s.cached(ctx, "latest_scores", map[string]string{"kind": string(info.Kind)}, 0, func(ctx context.Context) Result {
		kinds := []model.Kind{info.Kind}
		if info.Kind == model.KindDERS {
			kinds = []model.Kind{model.KindDERS, model.KindDERS2}
		}
		var all []model.ScoredAssessment
		for _, k := range kinds {
			rows, err := s.fetch(ctx, store.From(s.table(k)).OrderBy(s.opts.DateCol, true))
			if err != nil {
				return Upstream(fmt.Sprintf("retrieve latest %s scores", info.Kind), err)
			}
			scored, _ := s.scoreAll(scoring.LatestPerPatient(rows, s.opts.PatientCol, s.opts.DateCol), k)
			for i := range scored {
				scored[i].DERSVersion = dersTags[k]
			}
			all = append(all, scored...)
		}
		sortNewestFirst(all)

		latest := []model.ScoredAssessment{}
		seen := map[string]bool{}
		for _, sa := range all {
			if sa.PatientID == "" || seen[sa.PatientID] {
				continue
			}
			seen[sa.PatientID] = true
			latest = append(latest, sa)
		}
		return OK(LatestScores{
			AssessmentType: string(info.Kind),
			TotalPatients:  len(latest),
			LatestScores:   latest,
		})
	})
}

// PopulationStatistics is the cohort-wide distribution for one kind.
type PopulationStatistics struct {
	AssessmentType string                         `json:"assessment_type"`
	TotalRecords   int                            `json:"total_records"`
	UniquePatients int                            `json:"unique_patients"`
	TotalScore     scoring.Description            `json:"total_score"`
	Statistics     map[string]scoring.Description `json:"statistics"`
}

// PopulationStatistics describes totals and each question column of kind
// across every stored assessment.
func (s *Service) PopulationStatistics(ctx context.Context, kind string) Result {
	info, bad := parseKind(kind, clinicalKinds)
	if bad != nil {
		return *bad
	}
	return s.cached(ctx, "population_statistics", map[string]string{"kind": string(info.Kind)}, 0, func(ctx context.Context) Result {
		rows, err := s.fetch(ctx, store.From(s.table(info.Kind)))
		if err != nil {
			return Upstream("retrieve population statistics", err)
		}
		if len(rows) == 0 {
			return NotFound("No data found for %s", info.Kind)
		}
		scored, res := s.scoreAll(rows, info.Kind)
		out := PopulationStatistics{
			AssessmentType: string(info.Kind),
			TotalRecords:   len(rows),
			UniquePatients: s.uniquePatients(rows),
			Statistics:     make(map[string]scoring.Description, len(res.Columns)),
		}
		if !res.Empty() {
			out.TotalScore = scoring.Describe(totalsOf(scored))
		}
		for _, col := range res.Columns {
			if vals := numericValues(rows, col); len(vals) > 0 {
				out.Statistics[col] = scoring.Describe(vals)
			}
		}
		return OK(out)
	})
}

func (s *Service) uniquePatients(rows []model.Record) int {
	seen := map[string]bool{}
	for _, r := range rows {
		if id := r.String(s.opts.PatientCol); id != "" {
			seen[id] = true
		}
	}
	return len(seen)
}

func (s *Service) dateBounds(rows []model.Record) SummaryDates {
	var d SummaryDates
	for _, r := range rows {
		t := r.Time(s.opts.DateCol)
		if t == nil {
			continue
		}
		if d.Earliest == nil || t.Before(*d.Earliest) {
			d.Earliest = t
		}
		if d.Latest == nil || t.After(*d.Latest) {
			d.Latest = t
		}
	}
	return d
}

func totalsOf(scored []model.ScoredAssessment) []float64 {
	out := make([]float64, len(scored))
	for i, sa := range scored {
		out[i] = sa.TotalScore
	}
	return out
}

// numericValues collects the cells of col that coerce to a number.
func numericValues(rows []model.Record, col string) []float64 {
	var out []float64
	for _, r := range rows {
		if v := normalize.Float(r[col], math.NaN()); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
