package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
	"github.com/gyeh/clinscore/internal/store"
)

// DERS version tags applied to merged DERS histories.
const (
	DERSVersion1 = "DERS-1"
	DERSVersion2 = "DERS-2"
)

var dersTags = map[model.Kind]string{
	model.KindDERS:  DERSVersion1,
	model.KindDERS2: DERSVersion2,
}

// GetScores returns a patient's scored history for one kind, newest first.
// A positive limit caps the number of assessments returned.
func (s *Service) GetScores(ctx context.Context, patient, kind string, limit int) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}
	info, bad := parseKind(kind, scoredKinds)
	if bad != nil {
		return *bad
	}
	if limit < 0 {
		return Invalid("Invalid parameters", "limit must be >= 0")
	}

	hist, err := s.history(ctx, id, info, DateFilter{}, limit)
	if err != nil {
		return Upstream(fmt.Sprintf("retrieve %s scores", info.Kind), err)
	}
	if hist.AssessmentCount == 0 {
		return NotFound("No %s assessments found for patient %s", info.DisplayName, id)
	}
	return OK(hist)
}

// history fetches and scores one kind for one patient within df.
func (s *Service) history(ctx context.Context, id string, info model.KindInfo, df DateFilter, limit int) (*model.ScoreHistory, error) {
	var scored []model.ScoredAssessment
	if info.Kind.IsDERS() {
		var err error
		scored, err = s.dersHistory(ctx, id, df, limit)
		if err != nil {
			return nil, err
		}
	} else {
		q := df.apply(s.patientQuery(s.table(info.Kind), id, false), s.opts.DateCol)
		if limit > 0 {
			q.LimitTo(limit)
		}
		rows, err := s.fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		scored, _ = s.scoreAll(rows, info.Kind)
	}

	h := &model.ScoreHistory{
		PatientID:       id,
		AssessmentType:  info.DisplayName,
		AssessmentCount: len(scored),
		Assessments:     scored,
	}
	if len(scored) > 0 {
		latest := scored[0]
		total := latest.TotalScore
		h.LatestScore = &total
		h.LatestSeverity = latest.Severity
		h.LatestScaled = latest.ScaledScore
	}
	return h, nil
}

// dersHistory merges both DERS tables, tags each row with its version,
// and applies limit after the merge.
func (s *Service) dersHistory(ctx context.Context, id string, df DateFilter, limit int) ([]model.ScoredAssessment, error) {
	versions := []model.Kind{model.KindDERS, model.KindDERS2}
	parts := make([][]model.ScoredAssessment, len(versions))

	g, gctx := errgroup.WithContext(ctx)
	for i, k := range versions {
		g.Go(func() error {
			q := df.apply(s.patientQuery(s.table(k), id, false), s.opts.DateCol)
			if limit > 0 {
				q.LimitTo(limit)
			}
			rows, err := s.fetch(gctx, q)
			if err != nil {
				return err
			}
			scored, _ := s.scoreAll(rows, k)
			for j := range scored {
				scored[j].DERSVersion = dersTags[k]
			}
			parts[i] = scored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := append(parts[0], parts[1]...)
	sortNewestFirst(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// sortNewestFirst orders by assessment date descending; undated rows sort last.
func sortNewestFirst(items []model.ScoredAssessment) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].AssessmentDate, items[j].AssessmentDate
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
}

// DateFilter bounds assessment dates. Empty fields are unbounded.
type DateFilter struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	start, end *time.Time
}

// parse validates the bounds and rejects an end before the start.
func (d *DateFilter) parse() error {
	if d.Start != "" {
		if d.start = normalize.ParseDate(d.Start); d.start == nil {
			return fmt.Errorf("invalid start date %q", d.Start)
		}
	}
	if d.End != "" {
		if d.end = normalize.ParseDate(d.End); d.end == nil {
			return fmt.Errorf("invalid end date %q", d.End)
		}
	}
	if d.start != nil && d.end != nil && d.end.Before(*d.start) {
		return fmt.Errorf("end date %s is before start date %s", d.End, d.Start)
	}
	return nil
}

func (d DateFilter) empty() bool { return d.Start == "" && d.End == "" }

func (d DateFilter) apply(q *store.Query, dateCol string) *store.Query {
	if d.start != nil {
		q.Gte(dateCol, *d.start)
	}
	if d.end != nil {
		q.Lte(dateCol, *d.end)
	}
	return q
}

// Section is one kind's slice of a patient's assessment overview.
type Section struct {
	*model.ScoreHistory
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LatestScore is the quick-reference entry for one kind.
type LatestScore struct {
	Score           *float64 `json:"score"`
	SeverityOrLevel string   `json:"severity_or_level,omitempty"`
}

// FiltersApplied echoes the filters used for an overview.
type FiltersApplied struct {
	AssessmentTypes []string    `json:"assessment_types"`
	DateRange       *DateFilter `json:"date_range"`
	Limit           *int        `json:"limit"`
}

// Overview is the cross-instrument view of one patient.
type Overview struct {
	PatientID           string                 `json:"patient_id"`
	TotalAssessments    int                    `json:"total_assessments"`
	AssessmentBreakdown map[string]Section     `json:"assessment_breakdown"`
	LatestScoresSummary map[string]LatestScore `json:"latest_scores_summary"`
	Summary             map[string]int         `json:"summary"`
	FiltersApplied      FiltersApplied         `json:"filters_applied"`
}

// GetAllAssessments returns scored histories for several kinds at once.
// Unknown kinds are dropped; a failure in one kind is recorded in its
// section and the others still return.
func (s *Service) GetAllAssessments(ctx context.Context, patient string, kinds []string, df DateFilter, limit int) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}
	if limit < 0 {
		return Invalid("Invalid parameters", "limit must be >= 0")
	}
	if err := df.parse(); err != nil {
		return Invalid("Invalid parameters", err.Error())
	}

	var infos []model.KindInfo
	if kinds == nil {
		for _, k := range scoredKinds {
			infos = append(infos, model.MustKind(k))
		}
	} else {
		for _, name := range lowerAll(kinds) {
			if info, bad := parseKind(name, scoredKinds); bad == nil {
				infos = append(infos, info)
			}
		}
	}
	if len(infos) == 0 {
		return Invalid("No valid assessment types specified", map[string]any{"valid_types": kindStrings(scoredKinds)})
	}

	sections := make([]Section, len(infos))
	var g errgroup.Group
	for i, info := range infos {
		g.Go(func() error {
			h, err := s.history(ctx, id, info, df, limit)
			switch {
			case err != nil:
				sections[i].Error = fmt.Sprintf("Failed to retrieve %s data: %v", info.Kind, err)
			case h.AssessmentCount == 0:
				sections[i].Message = fmt.Sprintf("No %s assessments found", info.Kind)
			default:
				sections[i].ScoreHistory = h
			}
			return nil
		})
	}
	_ = g.Wait()

	ov := Overview{
		PatientID:           id,
		AssessmentBreakdown: make(map[string]Section, len(infos)),
		LatestScoresSummary: map[string]LatestScore{},
		Summary:             make(map[string]int, len(infos)),
		FiltersApplied:      FiltersApplied{AssessmentTypes: make([]string, len(infos))},
	}
	for i, info := range infos {
		name := string(info.Kind)
		sec := sections[i]
		ov.AssessmentBreakdown[name] = sec
		ov.FiltersApplied.AssessmentTypes[i] = name
		count := 0
		if sec.ScoreHistory != nil {
			count = sec.AssessmentCount
			ov.LatestScoresSummary[name] = LatestScore{Score: sec.LatestScore, SeverityOrLevel: sec.LatestSeverity}
		}
		ov.TotalAssessments += count
		ov.Summary[name+"_count"] = count
	}
	if !df.empty() {
		ov.FiltersApplied.DateRange = &df
	}
	if limit > 0 {
		ov.FiltersApplied.Limit = &limit
	}
	return OK(ov)
}

func kindStrings(kinds []model.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
