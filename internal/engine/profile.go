package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// ProfileSection is one kind's history inside a patient profile.
type ProfileSection struct {
	Count  int                      `json:"count"`
	Latest *model.ScoredAssessment  `json:"latest"`
	All    []model.ScoredAssessment `json:"all"`
}

// ProfileDERS holds both DERS versions, merged newest first.
type ProfileDERS struct {
	DERS1Count  int                      `json:"ders1_count"`
	DERS2Count  int                      `json:"ders2_count"`
	Assessments []model.ScoredAssessment `json:"assessments"`
}

// ProfileSubstance summarizes substance rows inside a patient profile.
type ProfileSubstance struct {
	TotalTracked     int            `json:"total_tracked"`
	ActiveCount      int            `json:"active_count"`
	ActiveSubstances []model.Record `json:"active_substances"`
	AllSubstances    []model.Record `json:"all_substances"`
}

// ProfileSummary counts what a profile holds.
type ProfileSummary struct {
	TotalAssessments     int  `json:"total_assessments"`
	HasSubstanceData     bool `json:"has_substance_data"`
	ActiveSubstanceCount int  `json:"active_substance_count"`
}

// Profile is everything stored for one patient.
type Profile struct {
	PatientID    string                    `json:"patient_id"`
	Assessments  map[string]ProfileSection `json:"assessments"`
	DERS         ProfileDERS               `json:"ders"`
	SubstanceUse *ProfileSubstance         `json:"substance_use,omitempty"`
	Summary      ProfileSummary            `json:"summary"`
	Errors       map[string]string         `json:"errors,omitempty"`
}

// PatientProfile gathers every assessment and the substance history of a
// patient. Sources are fetched concurrently; a failed source is listed
// under errors and the rest still return.
func (s *Service) PatientProfile(ctx context.Context, patient string) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}

	sources := append(append([]model.Kind{}, clinicalKinds...), model.KindDERS, model.KindDERS2)
	scored := make(map[model.Kind][]model.ScoredAssessment, len(sources))
	var substances []model.Record
	errs := map[string]string{}
	var mu sync.Mutex

	var g errgroup.Group
	for _, k := range sources {
		g.Go(func() error {
			rows, err := s.fetch(ctx, s.patientQuery(s.table(k), id, false))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[string(k)] = err.Error()
				return nil
			}
			sa, _ := s.scoreAll(rows, k)
			for i := range sa {
				sa[i].DERSVersion = dersTags[k]
			}
			scored[k] = sa
			return nil
		})
	}
	g.Go(func() error {
		rows, err := s.fetch(ctx, store.From(s.opts.SubstanceTable).Eq(s.opts.PatientCol, id))
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs["substance_use"] = err.Error()
			return nil
		}
		substances = rows
		return nil
	})
	_ = g.Wait()

	if len(errs) == len(sources)+1 {
		return Result{Status: StatusUpstream, Message: "Failed to retrieve patient profile: every source failed", Details: errs}
	}

	p := Profile{PatientID: id, Assessments: make(map[string]ProfileSection, len(clinicalKinds))}
	for _, k := range clinicalKinds {
		all := scored[k]
		sec := ProfileSection{Count: len(all), All: all}
		if sec.All == nil {
			sec.All = []model.ScoredAssessment{}
		}
		if len(all) > 0 {
			sec.Latest = &all[0]
		}
		p.Assessments[string(k)] = sec
		p.Summary.TotalAssessments += len(all)
	}

	ders := append(append([]model.ScoredAssessment{}, scored[model.KindDERS]...), scored[model.KindDERS2]...)
	sortNewestFirst(ders)
	p.DERS = ProfileDERS{
		DERS1Count:  len(scored[model.KindDERS]),
		DERS2Count:  len(scored[model.KindDERS2]),
		Assessments: ders,
	}
	p.Summary.TotalAssessments += len(ders)

	if len(substances) > 0 {
		active := []model.Record{}
		for _, r := range substances {
			if normalize.Int(r[scoring.ColUseFlag], 0) == 1 {
				active = append(active, r)
			}
		}
		p.SubstanceUse = &ProfileSubstance{
			TotalTracked:     len(substances),
			ActiveCount:      len(active),
			ActiveSubstances: active,
			AllSubstances:    substances,
		}
		p.Summary.HasSubstanceData = true
		p.Summary.ActiveSubstanceCount = len(active)
	}
	if len(errs) > 0 {
		p.Errors = errs
	}
	if p.Summary.TotalAssessments == 0 && !p.Summary.HasSubstanceData && len(errs) == 0 {
		return NotFound("No data found for patient %s", id)
	}
	return OK(p)
}

// Timeframes accepted by Trends, as look-back windows. Zero means no cutoff.
var Timeframes = map[string]time.Duration{
	"30d":  30 * 24 * time.Hour,
	"90d":  90 * 24 * time.Hour,
	"180d": 180 * 24 * time.Hour,
	"1y":   365 * 24 * time.Hour,
	"all":  0,
}

// Per-column trend directions.
const (
	DirectionImproving = "improving"
	DirectionWorsening = "worsening"
	DirectionStable    = "stable"
)

// ColumnTrend is the movement of one value across a window.
type ColumnTrend struct {
	FirstValue     float64 `json:"first_value"`
	LastValue      float64 `json:"last_value"`
	Mean           float64 `json:"mean"`
	Std            float64 `json:"std"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	TrendDirection string  `json:"trend_direction"`
}

// WindowRange bounds the assessments inside a trend window.
type WindowRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// KindTrend is one kind's movement within a trend window.
type KindTrend struct {
	AssessmentCount int                    `json:"assessment_count"`
	DateRange       WindowRange            `json:"date_range"`
	Total           model.Trend            `json:"total"`
	Trends          map[string]ColumnTrend `json:"trends"`
}

// TrendReport is a patient's movement across every clinical kind.
type TrendReport struct {
	PatientID        string               `json:"patient_id"`
	Timeframe        string               `json:"timeframe"`
	CutoffDate       *time.Time           `json:"cutoff_date"`
	AssessmentTrends map[string]KindTrend `json:"assessment_trends"`
	Errors           map[string]string    `json:"errors,omitempty"`
}

// Trends reports how a patient's totals and question answers moved within
// timeframe (30d, 90d, 180d, 1y or all). Undated rows are outside every
// bounded window.
func (s *Service) Trends(ctx context.Context, patient, timeframe string) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}
	window, ok := Timeframes[timeframe]
	if !ok {
		return Invalid("Invalid timeframe. Use: 30d, 90d, 180d, 1y, all", nil)
	}
	var cutoff *time.Time
	if window > 0 {
		t := s.now().Add(-window)
		cutoff = &t
	}

	out := TrendReport{
		PatientID:        id,
		Timeframe:        timeframe,
		CutoffDate:       cutoff,
		AssessmentTrends: map[string]KindTrend{},
	}
	errs := map[string]string{}
	for _, k := range clinicalKinds {
		rows, err := s.fetch(ctx, s.patientQuery(s.table(k), id, true))
		if err != nil {
			errs[string(k)] = err.Error()
			continue
		}
		var inWindow []model.Record
		for _, r := range rows {
			d := r.Time(s.opts.DateCol)
			if cutoff == nil || (d != nil && !d.Before(*cutoff)) {
				inWindow = append(inWindow, r)
			}
		}
		if len(inWindow) == 0 {
			continue
		}
		out.AssessmentTrends[string(k)] = s.kindTrend(inWindow, k)
	}

	if len(errs) == len(clinicalKinds) {
		return Result{Status: StatusUpstream, Message: "Failed to retrieve trends: every fetch failed", Details: errs}
	}
	if len(errs) > 0 {
		out.Errors = errs
	}
	return OK(out)
}

func (s *Service) kindTrend(rows []model.Record, k model.Kind) KindTrend {
	scored, res := s.scoreAll(rows, k)
	points := make([]model.TrendPoint, len(scored))
	for i, sa := range scored {
		points[i] = model.TrendPoint{AssessmentDate: sa.AssessmentDate, TotalScore: sa.TotalScore}
	}
	kt := KindTrend{
		AssessmentCount: len(rows),
		DateRange: WindowRange{
			Start: rows[0].Time(s.opts.DateCol),
			End:   rows[len(rows)-1].Time(s.opts.DateCol),
		},
		Total:  scoring.AnalyzeTrend(points),
		Trends: map[string]ColumnTrend{},
	}
	for _, col := range res.Columns {
		if ct, ok := columnTrend(numericValues(rows, col)); ok {
			kt.Trends[col] = ct
		}
	}
	return kt
}

// columnTrend needs at least two values.
func columnTrend(vals []float64) (ColumnTrend, bool) {
	if len(vals) < 2 {
		return ColumnTrend{}, false
	}
	d := scoring.Describe(vals)
	first, last := vals[0], vals[len(vals)-1]
	dir := DirectionStable
	switch {
	case last < first:
		dir = DirectionImproving
	case last > first:
		dir = DirectionWorsening
	}
	return ColumnTrend{
		FirstValue:     first,
		LastValue:      last,
		Mean:           d.Mean,
		Std:            d.Std,
		Min:            d.Min,
		Max:            d.Max,
		TrendDirection: dir,
	}, true
}
