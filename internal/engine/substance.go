package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// SubstanceRiskSummary highlights the riskiest parts of a substance history.
type SubstanceRiskSummary struct {
	HighRiskSubstances       []model.Record `json:"high_risk_substances"`
	DailyUseSubstances       []model.Record `json:"daily_use_substances"`
	MultipleActiveSubstances bool           `json:"multiple_active_substances"`
}

// SubstanceHistory is a patient's full substance-use profile.
type SubstanceHistory struct {
	PatientID              string               `json:"patient_id"`
	TotalSubstancesTracked int                  `json:"total_substances_tracked"`
	ActiveSubstanceCount   int                  `json:"active_substance_count"`
	InactiveSubstanceCount int                  `json:"inactive_substance_count"`
	ActiveSubstances       []model.Record       `json:"active_substances"`
	InactiveSubstances     []model.Record       `json:"inactive_substances"`
	UsagePatterns          map[string][]string  `json:"usage_patterns"`
	RiskAssessment         SubstanceRiskSummary `json:"risk_assessment"`
}

// SubstanceHistory returns every substance row for a patient split into
// active and inactive use.
func (s *Service) SubstanceHistory(ctx context.Context, patient string) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}
	rows, err := s.fetch(ctx, store.From(s.opts.SubstanceTable).Eq(s.opts.PatientCol, id))
	if err != nil {
		return Upstream("retrieve substance history", err)
	}
	if len(rows) == 0 {
		return NotFound("No substance use history found for patient %s", id)
	}

	h := SubstanceHistory{
		PatientID:              id,
		TotalSubstancesTracked: len(rows),
		ActiveSubstances:       []model.Record{},
		InactiveSubstances:     []model.Record{},
		UsagePatterns:          map[string][]string{},
		RiskAssessment: SubstanceRiskSummary{
			HighRiskSubstances: []model.Record{},
			DailyUseSubstances: []model.Record{},
		},
	}
	for _, r := range rows {
		switch normalize.Int(r[scoring.ColUseFlag], -1) {
		case 1:
			h.ActiveSubstances = append(h.ActiveSubstances, r)
		case 0:
			h.InactiveSubstances = append(h.InactiveSubstances, r)
		}
	}
	for _, r := range h.ActiveSubstances {
		pattern := r.String(scoring.ColPatternOfUse)
		if pattern == "" {
			pattern = "Unknown"
		}
		h.UsagePatterns[pattern] = append(h.UsagePatterns[pattern], r.String(scoring.ColSubstance))
		if scoring.IsHighRisk(r.String(scoring.ColSubstance)) {
			h.RiskAssessment.HighRiskSubstances = append(h.RiskAssessment.HighRiskSubstances, r)
		}
		if normalize.Name(r.String(scoring.ColPatternOfUse)) == "daily" {
			h.RiskAssessment.DailyUseSubstances = append(h.RiskAssessment.DailyUseSubstances, r)
		}
	}
	h.ActiveSubstanceCount = len(h.ActiveSubstances)
	h.InactiveSubstanceCount = len(h.InactiveSubstances)
	h.RiskAssessment.MultipleActiveSubstances = h.ActiveSubstanceCount > 3
	return OK(h)
}

// ScreeningCriteria documents how substance screening scores patients.
type ScreeningCriteria struct {
	HighRiskSubstances []string `json:"high_risk_substances"`
	HighRiskPatterns   []string `json:"high_risk_patterns"`
	Scoring            string   `json:"scoring"`
}

// SubstanceScreening lists patients whose active substance use crossed
// the screening threshold.
type SubstanceScreening struct {
	HighRiskPatientCount int                       `json:"high_risk_patient_count"`
	Patients             []scoring.ScreenedPatient `json:"patients"`
	RiskCriteria         ScreeningCriteria         `json:"risk_criteria"`
}

// HighRiskSubstanceUsers screens every patient's active substance use.
func (s *Service) HighRiskSubstanceUsers(ctx context.Context) Result {
	rows, err := s.fetch(ctx, store.From(s.opts.SubstanceTable))
	if err != nil {
		return Upstream("identify high-risk patients", err)
	}
	if len(rows) == 0 {
		return NotFound("No substance use data found")
	}
	patients := scoring.ScreenSubstanceUsers(rows, s.opts.PatientCol)
	if patients == nil {
		patients = []scoring.ScreenedPatient{}
	}
	return OK(SubstanceScreening{
		HighRiskPatientCount: len(patients),
		Patients:             patients,
		RiskCriteria: ScreeningCriteria{
			HighRiskSubstances: scoring.ScreeningSubstances,
			HighRiskPatterns:   scoring.ScreeningPatterns,
			Scoring:            scoring.ScreeningRule,
		},
	})
}

// NameCount is one entry of a frequency table.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SubstancePopulation sizes the substance-history cohort.
type SubstancePopulation struct {
	TotalPatients         int `json:"total_patients"`
	TotalSubstanceRecords int `json:"total_substance_records"`
	PatientsWithActiveUse int `json:"patients_with_active_use"`
	HighRiskPatients      int `json:"high_risk_patients"`
}

// SubstanceRiskIndicators summarizes per-patient active use.
type SubstanceRiskIndicators struct {
	PatientsWithMultipleSubstances int     `json:"patients_with_multiple_substances"`
	PatientsWithDailyUse           int     `json:"patients_with_daily_use"`
	AverageSubstancesPerPatient    float64 `json:"average_substances_per_patient"`
}

// SubstancePatterns is the population-level view of active substance use.
type SubstancePatterns struct {
	PopulationAnalysis   SubstancePopulation     `json:"population_analysis"`
	MostCommonSubstances []NameCount             `json:"most_common_substances"`
	UsagePatterns        []NameCount             `json:"usage_patterns"`
	RiskIndicators       SubstanceRiskIndicators `json:"risk_indicators"`
}

const (
	multipleSubstanceMin = 3
	topSubstances        = 10
)

// SubstancePatterns counts active substances and use patterns across every
// patient. A patient is high risk with three or more active substances or
// any daily use.
func (s *Service) SubstancePatterns(ctx context.Context) Result {
	rows, err := s.fetch(ctx, store.From(s.opts.SubstanceTable))
	if err != nil {
		return Upstream("analyze substance patterns", err)
	}
	if len(rows) == 0 {
		return NotFound("No substance use data found")
	}

	var substances, patterns []string
	for _, r := range rows {
		if normalize.Int(r[scoring.ColUseFlag], 0) != 1 {
			continue
		}
		substances = append(substances, r.String(scoring.ColSubstance))
		patterns = append(patterns, r.String(scoring.ColPatternOfUse))
	}

	metrics := scoring.ActiveUseMetrics(rows, s.opts.PatientCol)
	var ind SubstanceRiskIndicators
	highRisk, active := 0, 0
	for _, m := range metrics {
		multiple := m.ActiveCount >= multipleSubstanceMin
		daily := m.DailyCount >= 1
		if multiple {
			ind.PatientsWithMultipleSubstances++
		}
		if daily {
			ind.PatientsWithDailyUse++
		}
		if multiple || daily {
			highRisk++
		}
		active += m.ActiveCount
	}
	if len(metrics) > 0 {
		ind.AverageSubstancesPerPatient = scoring.Round(float64(active)/float64(len(metrics)), 2)
	}

	return OK(SubstancePatterns{
		PopulationAnalysis: SubstancePopulation{
			TotalPatients:         s.uniquePatients(rows),
			TotalSubstanceRecords: len(rows),
			PatientsWithActiveUse: len(metrics),
			HighRiskPatients:      highRisk,
		},
		MostCommonSubstances: countNames(substances, topSubstances),
		UsagePatterns:        countNames(patterns, 0),
		RiskIndicators:       ind,
	})
}

// countNames tallies non-empty names, most frequent first. n <= 0 keeps all.
func countNames(names []string, n int) []NameCount {
	counts := make(map[string]int)
	for _, name := range names {
		if name != "" {
			counts[name]++
		}
	}
	out := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// GroupComparison contrasts one column between heavy and light substance users.
type GroupComparison struct {
	HighSubstanceUseAvg float64 `json:"high_substance_use_avg"`
	LowSubstanceUseAvg  float64 `json:"low_substance_use_avg"`
	Difference          float64 `json:"difference"`
}

// SubstanceScoreComparison relates active substance use to the latest
// assessment of one kind.
type SubstanceScoreComparison struct {
	AssessmentType        string                     `json:"assessment_type"`
	PatientCount          int                        `json:"patient_count"`
	HighUsePatients       int                        `json:"high_use_patients"`
	LowUsePatients        int                        `json:"low_use_patients"`
	HighVsLowSubstanceUse map[string]GroupComparison `json:"high_vs_low_substance_use"`
}

const (
	lowSubstanceMax = 1
	totalScoreCol   = "total_score"
)

// CompareSubstanceByScores joins each substance user's latest assessment of
// kind with their active use counts, then compares column means between
// patients with three or more active substances and those with at most one.
// A column is reported only when both groups have a numeric value for it.
func (s *Service) CompareSubstanceByScores(ctx context.Context, kind string) Result {
	info, bad := parseKind(kind, clinicalKinds)
	if bad != nil {
		return *bad
	}

	var subRows, asmRows []model.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subRows, err = s.fetch(gctx, store.From(s.opts.SubstanceTable))
		return err
	})
	g.Go(func() (err error) {
		asmRows, err = s.fetch(gctx, store.From(s.table(info.Kind)))
		return err
	})
	if err := g.Wait(); err != nil {
		return Upstream(fmt.Sprintf("compare substance use with %s scores", info.Kind), err)
	}
	if len(subRows) == 0 || len(asmRows) == 0 {
		return NotFound("Insufficient data for %s and substance use comparison", info.Kind)
	}

	latest := make(map[string]model.ScoredAssessment)
	scored, res := s.scoreAll(scoring.LatestPerPatient(asmRows, s.opts.PatientCol, s.opts.DateCol), info.Kind)
	for _, sa := range scored {
		latest[sa.PatientID] = sa
	}

	var high, low []map[string]float64
	patients := 0
	for _, m := range scoring.ActiveUseMetrics(subRows, s.opts.PatientCol) {
		sa, ok := latest[m.PatientID]
		if !ok {
			continue
		}
		patients++
		vals := s.numericCells(sa.Record)
		vals["active_substance_count"] = float64(m.ActiveCount)
		vals["daily_use_count"] = float64(m.DailyCount)
		if !res.Empty() {
			vals[totalScoreCol] = sa.TotalScore
		}
		switch {
		case m.ActiveCount >= multipleSubstanceMin:
			high = append(high, vals)
		case m.ActiveCount <= lowSubstanceMax:
			low = append(low, vals)
		}
	}
	if patients == 0 {
		return NotFound("No patients found with both substance use and assessment data")
	}

	out := SubstanceScoreComparison{
		AssessmentType:        string(info.Kind),
		PatientCount:          patients,
		HighUsePatients:       len(high),
		LowUsePatients:        len(low),
		HighVsLowSubstanceUse: map[string]GroupComparison{},
	}
	cols := map[string]bool{}
	for _, vals := range high {
		for c := range vals {
			cols[c] = true
		}
	}
	for c := range cols {
		hi, lo := column(high, c), column(low, c)
		if len(hi) == 0 || len(lo) == 0 {
			continue
		}
		h, l := scoring.Describe(hi).Mean, scoring.Describe(lo).Mean
		out.HighVsLowSubstanceUse[c] = GroupComparison{
			HighSubstanceUseAvg: h,
			LowSubstanceUseAvg:  l,
			Difference:          scoring.Round(h-l, 2),
		}
	}
	return OK(out)
}

func column(group []map[string]float64, col string) []float64 {
	var out []float64
	for _, vals := range group {
		if v, ok := vals[col]; ok {
			out = append(out, v)
		}
	}
	return out
}

// numericCells keeps the finite numeric cells of rec, skipping identifier
// and date columns.
func (s *Service) numericCells(rec model.Record) map[string]float64 {
	out := make(map[string]float64)
	for col, raw := range rec {
		if col == s.opts.PatientCol || col == s.opts.DateCol || col == "unique_id" {
			continue
		}
		if v := normalize.Float(raw, math.NaN()); !math.IsNaN(v) {
			out[col] = v
		}
	}
	return out
}

// SubstanceTimeline wraps the current substance history. Substance rows
// carry no dates, so the timeline is a single snapshot.
type SubstanceTimeline struct {
	PatientID       string           `json:"patient_id"`
	Note            string           `json:"note"`
	CurrentStatus   SubstanceHistory `json:"current_status"`
	Recommendations []string         `json:"recommendations"`
}

var timelineRecommendations = []string{
	"Consider adding timestamp fields to substance use records",
	"Implement longitudinal tracking for substance use changes",
	"Link substance use records to assessment dates for temporal analysis",
}

// SubstanceTimeline returns the patient's substance history as a snapshot.
// Failures from the history lookup pass through unchanged.
func (s *Service) SubstanceTimeline(ctx context.Context, patient string) Result {
	r := s.SubstanceHistory(ctx, patient)
	if !r.IsOK() {
		return r
	}
	h := r.Payload.(SubstanceHistory)
	return OK(SubstanceTimeline{
		PatientID:       h.PatientID,
		Note:            "Current data structure provides snapshot of substance use status, not historical timeline",
		CurrentStatus:   h,
		Recommendations: timelineRecommendations,
	})
}
