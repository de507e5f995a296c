package scoring

import (
	"sort"
	"time"

	"github.com/gyeh/clinscore/internal/model"
)

// Cutoff is a clinical flagging threshold for one kind.
type Cutoff struct {
	Kind     model.Kind
	Min      float64
	Criteria string
}

// Cutoffs are evaluated in order; a patient's first flag sets their rank.
var Cutoffs = []Cutoff{
	{Kind: model.KindPTSD, Min: 50, Criteria: "Total score >= 50 (PCL-5 threshold)"},
	{Kind: model.KindPHQ, Min: 15, Criteria: "Total score >= 15 (severe depression)"},
	{Kind: model.KindGAD, Min: 15, Criteria: "Total score >= 15 (severe anxiety)"},
}

// CutoffCriteria returns kind name -> criteria text.
func CutoffCriteria() map[string]string {
	out := make(map[string]string, len(Cutoffs))
	for _, c := range Cutoffs {
		out[string(c.Kind)] = c.Criteria
	}
	return out
}

// LatestPerPatient keeps the most recent record for each patient. Undated
// records lose to dated ones. Patients are returned in first-seen order.
func LatestPerPatient(rows []model.Record, patientCol, dateCol string) []model.Record {
	type entry struct {
		rec  model.Record
		date *time.Time
	}
	var order []string
	latest := make(map[string]entry)
	for _, r := range rows {
		id := r.String(patientCol)
		if id == "" {
			continue
		}
		d := r.Time(dateCol)
		cur, seen := latest[id]
		if !seen {
			order = append(order, id)
			latest[id] = entry{rec: r, date: d}
			continue
		}
		if d != nil && (cur.date == nil || d.After(*cur.date)) {
			latest[id] = entry{rec: r, date: d}
		}
	}
	out := make([]model.Record, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id].rec)
	}
	return out
}

// Flagger ranks patients whose latest totals cross a cutoff.
type Flagger struct {
	Scorer     *Scorer
	PatientCol string
	DateCol    string
}

// Flag evaluates cohorts keyed by kind. Kinds without a cutoff are ignored.
// The result is sorted by descending flag count; ties keep cutoff order,
// then patient id order within a kind.
func (f *Flagger) Flag(cohorts map[model.Kind][]model.Record) []model.FlaggedPatient {
	var flagged []model.FlaggedPatient
	index := make(map[string]int)

	for _, c := range Cutoffs {
		rows, ok := cohorts[c.Kind]
		if !ok || len(rows) == 0 {
			continue
		}
		latest := LatestPerPatient(rows, f.PatientCol, f.DateCol)
		sort.SliceStable(latest, func(i, j int) bool {
			return latest[i].String(f.PatientCol) < latest[j].String(f.PatientCol)
		})
		res := Resolve(c.Kind, unionColumns(latest))
		if res.Empty() {
			continue
		}
		for _, rec := range latest {
			s := f.Scorer.ScoreResolved(rec, res)
			if !(s.TotalScore >= c.Min) {
				continue
			}
			hit := model.ConcerningAssessment{
				AssessmentType: string(c.Kind),
				TotalScore:     s.TotalScore,
				AssessmentDate: rec.Time(f.DateCol),
			}
			id := rec.String(f.PatientCol)
			if i, ok := index[id]; ok {
				flagged[i].ConcerningAssessments = append(flagged[i].ConcerningAssessments, hit)
				flagged[i].RiskLevel++
				continue
			}
			index[id] = len(flagged)
			flagged = append(flagged, model.FlaggedPatient{
				PatientID:             id,
				ConcerningAssessments: []model.ConcerningAssessment{hit},
				RiskLevel:             1,
			})
		}
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].RiskLevel > flagged[j].RiskLevel
	})
	return flagged
}

func unionColumns(rows []model.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for _, c := range r.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}
