package scoring

import (
	"sort"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
)

// Screening weights for population substance-use triage. These are
// separate from the composite substance domain.
var (
	ScreeningSubstances = []string{
		"Heroin",
		"Cocaine (Powder)",
		"Crack Cocaine",
		"Crystal Meth",
		"Methadone",
		"Oxycontin",
		"Other Opiates",
	}
	ScreeningPatterns = []string{"daily", "continued", "continual"}
)

const (
	screenHighRiskWeight = 3
	screenPatternWeight  = 2
	screenMultipleWeight = 1
	screenThreshold      = 2
)

// ScreeningRule describes how ScreenSubstanceUsers scores.
const ScreeningRule = "High-risk substances: +3, Daily use: +2, Multiple substances: +1"

// ScreenedPatient is a patient whose active substance use crossed the
// screening threshold.
type ScreenedPatient struct {
	PatientID        string   `json:"patient_id"`
	RiskScore        int      `json:"risk_score"`
	RiskFactors      []string `json:"risk_factors"`
	ActiveSubstances []string `json:"active_substances"`
	SubstanceCount   int      `json:"substance_count"`
}

// ScreenSubstanceUsers scores each patient's active substance rows and
// returns those at or above the threshold, highest score first.
func ScreenSubstanceUsers(rows []model.Record, patientCol string) []ScreenedPatient {
	highRisk := make(map[string]bool, len(ScreeningSubstances))
	for _, s := range ScreeningSubstances {
		highRisk[s] = true
	}
	patterns := make(map[string]bool, len(ScreeningPatterns))
	for _, p := range ScreeningPatterns {
		patterns[p] = true
	}

	var order []string
	active := make(map[string][]model.SubstanceUse)
	for _, r := range rows {
		id := r.String(patientCol)
		if id == "" {
			continue
		}
		uses := SubstanceUses([]model.Record{r})
		if !uses[0].Active {
			continue
		}
		if _, seen := active[id]; !seen {
			order = append(order, id)
		}
		active[id] = append(active[id], uses[0])
	}

	var out []ScreenedPatient
	for _, id := range order {
		uses := active[id]
		var usesHighRisk, patterned bool
		names := make([]string, len(uses))
		for i, u := range uses {
			names[i] = u.Substance
			if highRisk[u.Substance] {
				usesHighRisk = true
			}
			if patterns[normalize.Name(u.PatternOfUse)] {
				patterned = true
			}
		}

		p := ScreenedPatient{PatientID: id, ActiveSubstances: names, SubstanceCount: len(uses)}
		if usesHighRisk {
			p.RiskScore += screenHighRiskWeight
			p.RiskFactors = append(p.RiskFactors, "Uses high-risk substances")
		}
		if patterned {
			p.RiskScore += screenPatternWeight
			p.RiskFactors = append(p.RiskFactors, "Daily/continued use pattern")
		}
		if len(uses) >= 3 {
			p.RiskScore += screenMultipleWeight
			p.RiskFactors = append(p.RiskFactors, "Multiple active substances")
		}
		if p.RiskScore >= screenThreshold {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return out
}

// UseMetrics counts one patient's active substance rows.
type UseMetrics struct {
	PatientID   string
	ActiveCount int
	DailyCount  int
}

// ActiveUseMetrics groups active substance rows by patient, sorted by
// patient id. Patients with no active rows are omitted.
func ActiveUseMetrics(rows []model.Record, patientCol string) []UseMetrics {
	byID := make(map[string]*UseMetrics)
	for _, r := range rows {
		id := r.String(patientCol)
		if id == "" || normalize.Int(r[ColUseFlag], 0) != 1 {
			continue
		}
		m, ok := byID[id]
		if !ok {
			m = &UseMetrics{PatientID: id}
			byID[id] = m
		}
		m.ActiveCount++
		if normalize.Name(r.String(ColPatternOfUse)) == "daily" {
			m.DailyCount++
		}
	}
	out := make([]UseMetrics, 0, len(byID))
	for _, m := range byID {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out
}
