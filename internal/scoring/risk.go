package scoring

import (
	"strings"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
)

// Overall risk tiers.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
)

// ErrNoRiskData is the composite error marker when no domain had data.
const ErrNoRiskData = "No assessment data found for risk calculation"

// HighRiskSubstances are matched against the trimmed substance name.
var HighRiskSubstances = map[string]bool{
	"Heroin":           true,
	"Cocaine (Powder)": true,
	"Crack Cocaine":    true,
	"Crystal Meth":     true,
	"Oxycontin":        true,
	"Fentanyl":         true,
	"Methamphetamine":  true,
}

// DomainOrder is the order domains are evaluated and reported in.
var DomainOrder = []string{
	model.DomainPTSD,
	model.DomainDepression,
	model.DomainAnxiety,
	model.DomainWellbeing,
	model.DomainSubstanceUse,
}

// DomainKinds maps each clinical domain to the kind scored for it.
var DomainKinds = map[string]model.Kind{
	model.DomainPTSD:       model.KindPTSD,
	model.DomainDepression: model.KindPHQ,
	model.DomainAnxiety:    model.KindGAD,
	model.DomainWellbeing:  model.KindWHO,
}

var domainRecommendations = map[string]string{
	model.DomainPTSD:         "PTSD-focused therapy recommended (PCL-5 score indicates significant symptoms)",
	model.DomainDepression:   "Depression treatment evaluation needed (PHQ-9 indicates moderate-severe depression)",
	model.DomainAnxiety:      "Anxiety management intervention suggested (GAD-7 indicates moderate-severe anxiety)",
	model.DomainWellbeing:    "Wellbeing support needed (WHO-5 indicates poor wellbeing)",
	model.DomainSubstanceUse: "Substance abuse treatment program recommended",
}

// Substance history column names.
const (
	ColSubstance    = "substance"
	ColPatternOfUse = "pattern_of_use"
	ColUseFlag      = "use_flag"
)

// SubstanceUses converts substance history rows. A row is active when its
// use flag coerces to exactly 1.
func SubstanceUses(rows []model.Record) []model.SubstanceUse {
	out := make([]model.SubstanceUse, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.SubstanceUse{
			Substance:    r.String(ColSubstance),
			PatternOfUse: r.String(ColPatternOfUse),
			Active:       normalize.Int(r[ColUseFlag], 0) == 1,
		})
	}
	return out
}

// IsHighRisk reports whether substance is on the high-risk list.
func IsHighRisk(substance string) bool {
	return HighRiskSubstances[strings.TrimSpace(substance)]
}

// SubstanceRisk scores active substance use on the 1..4 scale.
func SubstanceRisk(uses []model.SubstanceUse) model.RiskDomain {
	var active []string
	var highRisk, daily bool
	for _, u := range uses {
		if !u.Active {
			continue
		}
		name := u.Substance
		if name == "" {
			name = "Unknown"
		}
		active = append(active, name)
		if IsHighRisk(u.Substance) {
			highRisk = true
		}
		if normalize.Name(u.PatternOfUse) == "daily" {
			daily = true
		}
	}

	risk := 1
	if len(active) >= 3 {
		risk++
	}
	if highRisk {
		risk += 2
	}
	if daily {
		risk++
	}
	risk = min(risk, 4)

	n := len(active)
	return model.RiskDomain{
		RiskLevel:            risk,
		ActiveSubstanceCount: &n,
		HasHighRiskSubstance: &highRisk,
		HasDailyUse:          &daily,
		ActiveSubstances:     active,
	}
}

// ClinicalDomain builds a domain entry from a scored assessment.
func ClinicalDomain(s model.ScoredAssessment) model.RiskDomain {
	total := s.TotalScore
	answered := s.QuestionsAnswered
	return model.RiskDomain{
		RiskLevel:         s.RiskLevel,
		TotalScore:        &total,
		ScaledScore:       s.ScaledScore,
		Severity:          s.Severity,
		AssessmentDate:    s.AssessmentDate,
		QuestionsAnswered: &answered,
	}
}

// OverallTier maps a composite score to its tier.
func OverallTier(composite float64) string {
	switch {
	case composite < 2:
		return RiskLow
	case composite < 3:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// Composite aggregates the domains present. Absent domains are skipped,
// never zero-filled.
func Composite(patientID string, domains map[string]model.RiskDomain) model.CompositeRisk {
	cr := model.CompositeRisk{
		PatientID: patientID,
		Domains:   domains,
	}
	if cr.Domains == nil {
		cr.Domains = map[string]model.RiskDomain{}
	}
	for _, d := range cr.Domains {
		cr.TotalRiskScore += d.RiskLevel
		cr.DomainsAssessed++
	}
	if cr.DomainsAssessed == 0 {
		cr.OverallRisk = "unknown"
		cr.Error = ErrNoRiskData
		return cr
	}
	mean := float64(cr.TotalRiskScore) / float64(cr.DomainsAssessed)
	cr.CompositeScore = Round(mean, 2)
	cr.OverallRisk = OverallTier(mean)
	cr.Recommendations = Recommendations(cr.OverallRisk, cr.Domains)
	return cr
}

// Recommendations returns the fixed recommendation list for a result.
func Recommendations(overall string, domains map[string]model.RiskDomain) []string {
	var recs []string
	switch overall {
	case RiskHigh:
		recs = append(recs, "Immediate clinical review recommended", "Consider intensified treatment plan")
	case RiskModerate:
		recs = append(recs, "Increased monitoring recommended", "Consider treatment plan adjustments")
	}
	for _, name := range DomainOrder {
		if d, ok := domains[name]; ok && d.RiskLevel >= 3 {
			recs = append(recs, domainRecommendations[name])
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Continue current treatment plan with regular monitoring")
	}
	return recs
}
