package model

import "time"

// Risk domains combined by the composite aggregator, in evaluation order.
const (
	DomainPTSD         = "ptsd"
	DomainDepression   = "depression"
	DomainAnxiety      = "anxiety"
	DomainWellbeing    = "wellbeing"
	DomainSubstanceUse = "substance_use"
)

// RiskDomain is one domain's contribution to a composite risk assessment.
type RiskDomain struct {
	RiskLevel int `json:"risk_level"`

	// Clinical domains.
	TotalScore        *float64   `json:"total_score,omitempty"`
	ScaledScore       *float64   `json:"scaled_score,omitempty"`
	Severity          string     `json:"severity,omitempty"`
	AssessmentDate    *time.Time `json:"assessment_date,omitempty"`
	QuestionsAnswered *int       `json:"questions_answered,omitempty"`

	// Substance use.
	ActiveSubstanceCount *int     `json:"active_substance_count,omitempty"`
	HasHighRiskSubstance *bool    `json:"has_high_risk_substances,omitempty"`
	HasDailyUse          *bool    `json:"has_daily_use,omitempty"`
	ActiveSubstances     []string `json:"active_substances,omitempty"`
}

// CompositeRisk aggregates the latest result of each domain for one patient.
type CompositeRisk struct {
	PatientID       string                `json:"patient_id"`
	Domains         map[string]RiskDomain `json:"risk_domains"`
	DomainsAssessed int                   `json:"domains_assessed"`
	TotalRiskScore  int                   `json:"total_risk_score"`
	CompositeScore  float64               `json:"composite_score"`
	OverallRisk     string                `json:"overall_risk"`
	Recommendations []string              `json:"recommendations"`
	DomainErrors    map[string]string     `json:"domain_errors,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// SubstanceUse is one row of a patient's substance history.
type SubstanceUse struct {
	Substance    string `json:"substance"`
	PatternOfUse string `json:"pattern_of_use,omitempty"`
	Active       bool   `json:"active"`
}
