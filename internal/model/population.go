package model

import "time"

// PopulationComparison places one patient's total within a cohort.
type PopulationComparison struct {
	PatientID        string     `json:"patient_id"`
	AssessmentType   string     `json:"assessment_type"`
	AssessmentDate   *time.Time `json:"assessment_date,omitempty"`
	PopulationSize   int        `json:"population_size"`
	PatientScore     float64    `json:"patient_score"`
	PopulationMean   float64    `json:"population_mean"`
	PopulationMedian float64    `json:"population_median"`
	PopulationStd    float64    `json:"population_std"`
	Percentile       float64    `json:"percentile"`
	ZScore           float64    `json:"z_score"`
	Interpretation   string     `json:"interpretation"`
	Message          string     `json:"message,omitempty"`
}

// ScoreSummary is descriptive statistics over a set of totals.
type ScoreSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ConcerningAssessment is one threshold crossing for a flagged patient.
type ConcerningAssessment struct {
	AssessmentType string     `json:"assessment_type"`
	TotalScore     float64    `json:"total_score"`
	AssessmentDate *time.Time `json:"assessment_date"`
}

// FlaggedPatient is a patient whose latest totals crossed a clinical cutoff.
type FlaggedPatient struct {
	PatientID             string                 `json:"patient_id"`
	ConcerningAssessments []ConcerningAssessment `json:"concerning_assessments"`
	RiskLevel             int                    `json:"risk_level"`
}
