package model

import "time"

// ScoredAssessment is derived from one Record on every read and never persisted.
type ScoredAssessment struct {
	Kind              Kind       `json:"kind"`
	PatientID         string     `json:"patient_id,omitempty"`
	AssessmentDate    *time.Time `json:"assessment_date,omitempty"`
	TotalScore        float64    `json:"calculated_total"`
	ScaledScore       *float64   `json:"scaled_score,omitempty"`
	Severity          string     `json:"severity,omitempty"`
	RiskLevel         int        `json:"risk_level,omitempty"`
	QuestionsAnswered int        `json:"questions_answered"`
	DERSVersion       string     `json:"ders_version,omitempty"`
	SchemaVersion     string     `json:"schema_version,omitempty"`
	Record            Record     `json:"record,omitempty"`
}

// ScoreHistory is the result of listing a patient's scored assessments of one kind.
type ScoreHistory struct {
	PatientID       string             `json:"patient_id"`
	AssessmentType  string             `json:"assessment_type"`
	AssessmentCount int                `json:"assessment_count"`
	Assessments     []ScoredAssessment `json:"assessments"`
	LatestScore     *float64           `json:"latest_score"`
	LatestSeverity  string             `json:"latest_severity,omitempty"`
	LatestScaled    *float64           `json:"latest_scaled_score,omitempty"`
}

// TrendPoint is one dated total in a patient's history.
type TrendPoint struct {
	AssessmentDate *time.Time `json:"assessment_date"`
	TotalScore     float64    `json:"total_score"`
}

// Trend summarizes the change between a patient's first and latest totals.
type Trend struct {
	TotalAssessments int     `json:"total_assessments"`
	FirstScore       float64 `json:"first_score"`
	LatestScore      float64 `json:"latest_score"`
	Change           float64 `json:"change"`
	PercentChange    float64 `json:"percent_change"`
	Label            string  `json:"trend"`
}

// DateRange bounds a patient's assessment history.
type DateRange struct {
	FirstAssessment  *time.Time `json:"first_assessment"`
	LatestAssessment *time.Time `json:"latest_assessment"`
	DaysBetween      int        `json:"days_between"`
}

// Progress is the trend analysis of one kind for one patient.
type Progress struct {
	Scores    []TrendPoint `json:"scores,omitempty"`
	DateRange *DateRange   `json:"date_range,omitempty"`
	Trends    *Trend       `json:"trends,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// ProgressReport groups per-kind progress for one patient.
type ProgressReport struct {
	PatientID      string              `json:"patient_id"`
	AssessmentType string              `json:"assessment_type"`
	Assessments    map[string]Progress `json:"assessments"`
}
