package model

import "time"

// ScoreRow is the flat export shape of one scored assessment.
type ScoreRow struct {
	PatientID         string   `parquet:"patient_id"`
	Kind              string   `parquet:"kind"`
	AssessmentDate    *string  `parquet:"assessment_date,optional"`
	TotalScore        float64  `parquet:"total_score"`
	ScaledScore       *float64 `parquet:"scaled_score,optional"`
	Severity          string   `parquet:"severity"`
	RiskLevel         int32    `parquet:"risk_level"`
	QuestionsAnswered int32    `parquet:"questions_answered"`
	SchemaVersion     string   `parquet:"schema_version"`
}

// ScoreColumns returns the export column headers in ScoreRow field order.
func ScoreColumns() []string {
	return []string{
		"patient_id",
		"kind",
		"assessment_date",
		"total_score",
		"scaled_score",
		"severity",
		"risk_level",
		"questions_answered",
		"schema_version",
	}
}

// Values returns the row values in the same order as ScoreColumns().
func (r *ScoreRow) Values() []any {
	var date, scaled any
	if r.AssessmentDate != nil {
		date = *r.AssessmentDate
	}
	if r.ScaledScore != nil {
		scaled = *r.ScaledScore
	}
	return []any{
		r.PatientID,
		r.Kind,
		date,
		r.TotalScore,
		scaled,
		r.Severity,
		r.RiskLevel,
		r.QuestionsAnswered,
		r.SchemaVersion,
	}
}

// NewScoreRow flattens a scored assessment for export.
func NewScoreRow(s ScoredAssessment) ScoreRow {
	row := ScoreRow{
		PatientID:         s.PatientID,
		Kind:              string(s.Kind),
		TotalScore:        s.TotalScore,
		ScaledScore:       s.ScaledScore,
		Severity:          s.Severity,
		RiskLevel:         int32(s.RiskLevel),
		QuestionsAnswered: int32(s.QuestionsAnswered),
		SchemaVersion:     s.SchemaVersion,
	}
	if s.AssessmentDate != nil {
		d := s.AssessmentDate.Format(time.RFC3339)
		row.AssessmentDate = &d
	}
	return row
}

// ExportSummary captures metrics from a single export run.
type ExportSummary struct {
	Kind          string
	OutputPath    string
	Format        string
	RowsFetched   int
	RowsWritten   int
	DurationFetch time.Duration
	DurationScore time.Duration
	DurationWrite time.Duration
	DurationTotal time.Duration
}
