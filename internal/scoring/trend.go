package scoring

import (
	"math"

	"github.com/gyeh/clinscore/internal/model"
)

// Trend labels.
const (
	TrendImproving        = "improving"
	TrendStable           = "stable"
	TrendDeclining        = "declining"
	TrendInsufficientData = "insufficient_data"
)

// stableBand is the largest non-negative change still labelled stable.
const stableBand = 1.0

// AnalyzeTrend summarizes points, which must be ascending by date.
// Any negative change is improving; the stability band applies only above zero.
func AnalyzeTrend(points []model.TrendPoint) model.Trend {
	t := model.Trend{TotalAssessments: len(points), Label: TrendInsufficientData}
	if len(points) == 0 {
		return t
	}
	first, latest := points[0].TotalScore, points[len(points)-1].TotalScore
	t.FirstScore, t.LatestScore = first, latest
	if len(points) < 2 {
		return t
	}
	t.Change = latest - first
	if first > 0 {
		t.PercentChange = Round(t.Change/first*100, 1)
	}
	switch {
	case t.Change < 0:
		t.Label = TrendImproving
	case math.Abs(t.Change) <= stableBand:
		t.Label = TrendStable
	default:
		t.Label = TrendDeclining
	}
	return t
}

// SpanOf returns the first and last dates of points and the whole days
// between them. Returns nil when either end is undated.
func SpanOf(points []model.TrendPoint) *model.DateRange {
	if len(points) == 0 {
		return nil
	}
	first, last := points[0].AssessmentDate, points[len(points)-1].AssessmentDate
	r := &model.DateRange{FirstAssessment: first, LatestAssessment: last}
	if first != nil && last != nil {
		r.DaysBetween = int(math.Floor(last.Sub(*first).Hours() / 24))
	}
	return r
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
