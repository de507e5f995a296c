package scoring

import (
	"testing"
	"time"

	"github.com/gyeh/clinscore/internal/model"
)

func points(totals ...float64) []model.TrendPoint {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.TrendPoint, len(totals))
	for i, v := range totals {
		d := base.AddDate(0, 0, 10*i)
		out[i] = model.TrendPoint{AssessmentDate: &d, TotalScore: v}
	}
	return out
}

func TestAnalyzeTrend_Asymmetry(t *testing.T) {
	tests := []struct {
		name  string
		first float64
		last  float64
		want  string
	}{
		{"small improvement", 10, 9.6, TrendImproving},
		{"small worsening", 10, 10.4, TrendStable},
		{"exactly one", 10, 11, TrendStable},
		{"worsening", 10, 11.5, TrendDeclining},
		{"large improvement", 60, 10, TrendImproving},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AnalyzeTrend(points(tc.first, tc.last))
			if got.Label != tc.want {
				t.Errorf("label = %q, want %q (change %v)", got.Label, tc.want, got.Change)
			}
		})
	}
}

func TestAnalyzeTrend_PercentChange(t *testing.T) {
	got := AnalyzeTrend(points(12, 20, 9))
	if got.Change != -3 {
		t.Errorf("change = %v", got.Change)
	}
	if got.PercentChange != -25 {
		t.Errorf("percent = %v, want -25", got.PercentChange)
	}
	if got.TotalAssessments != 3 {
		t.Errorf("count = %d", got.TotalAssessments)
	}

	zero := AnalyzeTrend(points(0, 5))
	if zero.PercentChange != 0 {
		t.Errorf("percent from zero baseline = %v, want 0", zero.PercentChange)
	}
	third := AnalyzeTrend(points(3, 4))
	if third.PercentChange != 33.3 {
		t.Errorf("percent = %v, want 33.3", third.PercentChange)
	}
}

func TestAnalyzeTrend_Insufficient(t *testing.T) {
	got := AnalyzeTrend(points(14))
	if got.Label != TrendInsufficientData || got.Change != 0 {
		t.Errorf("got %+v", got)
	}
	if got.FirstScore != 14 || got.LatestScore != 14 {
		t.Errorf("first/latest = %v/%v", got.FirstScore, got.LatestScore)
	}
}

func TestSpanOf(t *testing.T) {
	p := points(1, 2, 3)
	later := p[2].AssessmentDate.Add(23 * time.Hour)
	p[2].AssessmentDate = &later
	r := SpanOf(p)
	if r.DaysBetween != 20 {
		t.Errorf("days = %d, want 20", r.DaysBetween)
	}
	if SpanOf(nil) != nil {
		t.Error("expected nil range for no points")
	}
}
