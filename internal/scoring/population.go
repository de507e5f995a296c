package scoring

import (
	"math"
	"sort"

	"github.com/gyeh/clinscore/internal/model"
)

// Z-score interpretations.
const (
	ZNormal          = "Within normal range"
	ZModerateHigh    = "Moderately elevated"
	ZModerateLow     = "Moderately below average"
	ZSignificantHigh = "Significantly elevated"
	ZSignificantLow  = "Significantly below average"
)

// Summarize computes descriptive statistics over totals. The median is
// the element at index n/2 of the sorted totals and std uses the
// population formula.
func Summarize(totals []float64) model.ScoreSummary {
	n := len(totals)
	if n == 0 {
		return model.ScoreSummary{}
	}
	sorted := append([]float64(nil), totals...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range sorted {
		sq += (v - mean) * (v - mean)
	}
	return model.ScoreSummary{
		Count:  n,
		Mean:   mean,
		Median: sorted[n/2],
		Std:    math.Sqrt(sq / float64(n)),
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

// Percentile returns the share of cohort at or below v, times 100.
func Percentile(v float64, cohort []float64) float64 {
	if len(cohort) == 0 {
		return 0
	}
	var le int
	for _, c := range cohort {
		if c <= v {
			le++
		}
	}
	return float64(le) / float64(len(cohort)) * 100
}

// ZScore returns (v-mean)/std, or 0 for a degenerate cohort.
func ZScore(v, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	return (v - mean) / std
}

// InterpretZ describes a z-score in clinical terms.
func InterpretZ(z float64) string {
	abs := math.Abs(z)
	switch {
	case abs < 1:
		return ZNormal
	case abs < 2:
		if z > 0 {
			return ZModerateHigh
		}
		return ZModerateLow
	default:
		if z > 0 {
			return ZSignificantHigh
		}
		return ZSignificantLow
	}
}

// ComparePopulation places patientTotal within cohort. Statistics are
// rounded to 2 places and the percentile to 1. The caller fills the
// identifying fields.
func ComparePopulation(patientTotal float64, cohort []float64) model.PopulationComparison {
	s := Summarize(cohort)
	z := ZScore(patientTotal, s.Mean, s.Std)
	return model.PopulationComparison{
		PopulationSize:   len(cohort),
		PatientScore:     patientTotal,
		PopulationMean:   Round(s.Mean, 2),
		PopulationMedian: Round(s.Median, 2),
		PopulationStd:    Round(s.Std, 2),
		Percentile:       Round(Percentile(patientTotal, cohort), 1),
		ZScore:           Round(z, 2),
		Interpretation:   InterpretZ(z),
	}
}
