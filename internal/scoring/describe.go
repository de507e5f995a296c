package scoring

import (
	"math"
	"sort"
)

// Description is the dashboard summary of a column of values. Unlike
// Summarize it interpolates the median and uses the sample deviation.
type Description struct {
	Count       int                `json:"count"`
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	Std         float64            `json:"std"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

var reportedQuantiles = []struct {
	name string
	q    float64
}{
	{"25th", 0.25},
	{"75th", 0.75},
	{"90th", 0.90},
	{"95th", 0.95},
}

// Describe summarizes values, rounding derived statistics to 2 places.
func Describe(values []float64) Description {
	n := len(values)
	if n == 0 {
		return Description{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	d := Description{
		Count:       n,
		Mean:        Round(mean, 2),
		Median:      Round(Quantile(sorted, 0.5), 2),
		Std:         Round(SampleStd(sorted, mean), 2),
		Min:         sorted[0],
		Max:         sorted[n-1],
		Percentiles: make(map[string]float64, len(reportedQuantiles)),
	}
	for _, rq := range reportedQuantiles {
		d.Percentiles[rq.name] = Round(Quantile(sorted, rq.q), 2)
	}
	return d
}

// Quantile linearly interpolates the q-th quantile of sorted values.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// SampleStd is the n-1 standard deviation; 0 for fewer than two values.
func SampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// ValueCount is one bucket of a frequency table.
type ValueCount struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// TopValues returns the n most frequent values, ties broken by value.
func TopValues(values []float64, n int) []ValueCount {
	counts := make(map[float64]int)
	for _, v := range values {
		counts[v]++
	}
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
