package scoring

import (
	"math"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/normalize"
)

// AnsweredPolicy decides whether a resolved cell counts as answered.
type AnsweredPolicy interface {
	Answered(raw any, coerced float64) bool
}

// AnsweredFunc adapts a plain function to AnsweredPolicy.
type AnsweredFunc func(raw any, coerced float64) bool

func (f AnsweredFunc) Answered(raw any, coerced float64) bool { return f(raw, coerced) }

var (
	// CountNonZero treats a zero response as unanswered. This matches the
	// stored totals clinicians already see.
	CountNonZero AnsweredPolicy = AnsweredFunc(func(_ any, v float64) bool { return v != 0 })

	// CountNonNull counts every cell holding a numeric value, zero included.
	CountNonNull AnsweredPolicy = AnsweredFunc(func(raw any, _ float64) bool {
		return !math.IsNaN(normalize.Float(raw, math.NaN()))
	})
)

// PolicyByName returns the answered-count policy for "nonzero" or "nonnull".
func PolicyByName(name string) (AnsweredPolicy, bool) {
	switch name {
	case "", "nonzero":
		return CountNonZero, true
	case "nonnull":
		return CountNonNull, true
	}
	return nil, false
}

// Scorer computes totals for assessment records.
type Scorer struct {
	Policy AnsweredPolicy
}

// NewScorer returns a Scorer using policy, or CountNonZero when nil.
func NewScorer(policy AnsweredPolicy) *Scorer {
	if policy == nil {
		policy = CountNonZero
	}
	return &Scorer{Policy: policy}
}

// Total sums the coerced values of cols in rec and counts answered cells.
func (s *Scorer) Total(rec model.Record, cols []string) (total float64, answered int) {
	policy := s.Policy
	if policy == nil {
		policy = CountNonZero
	}
	for _, col := range cols {
		raw := rec[col]
		v := normalize.Float(raw, 0)
		total += v
		if policy.Answered(raw, v) {
			answered++
		}
	}
	return total, answered
}

// Score resolves kind's columns against rec and classifies the total.
// Records with no scoring columns score zero with no severity.
func (s *Scorer) Score(rec model.Record, kind model.Kind) model.ScoredAssessment {
	res := Resolve(kind, rec.Columns())
	return s.ScoreResolved(rec, res)
}

// ScoreResolved scores rec against an existing resolution. Cohort passes
// resolve once and reuse it for every row.
func (s *Scorer) ScoreResolved(rec model.Record, res Resolution) model.ScoredAssessment {
	out := model.ScoredAssessment{
		Kind:          res.Kind,
		SchemaVersion: res.SchemaVersion,
	}
	if res.Empty() {
		return out
	}
	out.TotalScore, out.QuestionsAnswered = s.Total(rec, res.Columns)
	c := Classify(res.Kind, out.TotalScore)
	out.Severity = c.Severity
	out.ScaledScore = c.ScaledScore
	out.RiskLevel = c.RiskLevel
	return out
}
