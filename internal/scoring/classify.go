package scoring

import "github.com/gyeh/clinscore/internal/model"

// Classification is the kind-specific reading of a raw total.
type Classification struct {
	Severity    string
	ScaledScore *float64
	// RiskLevel is 1..4 for kinds that feed the composite, 0 otherwise.
	RiskLevel int
}

// band maps totals below Upper (or at most Upper when Inclusive) to Label.
type band struct {
	Upper     float64
	Label     string
	Risk      int
	Inclusive bool
}

// whoScale converts a WHO-5 raw sum to the 0-100 index.
const whoScale = 4

var severityBands = map[model.Kind][]band{
	model.KindPTSD: {
		{Upper: 20, Label: "minimal", Risk: 1},
		{Upper: 40, Label: "mild", Risk: 2},
		{Upper: 60, Label: "moderate", Risk: 3},
	},
	model.KindPHQ: {
		{Upper: 5, Label: "minimal", Risk: 1},
		{Upper: 10, Label: "mild", Risk: 2},
		{Upper: 15, Label: "moderate", Risk: 3},
		{Upper: 20, Label: "moderately_severe", Risk: 4},
	},
	model.KindGAD: {
		{Upper: 5, Label: "minimal", Risk: 1},
		{Upper: 10, Label: "mild", Risk: 2},
		{Upper: 15, Label: "moderate", Risk: 3},
	},
	model.KindDERS: {
		{Upper: 90, Label: "low_difficulties", Inclusive: true},
		{Upper: 120, Label: "moderate_difficulties", Inclusive: true},
	},
}

var topBand = map[model.Kind]band{
	model.KindPTSD: {Label: "severe", Risk: 4},
	model.KindPHQ:  {Label: "severe", Risk: 4},
	model.KindGAD:  {Label: "severe", Risk: 4},
	model.KindDERS: {Label: "high_difficulties"},
}

// WHO-5 labels and risk use different breakpoints; risk runs in reverse.
var (
	whoSeverity = []band{
		{Upper: 52, Label: "poor_wellbeing", Inclusive: true},
		{Upper: 68, Label: "below_average", Inclusive: true},
	}
	whoRisk = []band{
		{Upper: 52, Risk: 4, Inclusive: true},
		{Upper: 68, Risk: 3, Inclusive: true},
		{Upper: 84, Risk: 2, Inclusive: true},
	}
)

// Classify maps a raw total to severity, scaled score and risk level.
func Classify(kind model.Kind, total float64) Classification {
	if kind == model.KindDERS2 {
		kind = model.KindDERS
	}
	if kind == model.KindWHO {
		scaled := total * whoScale
		c := Classification{ScaledScore: &scaled, Severity: "good_wellbeing", RiskLevel: 1}
		if b, ok := lookup(whoSeverity, scaled); ok {
			c.Severity = b.Label
		}
		if b, ok := lookup(whoRisk, scaled); ok {
			c.RiskLevel = b.Risk
		}
		return c
	}
	bands, ok := severityBands[kind]
	if !ok {
		return Classification{}
	}
	b, ok := lookup(bands, total)
	if !ok {
		b = topBand[kind]
	}
	return Classification{Severity: b.Label, RiskLevel: b.Risk}
}

func lookup(bands []band, v float64) (band, bool) {
	for _, b := range bands {
		if v < b.Upper || (b.Inclusive && v == b.Upper) {
			return b, true
		}
	}
	return band{}, false
}
