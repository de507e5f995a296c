package model

import "strings"

// Kind identifies one assessment instrument.
type Kind string

const (
	KindPTSD  Kind = "ptsd"
	KindPHQ   Kind = "phq"
	KindGAD   Kind = "gad"
	KindWHO   Kind = "who"
	KindDERS  Kind = "ders"
	KindDERS2 Kind = "ders2"
)

// KindInfo describes a supported assessment instrument.
type KindInfo struct {
	Kind         Kind
	Table        string // default backing table name
	DisplayName  string // e.g. "PHQ-9 (Depression)"
	ClinicalInfo string
	Schema       Schema
}

// AllKinds lists the supported instruments in canonical order.
var AllKinds = []KindInfo{
	{
		Kind:         KindPTSD,
		Table:        "PTSD",
		DisplayName:  "PTSD (PCL-5)",
		ClinicalInfo: "PCL-5: PTSD symptoms (0-80 scale, >=50 indicates probable PTSD)",
		Schema: Schema{
			Version:  "pcl5/v1",
			Prefixes: []string{"ptsd_q"},
			Exclude:  []string{"assessment_date"},
		},
	},
	{
		Kind:         KindPHQ,
		Table:        "PHQ",
		DisplayName:  "PHQ-9 (Depression)",
		ClinicalInfo: "PHQ-9: Depression severity (0-27 scale, >=15 indicates severe depression)",
		Schema: Schema{
			Version:        "phq9/v1",
			Prefixes:       []string{"col_"},
			Indexed:        true,
			MinIndex:       1,
			MaxIndex:       9,
			NonScoringByIx: map[int]string{10: "difficulty rating"},
		},
	},
	{
		Kind:         KindGAD,
		Table:        "GAD",
		DisplayName:  "GAD-7 (Anxiety)",
		ClinicalInfo: "GAD-7: Anxiety severity (0-21 scale, >=15 indicates severe anxiety)",
		Schema: Schema{
			Version:  "gad7/v1",
			Prefixes: []string{"col_"},
			Indexed:  true,
			MinIndex: 1,
			MaxIndex: 7,
		},
	},
	{
		Kind:         KindWHO,
		Table:        "WHO",
		DisplayName:  "WHO-5 (Well-being)",
		ClinicalInfo: "WHO-5: Well-being index (0-100 scale when multiplied by 4, <=52 indicates poor well-being)",
		Schema: Schema{
			Version:  "who5/v1",
			Prefixes: []string{"col_"},
			Indexed:  true,
			MinIndex: 1,
			MaxIndex: 5,
		},
	},
	{
		Kind:         KindDERS,
		Table:        "DERS",
		DisplayName:  "DERS (Emotion Regulation)",
		ClinicalInfo: "DERS: Emotion regulation difficulties (36-180 scale, higher = more difficulties)",
		Schema: Schema{
			Version:  "ders/v1",
			Prefixes: []string{"ders_q", "ders2_q"},
		},
	},
	{
		Kind:         KindDERS2,
		Table:        "DERS_2",
		DisplayName:  "DERS (Emotion Regulation)",
		ClinicalInfo: "DERS: Emotion regulation difficulties (36-180 scale, higher = more difficulties)",
		Schema: Schema{
			Version:  "ders/v1",
			Prefixes: []string{"ders_q", "ders2_q"},
		},
	},
}

// SubstanceTable is the default table holding per-substance use rows.
const SubstanceTable = "Patient Substance History"

// Default key columns shared by every assessment table.
const (
	DefaultPatientColumn = "group_identifier"
	DefaultDateColumn    = "assessment_date"
)

// KindByName returns the KindInfo for the given name (case-insensitive), or ok=false.
func KindByName(name string) (KindInfo, bool) {
	n := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range AllKinds {
		if k.Kind == n {
			return k, true
		}
	}
	return KindInfo{}, false
}

// MustKind returns the KindInfo for a kind known to be valid.
func MustKind(k Kind) KindInfo {
	info, ok := KindByName(string(k))
	if !ok {
		panic("model: unknown kind " + string(k))
	}
	return info
}

// KindNames returns the names of all supported kinds.
func KindNames() []string {
	names := make([]string, len(AllKinds))
	for i, k := range AllKinds {
		names[i] = string(k.Kind)
	}
	return names
}

// IsDERS reports whether k is either DERS version.
func (k Kind) IsDERS() bool {
	return k == KindDERS || k == KindDERS2
}
