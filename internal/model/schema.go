package model

// Schema is the static description of which record columns hold scored
// questions for a kind. It is resolved once against a record's key set.
type Schema struct {
	Version string

	// Prefixes are the accepted question-column prefixes.
	Prefixes []string

	// Indexed schemas name columns "{prefix}{n}_{label}" and only accept
	// n in [MinIndex, MaxIndex].
	Indexed  bool
	MinIndex int
	MaxIndex int

	// NonScoringByIx names sibling items that share the prefix but are not
	// scored, e.g. the PHQ-9 difficulty rating at index 10.
	NonScoringByIx map[int]string

	// Exclude lists literal column names that are never scored.
	Exclude []string
}
