package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gyeh/clinscore/internal/model"
)

// Skipped is a column that carries a scoring prefix but was not resolved.
type Skipped struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// Resolution is the result of matching a kind's schema against a column set.
type Resolution struct {
	Kind          model.Kind `json:"kind"`
	SchemaVersion string     `json:"schema_version"`
	Columns       []string   `json:"columns"`
	Skipped       []Skipped  `json:"skipped,omitempty"`
}

// Empty reports whether no scoring columns were found.
func (r Resolution) Empty() bool { return len(r.Columns) == 0 }

// Resolve returns the scoring columns for kind among columns. Indexed
// schemas order columns by question index; others keep input order.
// An unknown kind resolves to an empty set.
func Resolve(kind model.Kind, columns []string) Resolution {
	info, ok := model.KindByName(string(kind))
	if !ok {
		return Resolution{Kind: kind}
	}
	s := info.Schema
	res := Resolution{Kind: info.Kind, SchemaVersion: s.Version}

	type indexed struct {
		col string
		ix  int
	}
	var hits []indexed

	for _, col := range columns {
		if excluded(s, col) {
			continue
		}
		prefix, ok := matchPrefix(s.Prefixes, col)
		if !ok {
			continue
		}
		if !s.Indexed {
			res.Columns = append(res.Columns, col)
			continue
		}
		ix, ok := questionIndex(col[len(prefix):])
		if !ok {
			res.Skipped = append(res.Skipped, Skipped{Column: col, Reason: "no question index"})
			continue
		}
		if ix < s.MinIndex || ix > s.MaxIndex {
			reason := fmt.Sprintf("index %d outside %d..%d", ix, s.MinIndex, s.MaxIndex)
			if name, ok := s.NonScoringByIx[ix]; ok {
				reason = name
			}
			res.Skipped = append(res.Skipped, Skipped{Column: col, Reason: reason})
			continue
		}
		hits = append(hits, indexed{col: col, ix: ix})
	}

	if s.Indexed {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].ix < hits[j].ix })
		for _, h := range hits {
			res.Columns = append(res.Columns, h.col)
		}
	}
	return res
}

func excluded(s model.Schema, col string) bool {
	for _, e := range s.Exclude {
		if col == e {
			return true
		}
	}
	return false
}

func matchPrefix(prefixes []string, col string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(col, p) {
			return p, true
		}
	}
	return "", false
}

// questionIndex parses the "{n}_" head of rest. Leading zeros are rejected
// so "01_x" never aliases question 1.
func questionIndex(rest string) (int, bool) {
	digits, _, found := strings.Cut(rest, "_")
	if !found || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}
