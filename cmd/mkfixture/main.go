// mkfixture generates a synthetic assessment fixture for the fixture driver
// and for migrate --seed. Question columns are taken from the embedded
// migrations so the output always loads into a migrated database.
// Usage: go run ./cmd/mkfixture --out testdata/cohort.yaml --patients 50
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	embedsql "github.com/gyeh/clinscore/internal/sql"
)

// itemRange is the answer range of one question for a kind.
var itemRange = map[model.Kind][2]int{
	model.KindPTSD:  {0, 4},
	model.KindPHQ:   {0, 3},
	model.KindGAD:   {0, 3},
	model.KindWHO:   {0, 5},
	model.KindDERS:  {1, 5},
	model.KindDERS2: {1, 5},
}

// Patients are spread over severity buckets; bias is where in the item
// range a bucket's answers land.
var buckets = []struct {
	name string
	bias float64
}{
	{"minimal", 0.1},
	{"mild", 0.35},
	{"moderate", 0.6},
	{"severe", 0.9},
}

var substances = []struct {
	name     string
	patterns []string
}{
	{"Alcohol", []string{"Daily", "Weekly", "Monthly", "Occasional"}},
	{"Cannabis", []string{"Daily", "Weekly", "Occasional"}},
	{"Heroin", []string{"Daily", "Continued", "Weekly"}},
	{"Crack Cocaine", []string{"Daily", "Weekly"}},
	{"Crystal Meth", []string{"Continual", "Weekly"}},
	{"Oxycontin", []string{"Daily", "Occasional"}},
	{"Nicotine", []string{"Daily"}},
}

var (
	tableRe  = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS "([^"]+)" \((.*?)\n\);`)
	columnRe = regexp.MustCompile(`(?m)^\s+(\w+)\s+smallint`)
)

func main() {
	out := flag.String("out", "testdata/cohort.yaml", "output fixture file")
	patients := flag.Int("patients", 50, "number of patients")
	maxVisits := flag.Int("visits", 4, "max assessments per patient and kind")
	seed := flag.Uint64("seed", 1, "random seed")
	asOf := flag.String("as-of", time.Now().UTC().Format("2006-01-02"), "latest assessment date (YYYY-MM-DD)")
	flag.Parse()

	end, err := time.Parse("2006-01-02", *asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse --as-of: %v\n", err)
		os.Exit(1)
	}

	columns, err := migrationColumns()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read migrations: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	doc := map[string][]map[string]any{}
	scorer := scoring.NewScorer(nil)
	severity := map[model.Kind]map[string]int{}

	for p := 1; p <= *patients; p++ {
		id := fmt.Sprintf("P%03d", p)
		b := buckets[rng.IntN(len(buckets))]

		for _, k := range model.AllKinds {
			cols := columns[k.Table]
			res := scoring.Resolve(k.Kind, cols)
			if res.Empty() {
				continue
			}
			visits := rng.IntN(*maxVisits + 1)
			for v := 0; v < visits; v++ {
				date := end.AddDate(0, 0, -rng.IntN(540))
				row := map[string]any{
					model.DefaultPatientColumn: id,
					model.DefaultDateColumn:    date.Format("2006-01-02"),
				}
				lo, hi := itemRange[k.Kind][0], itemRange[k.Kind][1]
				for _, c := range cols {
					row[c] = answer(rng, lo, hi, b.bias)
				}
				sa := scorer.ScoreResolved(model.Record(row), res)
				if severity[k.Kind] == nil {
					severity[k.Kind] = map[string]int{}
				}
				severity[k.Kind][sa.Severity]++
				doc[k.Table] = append(doc[k.Table], row)
			}
		}

		for _, s := range substances {
			if rng.Float64() > 0.25+b.bias/2 {
				continue
			}
			use := 0
			if rng.Float64() < b.bias {
				use = 1
			}
			doc[model.SubstanceTable] = append(doc[model.SubstanceTable], map[string]any{
				model.DefaultPatientColumn: id,
				"substance":                s.name,
				"use_flag":                 use,
				"pattern_of_use":           s.patterns[rng.IntN(len(s.patterns))],
				"age_of_first_use":         14 + rng.IntN(20),
			})
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode fixture: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write fixture: %v\n", err)
		os.Exit(1)
	}

	// Print summary
	tables := make([]string, 0, len(doc))
	for t := range doc {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	fmt.Printf("Wrote %d patients to %s\n", *patients, *out)
	for _, t := range tables {
		fmt.Printf("  %-28s %d rows\n", t, len(doc[t]))
	}
	fmt.Println("Severity distribution:")
	for _, k := range model.AllKinds {
		counts := severity[k.Kind]
		if len(counts) == 0 {
			continue
		}
		labels := make([]string, 0, len(counts))
		for l := range counts {
			labels = append(labels, fmt.Sprintf("%s=%d", l, counts[l]))
		}
		sort.Strings(labels)
		fmt.Printf("  %-6s %s\n", k.Kind, strings.Join(labels, " "))
	}
}

// answer draws an item value near bias within [lo, hi].
func answer(rng *rand.Rand, lo, hi int, bias float64) int {
	span := float64(hi - lo)
	v := lo + int(bias*span+rng.NormFloat64()*0.8+0.5)
	return min(max(v, lo), hi)
}

// migrationColumns maps each table to its smallint columns.
func migrationColumns() (map[string][]string, error) {
	out := map[string][]string{}
	err := fs.WalkDir(embedsql.Migrations, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(embedsql.Migrations, path)
		if err != nil {
			return err
		}
		for _, m := range tableRe.FindAllStringSubmatch(string(data), -1) {
			for _, c := range columnRe.FindAllStringSubmatch(m[2], -1) {
				out[m[1]] = append(out[m[1]], c[1])
			}
		}
		return nil
	})
	return out, err
}
