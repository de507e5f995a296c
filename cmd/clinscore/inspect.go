package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/clinscore/internal/exitcode"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

var (
	inspectKind   string
	inspectSample int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dry-run column resolution and scoring stats per kind (no writes)",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectKind, "kind", "", "Inspect only this kind (default all)")
	inspectCmd.Flags().IntVar(&inspectSample, "sample", 1000, "Rows sampled per table")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	a := setup(cmd.Context())
	defer a.Close()
	ctx := cmd.Context()

	kinds := model.AllKinds
	if inspectKind != "" {
		info, ok := model.KindByName(inspectKind)
		if !ok {
			a.log.Error().Str("kind", inspectKind).Strs("valid", model.KindNames()).Msg("unknown assessment kind")
			a.Close()
			os.Exit(exitcode.InvalidArgument)
		}
		kinds = []model.KindInfo{info}
	}

	policy, _ := scoring.PolicyByName(cfg.AnsweredPolicy)
	sc := scoring.NewScorer(policy)

	fmt.Println("=== clinscore inspect ===")
	fmt.Printf("Driver:  %s\n", cfg.Driver)
	fmt.Printf("Sample:  %d rows per table\n", inspectSample)

	failed := 0
	for _, k := range kinds {
		table := cfg.Table(k.Kind)
		fmt.Printf("\n%s  [table %q]\n", k.DisplayName, table)

		rows, err := a.store.Execute(ctx, store.From(table).LimitTo(inspectSample))
		if err != nil {
			failed++
			fmt.Printf("  error: %v\n", err)
			continue
		}
		cols := map[string]bool{}
		for _, r := range rows {
			for _, c := range r.Columns() {
				cols[c] = true
			}
		}
		names := make([]string, 0, len(cols))
		for c := range cols {
			names = append(names, c)
		}
		sort.Strings(names)

		res := scoring.Resolve(k.Kind, names)
		fmt.Printf("  Sampled rows:    %d\n", len(rows))
		fmt.Printf("  Schema version:  %s\n", res.SchemaVersion)
		fmt.Printf("  Scored columns:  %d\n", len(res.Columns))
		if len(res.Columns) > 0 {
			fmt.Printf("    %s\n", strings.Join(res.Columns, ", "))
		}
		for _, sk := range res.Skipped {
			fmt.Printf("  skipped %-24s %s\n", sk.Column, sk.Reason)
		}
		if res.Empty() {
			if len(rows) > 0 {
				fmt.Println("  WARNING: no scoring columns found")
			}
			continue
		}

		totals := make([]float64, 0, len(rows))
		severity := map[string]int{}
		for _, r := range rows {
			sa := sc.ScoreResolved(r, res)
			totals = append(totals, sa.TotalScore)
			if sa.Severity != "" {
				severity[sa.Severity]++
			}
		}
		d := scoring.Describe(totals)
		fmt.Printf("  Totals:          min %.1f  median %.1f  max %.1f  mean %.2f\n", d.Min, d.Median, d.Max, d.Mean)
		if len(severity) > 0 {
			labels := make([]string, 0, len(severity))
			for l := range severity {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			fmt.Println("  Severity (sampled):")
			for _, l := range labels {
				fmt.Printf("    %-24s %d\n", l, severity[l])
			}
		}
	}

	if failed > 0 {
		a.log.Error().Int("tables", failed).Msg("some tables could not be read")
		a.Close()
		os.Exit(exitcode.UpstreamError)
	}
	return nil
}
