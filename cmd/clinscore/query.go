package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/clinscore/internal/engine"
)

var (
	queryPatient string
	queryKind    string
	progressKind string
	compareKind  string
	queryLimit   int
	queryStart   string
	queryEnd     string
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Print a patient's scored assessments",
	Long: "Prints scored assessments for one kind, or an overview when --kind lists several\n" +
		"kinds or is omitted. --start/--end filter the overview by assessment date.",
	RunE: runScores,
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Print first-to-latest progress for a patient",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup(cmd.Context())
		defer a.Close()
		return emit(a, a.svc.GetProgress(cmd.Context(), queryPatient, progressKind))
	},
}

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Print a patient's composite risk score",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup(cmd.Context())
		defer a.Close()
		return emit(a, a.svc.GetCompositeRisk(cmd.Context(), queryPatient))
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a patient's latest total to the population",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup(cmd.Context())
		defer a.Close()
		return emit(a, a.svc.CompareToPopulation(cmd.Context(), queryPatient, compareKind))
	},
}

var flagCmd = &cobra.Command{
	Use:   "flag",
	Short: "List patients whose latest totals cross clinical cutoffs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup(cmd.Context())
		defer a.Close()
		return emit(a, a.svc.FlagCohort(cmd.Context()))
	},
}

func init() {
	for _, c := range []*cobra.Command{scoresCmd, progressCmd, riskCmd, compareCmd} {
		c.Flags().StringVar(&queryPatient, "patient", "", "Patient group identifier (required)")
		_ = c.MarkFlagRequired("patient")
	}
	scoresCmd.Flags().StringVar(&queryKind, "kind", "", "Assessment kind, or comma-separated kinds (default all)")
	scoresCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum assessments per kind (0 = no limit)")
	scoresCmd.Flags().StringVar(&queryStart, "start", "", "Earliest assessment date (YYYY-MM-DD)")
	scoresCmd.Flags().StringVar(&queryEnd, "end", "", "Latest assessment date (YYYY-MM-DD)")
	progressCmd.Flags().StringVar(&progressKind, "kind", "all", "ptsd, phq, gad, who or all")
	compareCmd.Flags().StringVar(&compareKind, "kind", "", "ptsd, phq, gad or who (required)")
	_ = compareCmd.MarkFlagRequired("kind")

	rootCmd.AddCommand(scoresCmd, progressCmd, riskCmd, compareCmd, flagCmd)
}

func runScores(cmd *cobra.Command, args []string) error {
	a := setup(cmd.Context())
	defer a.Close()

	var kinds []string
	for _, k := range strings.Split(queryKind, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 1 && queryStart == "" && queryEnd == "" {
		return emit(a, a.svc.GetScores(cmd.Context(), queryPatient, kinds[0], queryLimit))
	}
	df := engine.DateFilter{Start: queryStart, End: queryEnd}
	return emit(a, a.svc.GetAllAssessments(cmd.Context(), queryPatient, kinds, df, queryLimit))
}
