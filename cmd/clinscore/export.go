package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/clinscore/internal/exitcode"
	"github.com/gyeh/clinscore/internal/export"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
)

var exportOpts export.Options

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write scored assessments of one kind to parquet or xlsx",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar((*string)(&exportOpts.Kind), "kind", "", "Assessment kind: ptsd, phq, gad, who, ders or ders2 (required)")
	f.StringVar(&exportOpts.OutputPath, "out", "", "Output file, .parquet or .xlsx (required)")
	f.StringVar(&exportOpts.Format, "format", "", "Output format: parquet or xlsx (default from --out extension)")
	f.StringVar(&exportOpts.PatientID, "patient", "", "Export only this patient")
	_ = exportCmd.MarkFlagRequired("kind")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	a := setup(cmd.Context())
	defer a.Close()

	if info, ok := model.KindByName(string(exportOpts.Kind)); ok {
		exportOpts.Kind = info.Kind
		exportOpts.Table = cfg.Table(info.Kind)
	}
	exportOpts.PatientCol = cfg.PatientColumn
	exportOpts.DateCol = cfg.DateColumn

	policy, _ := scoring.PolicyByName(cfg.AnsweredPolicy)
	summary, err := export.Run(cmd.Context(), a.store, scoring.NewScorer(policy), a.log, exportOpts)
	if err != nil {
		code := exitcode.ExportError
		var pe *export.PhaseError
		if errors.As(err, &pe) {
			a.log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("export failed")
			switch pe.Phase {
			case export.PhaseValidate:
				code = exitcode.InvalidArgument
			case export.PhaseFetch:
				code = exitcode.UpstreamError
			}
		} else {
			a.log.Error().Err(err).Msg("export failed")
		}
		a.Close()
		os.Exit(code)
	}

	fmt.Printf("Export complete: %d rows written to %s (%s, %.1fs)\n",
		summary.RowsWritten, summary.OutputPath, summary.Format, summary.DurationTotal.Seconds())
	return nil
}
