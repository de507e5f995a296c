// Package export writes scored assessments of one kind to parquet or xlsx.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// Output formats.
const (
	FormatParquet = "parquet"
	FormatXLSX    = "xlsx"
)

// Pipeline phases, reported in PhaseError.
const (
	PhaseValidate = "validate"
	PhaseFetch    = "fetch"
	PhaseScore    = "score"
	PhaseWrite    = "write"
)

// PhaseError wraps an error with the phase where it occurred.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Options selects what to export and where.
type Options struct {
	Kind       model.Kind
	Table      string
	PatientCol string
	DateCol    string
	// PatientID limits the export to one patient when set.
	PatientID  string
	OutputPath string
	// Format is inferred from OutputPath's extension when empty.
	Format string
}

// FormatFor returns the export format implied by path's extension.
func FormatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("cannot infer export format from %q; use .parquet or .xlsx", path)
}

func (o *Options) validate() error {
	if _, ok := model.KindByName(string(o.Kind)); !ok {
		return fmt.Errorf("unknown assessment kind %q", o.Kind)
	}
	if o.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if o.Format == "" {
		f, err := FormatFor(o.OutputPath)
		if err != nil {
			return err
		}
		o.Format = f
	}
	if o.Format != FormatParquet && o.Format != FormatXLSX {
		return fmt.Errorf("unknown export format %q", o.Format)
	}
	if o.Table == "" {
		o.Table = model.MustKind(o.Kind).Table
	}
	if o.PatientCol == "" {
		o.PatientCol = model.DefaultPatientColumn
	}
	if o.DateCol == "" {
		o.DateCol = model.DefaultDateColumn
	}
	return nil
}

// Run executes the export pipeline: validate → fetch → score → write.
func Run(ctx context.Context, st store.Store, sc *scoring.Scorer, log zerolog.Logger, opts Options) (*model.ExportSummary, error) {
	totalStart := time.Now()
	if err := opts.validate(); err != nil {
		return nil, &PhaseError{Phase: PhaseValidate, Err: err}
	}
	log = log.With().Str("kind", string(opts.Kind)).Str("table", opts.Table).Logger()

	// Phase 1: Fetch
	log.Info().Msg("fetching assessments")
	fetchStart := time.Now()
	q := store.From(opts.Table).OrderBy(opts.PatientCol, false).OrderBy(opts.DateCol, false)
	if opts.PatientID != "" {
		q = q.Eq(opts.PatientCol, opts.PatientID)
	}
	rows, err := st.Execute(ctx, q)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseFetch, Err: err}
	}
	fetchDur := time.Since(fetchStart)

	// Phase 2: Score
	scoreStart := time.Now()
	out, res := scoreRows(sc, rows, opts)
	if len(rows) > 0 && res.Empty() {
		return nil, &PhaseError{Phase: PhaseScore, Err: fmt.Errorf("no scoring columns found in %s", opts.Table)}
	}
	for _, sk := range res.Skipped {
		log.Debug().Str("column", sk.Column).Str("reason", sk.Reason).Msg("column not scored")
	}
	scoreDur := time.Since(scoreStart)

	// Phase 3: Write
	log.Info().Int("rows", len(out)).Str("path", opts.OutputPath).Msg("writing export")
	writeStart := time.Now()
	switch opts.Format {
	case FormatParquet:
		err = WriteParquet(opts.OutputPath, out)
	case FormatXLSX:
		err = WriteXLSX(opts.OutputPath, string(opts.Kind), out)
	}
	if err != nil {
		return nil, &PhaseError{Phase: PhaseWrite, Err: err}
	}

	summary := &model.ExportSummary{
		Kind:          string(opts.Kind),
		OutputPath:    opts.OutputPath,
		Format:        opts.Format,
		RowsFetched:   len(rows),
		RowsWritten:   len(out),
		DurationFetch: fetchDur,
		DurationScore: scoreDur,
		DurationWrite: time.Since(writeStart),
		DurationTotal: time.Since(totalStart),
	}
	log.Info().
		Int("rows_fetched", summary.RowsFetched).
		Int("rows_written", summary.RowsWritten).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("export complete")
	return summary, nil
}

// scoreRows scores every row against one resolution of the union of their
// columns, so rows missing a column still line up with the rest.
func scoreRows(sc *scoring.Scorer, rows []model.Record, opts Options) ([]model.ScoreRow, scoring.Resolution) {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for _, c := range r.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	res := scoring.Resolve(opts.Kind, cols)

	out := make([]model.ScoreRow, 0, len(rows))
	for _, r := range rows {
		sa := sc.ScoreResolved(r, res)
		sa.PatientID = r.String(opts.PatientCol)
		sa.AssessmentDate = r.Time(opts.DateCol)
		out = append(out, model.NewScoreRow(sa))
	}
	return out, res
}
