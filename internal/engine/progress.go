package engine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
)

// KindAll selects every clinical kind in progress analysis.
const KindAll = "all"

// GetProgress analyzes how a patient's totals changed over time for one
// clinical kind, or for all of them.
func (s *Service) GetProgress(ctx context.Context, patient, kind string) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = KindAll
	}

	kinds := clinicalKinds
	if kind != KindAll {
		info, bad := parseKind(kind, clinicalKinds)
		if bad != nil {
			bad.Message = "Invalid assessment type. Choose from: ptsd, phq, gad, who, all"
			return *bad
		}
		kinds = []model.Kind{info.Kind}
	}

	sections := make([]model.Progress, len(kinds))
	var g errgroup.Group
	for i, k := range kinds {
		g.Go(func() error {
			sections[i] = s.progress(ctx, id, k)
			return nil
		})
	}
	_ = g.Wait()

	report := model.ProgressReport{
		PatientID:      id,
		AssessmentType: kind,
		Assessments:    make(map[string]model.Progress, len(kinds)),
	}
	var failed, empty int
	var lastErr string
	for i, k := range kinds {
		p := sections[i]
		report.Assessments[string(k)] = p
		switch {
		case p.Error != "":
			failed++
			lastErr = p.Error
		case p.Trends == nil:
			empty++
		}
	}
	switch {
	case failed == len(kinds):
		return Result{Status: StatusUpstream, Message: lastErr}
	case empty == len(kinds):
		return NotFound("No %s assessments found for patient %s", kind, id)
	}
	return OK(report)
}

// progress builds the trend for one kind from the patient's full history,
// oldest first.
func (s *Service) progress(ctx context.Context, id string, k model.Kind) model.Progress {
	rows, err := s.fetch(ctx, s.patientQuery(s.table(k), id, true))
	if err != nil {
		return model.Progress{Error: fmt.Sprintf("Failed to retrieve %s data: %v", k, err)}
	}
	if len(rows) == 0 {
		return model.Progress{Message: fmt.Sprintf("No %s assessments found", k)}
	}
	scored, res := s.scoreAll(rows, k)
	if res.Empty() {
		return model.Progress{Message: fmt.Sprintf("No scoring columns found for %s", k)}
	}
	points := make([]model.TrendPoint, len(scored))
	for i, sa := range scored {
		points[i] = model.TrendPoint{AssessmentDate: sa.AssessmentDate, TotalScore: sa.TotalScore}
	}
	trend := scoring.AnalyzeTrend(points)
	return model.Progress{
		Scores:    points,
		DateRange: scoring.SpanOf(points),
		Trends:    &trend,
	}
}
