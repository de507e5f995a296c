package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// CompareToPopulation places the patient's latest total for kind within
// the totals of every stored assessment of that kind.
func (s *Service) CompareToPopulation(ctx context.Context, patient, kind string) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}
	info, bad := parseKind(kind, clinicalKinds)
	if bad != nil {
		bad.Message = "Invalid assessment type. Choose from: ptsd, phq, gad, who"
		return *bad
	}
	table := s.table(info.Kind)

	latest, err := s.fetch(ctx, s.patientQuery(table, id, false).LimitTo(1))
	if err != nil {
		return Upstream("compare patient to population", err)
	}
	if len(latest) == 0 {
		return NotFound("No %s assessments found for patient %s", info.Kind, id)
	}
	cohort, err := s.fetch(ctx, store.From(table))
	if err != nil {
		return Upstream("compare patient to population", err)
	}
	if len(cohort) == 0 {
		return NotFound("No population data available for %s", info.Kind)
	}

	rec := latest[0]
	res := scoring.Resolve(info.Kind, rec.Columns())
	if res.Empty() {
		return OK(model.PopulationComparison{
			PatientID:      id,
			AssessmentType: string(info.Kind),
			AssessmentDate: rec.Time(s.opts.DateCol),
			PopulationSize: len(cohort),
			Message:        fmt.Sprintf("No scoring columns found for %s", info.Kind),
		})
	}

	patientTotal, _ := s.scorer.Total(rec, res.Columns)
	totals := make([]float64, len(cohort))
	for i, r := range cohort {
		totals[i], _ = s.scorer.Total(r, res.Columns)
	}

	cmp := scoring.ComparePopulation(patientTotal, totals)
	cmp.PatientID = id
	cmp.AssessmentType = string(info.Kind)
	cmp.AssessmentDate = rec.Time(s.opts.DateCol)
	return OK(cmp)
}

// CohortFlags is the ranked list of patients needing clinical attention.
type CohortFlags struct {
	FlaggedPatientCount int                    `json:"flagged_patient_count"`
	Patients            []model.FlaggedPatient `json:"patients"`
	Criteria            map[string]string      `json:"criteria"`
	Timestamp           string                 `json:"timestamp"`
	Errors              map[string]string      `json:"errors,omitempty"`
}

// FlagCohort scans the latest assessment of every patient against the
// clinical cutoffs. Kinds whose fetch fails are reported under errors.
func (s *Service) FlagCohort(ctx context.Context) Result {
	var (
		mu      sync.Mutex
		cohorts = map[model.Kind][]model.Record{}
		errs    = map[string]string{}
	)
	var g errgroup.Group
	for _, c := range scoring.Cutoffs {
		g.Go(func() error {
			rows, err := s.fetch(ctx, store.From(s.table(c.Kind)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[string(c.Kind)] = err.Error()
				return nil
			}
			cohorts[c.Kind] = rows
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(scoring.Cutoffs) {
		return Result{Status: StatusUpstream, Message: "Failed to identify patients needing attention: every fetch failed", Details: errs}
	}

	f := scoring.Flagger{Scorer: s.scorer, PatientCol: s.opts.PatientCol, DateCol: s.opts.DateCol}
	flagged := f.Flag(cohorts)
	if flagged == nil {
		flagged = []model.FlaggedPatient{}
	}
	out := CohortFlags{
		FlaggedPatientCount: len(flagged),
		Patients:            flagged,
		Criteria:            scoring.CutoffCriteria(),
		Timestamp:           isoTime(s.now()),
	}
	if len(errs) > 0 {
		out.Errors = errs
	}
	return OK(out)
}
