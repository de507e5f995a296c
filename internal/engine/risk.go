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

// GetCompositeRisk combines the latest result of each clinical domain and
// the patient's substance history into one risk assessment. Domains are
// fetched concurrently; a domain whose fetch fails is omitted and listed
// under domain_errors.
func (s *Service) GetCompositeRisk(ctx context.Context, patient string) Result {
	id, bad := patientID(patient)
	if bad != nil {
		return *bad
	}

	var (
		mu      sync.Mutex
		domains = map[string]model.RiskDomain{}
		errs    = map[string]string{}
	)
	record := func(name string, d *model.RiskDomain, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			errs[name] = err.Error()
		case d != nil:
			domains[name] = *d
		}
	}

	var g errgroup.Group
	for _, name := range scoring.DomainOrder {
		kind, clinical := scoring.DomainKinds[name]
		g.Go(func() error {
			if clinical {
				d, err := s.clinicalDomain(ctx, id, kind)
				record(name, d, err)
				return nil
			}
			d, err := s.substanceDomain(ctx, id)
			record(name, d, err)
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(scoring.DomainOrder) {
		return Result{Status: StatusUpstream, Message: "Failed to calculate composite risk score: every domain fetch failed", Details: errs}
	}

	cr := scoring.Composite(id, domains)
	if len(errs) > 0 {
		cr.DomainErrors = errs
		s.log.Warn().Str("patient_id", id).Int("failed_domains", len(errs)).Msg("composite risk computed with missing domains")
	}
	if cr.DomainsAssessed == 0 {
		return Result{Status: StatusNotFound, Message: scoring.ErrNoRiskData, Details: cr.DomainErrors}
	}
	return OK(cr)
}

// clinicalDomain scores the newest assessment of kind. A nil domain means
// the patient has none.
func (s *Service) clinicalDomain(ctx context.Context, id string, kind model.Kind) (*model.RiskDomain, error) {
	rows, err := s.fetch(ctx, s.patientQuery(s.table(kind), id, false).LimitTo(1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sa := s.score(rows[0], kind)
	d := scoring.ClinicalDomain(sa)
	return &d, nil
}

// substanceDomain scores all substance rows. A nil domain means the
// patient has no substance history.
func (s *Service) substanceDomain(ctx context.Context, id string) (*model.RiskDomain, error) {
	rows, err := s.fetch(ctx, store.From(s.opts.SubstanceTable).Eq(s.opts.PatientCol, id))
	if err != nil {
		return nil, fmt.Errorf("fetch substance history: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	d := scoring.SubstanceRisk(scoring.SubstanceUses(rows))
	return &d, nil
}
