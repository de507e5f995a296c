package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/clinscore/internal/cache"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/pagination"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

var testNow = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func items(prefix string, vals ...int) model.Record {
	r := model.Record{}
	for i, v := range vals {
		r[fmt.Sprintf("%s%d_item", prefix, i+1)] = v
	}
	return r
}

func row(id, date string, base model.Record) model.Record {
	base["group_identifier"] = id
	base["assessment_date"] = date
	return base
}

func phq(id, date string, vals ...int) model.Record { return row(id, date, items("col_", vals...)) }

func seed(m *store.Memory) {
	for _, k := range model.AllKinds {
		m.Insert(k.Table)
	}
	m.Insert(model.SubstanceTable)

	m.Insert("PHQ",
		phq("P001", "2024-01-10", 2, 2, 3, 2, 1, 2, 2, 1, 0, 2),
		phq("P001", "2024-03-01", 1, 1, 1, 1, 1, 0, 0, 0, 0),
		phq("P002", "2024-02-15", 1, 1, 1, 1, 1, 1, 1, 0, 0),
		phq("P003", "2024-02-20", 3, 3, 3, 3, 2, 2, 2, 1, 1),
		phq("P005", "2022-01-01", 0, 0, 0, 0, 0, 0, 0, 0, 0),
	)
	m.Insert("GAD", row("P003", "2024-02-20", items("col_", 3, 3, 3, 3, 2, 1, 1)))
	ptsd := make([]int, 20)
	for i := range ptsd {
		ptsd[i] = 3
		if i >= 15 {
			ptsd[i] = 2
		}
	}
	m.Insert("PTSD", row("P004", "2024-01-05", items("ptsd_q", ptsd...)))
	m.Insert("DERS", row("P001", "2024-02-01", items("ders_q", 30, 30, 30)))
	m.Insert("DERS_2", row("P001", "2024-05-01", items("ders2_q", 40, 30, 30)))
	m.Insert(model.SubstanceTable,
		model.Record{"group_identifier": "P002", "substance": "Heroin", "use_flag": 1, "pattern_of_use": "Weekly"},
		model.Record{"group_identifier": "P002", "substance": "Alcohol", "use_flag": 0, "pattern_of_use": "Daily"},
	)
}

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	seed(m)
	svc := New(m, cache.New(100, time.Minute), scoring.NewScorer(nil), zerolog.Nop(), Options{Version: "test"})
	svc.now = func() time.Time { return testNow }
	return svc, m
}

func payload[T any](t *testing.T, r Result) T {
	t.Helper()
	if r.Status != StatusOK {
		t.Fatalf("status = %s (%s), want ok", r.Status, r.Message)
	}
	v, ok := r.Payload.(T)
	if !ok {
		t.Fatalf("payload type = %T", r.Payload)
	}
	return v
}

func wantStatus(t *testing.T, r Result, want Status) {
	t.Helper()
	if r.Status != want {
		t.Fatalf("status = %s (%s), want %s", r.Status, r.Message, want)
	}
}

func TestGetScores_PHQ(t *testing.T) {
	svc, _ := newTestService(t)
	h := payload[*model.ScoreHistory](t, svc.GetScores(context.Background(), " p001 ", "PHQ", 0))

	if h.PatientID != "P001" || h.AssessmentCount != 2 {
		t.Fatalf("got %+v", h)
	}
	if *h.LatestScore != 5 || h.LatestSeverity != "mild" {
		t.Errorf("latest = %v %s, want 5 mild", *h.LatestScore, h.LatestSeverity)
	}
	older := h.Assessments[1]
	if older.TotalScore != 15 || older.Severity != "moderately_severe" || older.QuestionsAnswered != 8 {
		t.Errorf("older = %v %s %d", older.TotalScore, older.Severity, older.QuestionsAnswered)
	}
}

func TestGetScores_Limit(t *testing.T) {
	svc, _ := newTestService(t)
	h := payload[*model.ScoreHistory](t, svc.GetScores(context.Background(), "P001", "phq", 1))
	if h.AssessmentCount != 1 || *h.LatestScore != 5 {
		t.Errorf("got %+v", h)
	}
}

func TestGetScores_Errors(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	wantStatus(t, svc.GetScores(ctx, "P999", "phq", 0), StatusNotFound)
	wantStatus(t, svc.GetScores(ctx, "P001", "bdi", 0), StatusInvalid)
	wantStatus(t, svc.GetScores(ctx, "X", "phq", 0), StatusInvalid)
	wantStatus(t, svc.GetScores(ctx, "P001", "phq", -1), StatusInvalid)

	m.FailTable("PHQ", errors.New("connection reset"))
	r := svc.GetScores(ctx, "P001", "phq", 0)
	wantStatus(t, r, StatusUpstream)
	if !strings.Contains(r.Message, "connection reset") {
		t.Errorf("message %q lost the cause", r.Message)
	}
}

func TestGetScores_DERSMerge(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	h := payload[*model.ScoreHistory](t, svc.GetScores(ctx, "P001", "ders", 0))
	if h.AssessmentCount != 2 {
		t.Fatalf("count = %d, want 2", h.AssessmentCount)
	}
	if h.Assessments[0].DERSVersion != DERSVersion2 || h.Assessments[1].DERSVersion != DERSVersion1 {
		t.Errorf("versions = %s, %s", h.Assessments[0].DERSVersion, h.Assessments[1].DERSVersion)
	}
	if h.Assessments[0].TotalScore != 100 || h.Assessments[0].Severity != "moderate_difficulties" {
		t.Errorf("newest = %+v", h.Assessments[0])
	}

	h = payload[*model.ScoreHistory](t, svc.GetScores(ctx, "P001", "ders", 1))
	if h.AssessmentCount != 1 || h.Assessments[0].DERSVersion != DERSVersion2 {
		t.Errorf("limited = %+v", h.Assessments)
	}
}

func TestGetAllAssessments_PartialFailure(t *testing.T) {
	svc, m := newTestService(t)
	m.FailTable("GAD", errors.New("timeout"))

	ov := payload[Overview](t, svc.GetAllAssessments(context.Background(), "P001", []string{"PHQ", "gad", "bogus"}, DateFilter{}, 0))
	if ov.TotalAssessments != 2 {
		t.Errorf("total = %d, want 2", ov.TotalAssessments)
	}
	if got := ov.AssessmentBreakdown["gad"].Error; !strings.Contains(got, "timeout") {
		t.Errorf("gad error = %q", got)
	}
	if ov.Summary["phq_count"] != 2 || ov.Summary["gad_count"] != 0 {
		t.Errorf("summary = %v", ov.Summary)
	}
	if _, ok := ov.LatestScoresSummary["gad"]; ok {
		t.Error("failed kind should not have a latest score")
	}
	if len(ov.FiltersApplied.AssessmentTypes) != 2 {
		t.Errorf("types = %v", ov.FiltersApplied.AssessmentTypes)
	}
}

func TestGetAllAssessments_Defaults(t *testing.T) {
	svc, _ := newTestService(t)
	ov := payload[Overview](t, svc.GetAllAssessments(context.Background(), "P001", nil, DateFilter{}, 0))
	if ov.TotalAssessments != 4 {
		t.Errorf("total = %d, want 4 (2 phq + 2 ders)", ov.TotalAssessments)
	}
	if ov.AssessmentBreakdown["ptsd"].Message == "" {
		t.Error("empty kind should carry a message")
	}
}

func TestGetAllAssessments_DateRange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ov := payload[Overview](t, svc.GetAllAssessments(ctx, "P001", []string{"phq"}, DateFilter{Start: "2024-02-01"}, 0))
	if ov.TotalAssessments != 1 {
		t.Errorf("total = %d, want 1", ov.TotalAssessments)
	}
	if ov.FiltersApplied.DateRange == nil || ov.FiltersApplied.DateRange.Start != "2024-02-01" {
		t.Errorf("filters = %+v", ov.FiltersApplied)
	}

	wantStatus(t, svc.GetAllAssessments(ctx, "P001", nil, DateFilter{Start: "2024-03-01", End: "2024-01-01"}, 0), StatusInvalid)
	wantStatus(t, svc.GetAllAssessments(ctx, "P001", nil, DateFilter{Start: "yesterday"}, 0), StatusInvalid)
	wantStatus(t, svc.GetAllAssessments(ctx, "P001", []string{"bogus"}, DateFilter{}, 0), StatusInvalid)
}

func TestGetProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rep := payload[model.ProgressReport](t, svc.GetProgress(ctx, "P001", "phq"))
	p := rep.Assessments["phq"]
	if p.Trends == nil {
		t.Fatalf("no trend: %+v", p)
	}
	if p.Trends.FirstScore != 15 || p.Trends.LatestScore != 5 || p.Trends.Label != scoring.TrendImproving {
		t.Errorf("trend = %+v", p.Trends)
	}
	if p.Trends.PercentChange != -66.7 {
		t.Errorf("percent = %v, want -66.7", p.Trends.PercentChange)
	}
	if p.DateRange.DaysBetween != 51 {
		t.Errorf("days = %d, want 51", p.DateRange.DaysBetween)
	}

	rep = payload[model.ProgressReport](t, svc.GetProgress(ctx, "P001", "all"))
	if len(rep.Assessments) != 4 || rep.Assessments["ptsd"].Message == "" {
		t.Errorf("all = %+v", rep.Assessments)
	}

	wantStatus(t, svc.GetProgress(ctx, "P001", "ders"), StatusInvalid)
	wantStatus(t, svc.GetProgress(ctx, "P999", "phq"), StatusNotFound)
}

func TestGetCompositeRisk_PartialDomains(t *testing.T) {
	svc, _ := newTestService(t)
	cr := payload[model.CompositeRisk](t, svc.GetCompositeRisk(context.Background(), "P002"))

	if cr.DomainsAssessed != 2 || cr.CompositeScore != 2.5 || cr.OverallRisk != scoring.RiskModerate {
		t.Fatalf("got assessed=%d composite=%v overall=%s", cr.DomainsAssessed, cr.CompositeScore, cr.OverallRisk)
	}
	if cr.Domains[model.DomainDepression].RiskLevel != 2 || cr.Domains[model.DomainSubstanceUse].RiskLevel != 3 {
		t.Errorf("domains = %+v", cr.Domains)
	}
	want := "Substance abuse treatment program recommended"
	if cr.Recommendations[len(cr.Recommendations)-1] != want {
		t.Errorf("recommendations = %v", cr.Recommendations)
	}
}

func TestGetCompositeRisk_FailedDomain(t *testing.T) {
	svc, m := newTestService(t)
	m.FailTable("PTSD", errors.New("boom"))

	cr := payload[model.CompositeRisk](t, svc.GetCompositeRisk(context.Background(), "P002"))
	if cr.DomainsAssessed != 2 {
		t.Errorf("assessed = %d, want 2", cr.DomainsAssessed)
	}
	if !strings.Contains(cr.DomainErrors[model.DomainPTSD], "boom") {
		t.Errorf("domain errors = %v", cr.DomainErrors)
	}
}

func TestGetCompositeRisk_NoData(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	r := svc.GetCompositeRisk(ctx, "P999")
	wantStatus(t, r, StatusNotFound)
	if r.Message != scoring.ErrNoRiskData {
		t.Errorf("message = %q", r.Message)
	}

	for _, tbl := range []string{"PTSD", "PHQ", "GAD", "WHO", model.SubstanceTable} {
		m.FailTable(tbl, errors.New("down"))
	}
	wantStatus(t, svc.GetCompositeRisk(ctx, "P002"), StatusUpstream)
}

func TestCompareToPopulation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cmp := payload[model.PopulationComparison](t, svc.CompareToPopulation(ctx, "P001", "phq"))
	if cmp.PatientScore != 5 || cmp.PopulationSize != 5 {
		t.Fatalf("got %+v", cmp)
	}
	// totals: 15, 5, 7, 20, 0
	if cmp.PopulationMedian != 7 {
		t.Errorf("median = %v, want 7", cmp.PopulationMedian)
	}
	if cmp.Percentile != 40 {
		t.Errorf("percentile = %v, want 40", cmp.Percentile)
	}

	wantStatus(t, svc.CompareToPopulation(ctx, "P004", "phq"), StatusNotFound)
	wantStatus(t, svc.CompareToPopulation(ctx, "P001", "ders"), StatusInvalid)
}

func TestFlagCohort(t *testing.T) {
	svc, _ := newTestService(t)
	out := payload[CohortFlags](t, svc.FlagCohort(context.Background()))

	if out.FlaggedPatientCount != 2 {
		t.Fatalf("flagged = %+v", out.Patients)
	}
	if out.Patients[0].PatientID != "P003" || out.Patients[0].RiskLevel != 2 {
		t.Errorf("first = %+v", out.Patients[0])
	}
	if out.Patients[1].PatientID != "P004" || out.Patients[1].ConcerningAssessments[0].TotalScore != 55 {
		t.Errorf("second = %+v", out.Patients[1])
	}
	if out.Timestamp != "2024-04-01T00:00:00Z" {
		t.Errorf("timestamp = %s", out.Timestamp)
	}
}

func TestFlagCohort_NonNumericItemsStayFinite(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()
	r := phq("P009", "2024-03-15", 0, 1, 1, 1, 0, 0, 0, 0, 0)
	r["col_1_item"] = "nan"
	r["col_5_item"] = "Infinity"
	m.Insert("PHQ", r)

	flags := payload[CohortFlags](t, svc.FlagCohort(ctx))
	for _, p := range flags.Patients {
		if p.PatientID == "P009" {
			t.Errorf("P009 flagged: %+v", p)
		}
	}
	h := payload[*model.ScoreHistory](t, svc.GetScores(ctx, "P009", "PHQ", 0))
	if *h.LatestScore != 3 {
		t.Errorf("latest = %v, want 3", *h.LatestScore)
	}
	stats := svc.SummaryStats(ctx, "phq", true)
	for name, v := range map[string]any{"flags": flags, "scores": h, "summary": stats} {
		if _, err := json.Marshal(v); err != nil {
			t.Errorf("marshal %s: %v", name, err)
		}
	}
}

func TestListPatients(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	list := payload[PatientList](t, svc.ListPatients(ctx, pagination.Default(), "phq", true))
	if len(list.Patients) != 3 {
		t.Fatalf("patients = %+v", list.Patients)
	}
	if list.Patients[0].PatientID != "P001" || !list.Patients[0].LatestAssessment.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first = %+v", list.Patients[0])
	}
	if list.Pagination.HasMore || list.Pagination.TotalCount == nil || *list.Pagination.TotalCount != 3 {
		t.Errorf("pagination = %+v", list.Pagination)
	}

	calls := m.Calls()
	payload[PatientList](t, svc.ListPatients(ctx, pagination.Default(), "phq", true))
	if m.Calls() != calls {
		t.Error("second identical listing should be served from cache")
	}

	all := payload[PatientList](t, svc.ListPatients(ctx, pagination.Params{Page: 1, PageSize: 10}, "phq", false))
	if len(all.Patients) != 4 {
		t.Errorf("inactive included = %d, want 4", len(all.Patients))
	}

	wantStatus(t, svc.ListPatients(ctx, pagination.Params{Page: 0, PageSize: 10}, "", true), StatusInvalid)
	wantStatus(t, svc.ListPatients(ctx, pagination.Params{Page: 1, PageSize: 501}, "", true), StatusInvalid)
	wantStatus(t, svc.ListPatients(ctx, pagination.Default(), "bdi", true), StatusInvalid)
}

func TestSearchByScoreRange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	lo := 7.0

	out := payload[ScoreSearch](t, svc.SearchByScoreRange(ctx, "phq", &lo, nil, pagination.Default()))
	var got []float64
	for _, p := range out.Patients {
		got = append(got, p.TotalScore)
	}
	if fmt.Sprint(got) != "[20 15 7]" {
		t.Errorf("totals = %v", got)
	}
	if *out.Pagination.TotalCount != 3 {
		t.Errorf("pagination = %+v", out.Pagination)
	}

	hi := 1.0
	wantStatus(t, svc.SearchByScoreRange(ctx, "phq", &lo, &hi, pagination.Default()), StatusInvalid)
}

func TestSummaryStats_ForceRefresh(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	st := payload[SummaryStats](t, svc.SummaryStats(ctx, "phq", false))
	if st.TotalAssessments != 5 || st.UniquePatients != 4 || st.ScoreStatistics == nil {
		t.Fatalf("got %+v", st)
	}
	if st.ScoreStatistics.Median != 7 || st.ScoreStatistics.Max != 20 {
		t.Errorf("stats = %+v", st.ScoreStatistics)
	}

	calls := m.Calls()
	payload[SummaryStats](t, svc.SummaryStats(ctx, "phq", false))
	if m.Calls() != calls {
		t.Error("expected cache hit")
	}
	payload[SummaryStats](t, svc.SummaryStats(ctx, "phq", true))
	if m.Calls() != calls+1 {
		t.Error("force refresh should reload")
	}
}

func TestLatestScores(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ls := payload[LatestScores](t, svc.LatestScores(ctx, "phq"))
	if ls.TotalPatients != 4 {
		t.Fatalf("patients = %d, want 4", ls.TotalPatients)
	}
	for _, sa := range ls.LatestScores {
		if sa.PatientID == "P001" && sa.TotalScore != 5 {
			t.Errorf("P001 latest = %v, want 5", sa.TotalScore)
		}
	}

	ders := payload[LatestScores](t, svc.LatestScores(ctx, "ders"))
	if ders.TotalPatients != 1 || ders.LatestScores[0].DERSVersion != DERSVersion2 {
		t.Errorf("ders = %+v", ders.LatestScores)
	}
}

func TestPopulationStatistics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ps := payload[PopulationStatistics](t, svc.PopulationStatistics(ctx, "phq"))
	if ps.TotalRecords != 5 || ps.TotalScore.Count != 5 {
		t.Fatalf("got %+v", ps)
	}
	if _, ok := ps.Statistics["col_10_item"]; ok {
		t.Error("difficulty column should not be described")
	}
	if ps.Statistics["col_1_item"].Count != 5 {
		t.Errorf("col_1 = %+v", ps.Statistics["col_1_item"])
	}
	wantStatus(t, svc.PopulationStatistics(ctx, "who"), StatusNotFound)
}

func TestPatientProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := payload[Profile](t, svc.PatientProfile(ctx, "P002"))
	if p.Summary.TotalAssessments != 1 || !p.Summary.HasSubstanceData || p.Summary.ActiveSubstanceCount != 1 {
		t.Errorf("summary = %+v", p.Summary)
	}
	if p.Assessments["phq"].Latest == nil || p.Assessments["phq"].Latest.TotalScore != 7 {
		t.Errorf("phq = %+v", p.Assessments["phq"])
	}

	p = payload[Profile](t, svc.PatientProfile(ctx, "P001"))
	if p.DERS.DERS1Count != 1 || p.DERS.DERS2Count != 1 || p.Summary.TotalAssessments != 4 {
		t.Errorf("P001 = %+v", p.Summary)
	}

	wantStatus(t, svc.PatientProfile(ctx, "P999"), StatusNotFound)
}

func TestTrends(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rep := payload[TrendReport](t, svc.Trends(ctx, "P001", "90d"))
	kt, ok := rep.AssessmentTrends["phq"]
	if !ok || kt.AssessmentCount != 2 {
		t.Fatalf("trends = %+v", rep.AssessmentTrends)
	}
	if kt.Total.Label != scoring.TrendImproving {
		t.Errorf("total trend = %+v", kt.Total)
	}
	if c := kt.Trends["col_3_item"]; c.FirstValue != 3 || c.LastValue != 1 || c.TrendDirection != DirectionImproving {
		t.Errorf("col_3 = %+v", c)
	}

	rep = payload[TrendReport](t, svc.Trends(ctx, "P001", "30d"))
	if len(rep.AssessmentTrends) != 0 {
		t.Errorf("30d = %+v", rep.AssessmentTrends)
	}

	wantStatus(t, svc.Trends(ctx, "P001", "2w"), StatusInvalid)
}

func TestSubstanceHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	h := payload[SubstanceHistory](t, svc.SubstanceHistory(ctx, "P002"))
	if h.ActiveSubstanceCount != 1 || h.InactiveSubstanceCount != 1 {
		t.Errorf("counts = %d/%d", h.ActiveSubstanceCount, h.InactiveSubstanceCount)
	}
	if fmt.Sprint(h.UsagePatterns["Weekly"]) != "[Heroin]" {
		t.Errorf("patterns = %v", h.UsagePatterns)
	}
	if len(h.RiskAssessment.HighRiskSubstances) != 1 || len(h.RiskAssessment.DailyUseSubstances) != 0 {
		t.Errorf("risk = %+v", h.RiskAssessment)
	}
	wantStatus(t, svc.SubstanceHistory(ctx, "P001"), StatusNotFound)

	sc := payload[SubstanceScreening](t, svc.HighRiskSubstanceUsers(ctx))
	if sc.HighRiskPatientCount != 1 || sc.Patients[0].RiskScore != 3 {
		t.Errorf("screening = %+v", sc.Patients)
	}
}

func seedSubstanceCohort(m *store.Memory) {
	m.Insert(model.SubstanceTable,
		model.Record{"group_identifier": "P003", "substance": "Alcohol", "use_flag": 1, "pattern_of_use": "Daily"},
		model.Record{"group_identifier": "P003", "substance": "Cannabis", "use_flag": 1, "pattern_of_use": "Weekly"},
		model.Record{"group_identifier": "P003", "substance": "Nicotine", "use_flag": 1, "pattern_of_use": "Weekly"},
		model.Record{"group_identifier": "P001", "substance": "Alcohol", "use_flag": 1, "pattern_of_use": "Monthly"},
	)
}

func TestSubstancePatterns(t *testing.T) {
	svc, m := newTestService(t)
	seedSubstanceCohort(m)

	p := payload[SubstancePatterns](t, svc.SubstancePatterns(context.Background()))
	pop := p.PopulationAnalysis
	if pop.TotalPatients != 3 || pop.TotalSubstanceRecords != 6 || pop.PatientsWithActiveUse != 3 || pop.HighRiskPatients != 1 {
		t.Errorf("population = %+v", pop)
	}
	if len(p.MostCommonSubstances) != 4 || p.MostCommonSubstances[0] != (NameCount{"Alcohol", 2}) || p.MostCommonSubstances[1].Name != "Cannabis" {
		t.Errorf("substances = %+v", p.MostCommonSubstances)
	}
	if len(p.UsagePatterns) != 3 || p.UsagePatterns[0] != (NameCount{"Weekly", 3}) {
		t.Errorf("patterns = %+v", p.UsagePatterns)
	}
	ind := p.RiskIndicators
	if ind.PatientsWithMultipleSubstances != 1 || ind.PatientsWithDailyUse != 1 || ind.AverageSubstancesPerPatient != 1.67 {
		t.Errorf("indicators = %+v", ind)
	}
}

func TestSubstancePatterns_Empty(t *testing.T) {
	m := store.NewMemory()
	m.Insert(model.SubstanceTable)
	svc := New(m, cache.New(10, time.Minute), scoring.NewScorer(nil), zerolog.Nop(), Options{})
	wantStatus(t, svc.SubstancePatterns(context.Background()), StatusNotFound)

	m.FailTable(model.SubstanceTable, errors.New("boom"))
	wantStatus(t, svc.SubstancePatterns(context.Background()), StatusUpstream)
}

func TestCompareSubstanceByScores(t *testing.T) {
	svc, m := newTestService(t)
	seedSubstanceCohort(m)
	ctx := context.Background()

	c := payload[SubstanceScoreComparison](t, svc.CompareSubstanceByScores(ctx, "phq"))
	if c.AssessmentType != "PHQ" || c.PatientCount != 3 || c.HighUsePatients != 1 || c.LowUsePatients != 2 {
		t.Fatalf("got %+v", c)
	}
	total := c.HighVsLowSubstanceUse["total_score"]
	if total != (GroupComparison{HighSubstanceUseAvg: 20, LowSubstanceUseAvg: 6, Difference: 14}) {
		t.Errorf("total_score = %+v", total)
	}
	if got := c.HighVsLowSubstanceUse["col_1_item"]; got.HighSubstanceUseAvg != 3 || got.LowSubstanceUseAvg != 1 {
		t.Errorf("col_1_item = %+v", got)
	}
	if got := c.HighVsLowSubstanceUse["active_substance_count"]; got.Difference != 2 {
		t.Errorf("active_substance_count = %+v", got)
	}
	if _, ok := c.HighVsLowSubstanceUse["group_identifier"]; ok {
		t.Error("identifier column compared")
	}

	// PTSD only has P004, who has no substance rows.
	wantStatus(t, svc.CompareSubstanceByScores(ctx, "ptsd"), StatusNotFound)
	wantStatus(t, svc.CompareSubstanceByScores(ctx, "ders"), StatusInvalid)

	m.FailTable("GAD", errors.New("timeout"))
	wantStatus(t, svc.CompareSubstanceByScores(ctx, "gad"), StatusUpstream)
}

func TestSubstanceTimeline(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tl := payload[SubstanceTimeline](t, svc.SubstanceTimeline(ctx, "p002"))
	if tl.PatientID != "P002" || tl.CurrentStatus.ActiveSubstanceCount != 1 || len(tl.Recommendations) != 3 {
		t.Errorf("got %+v", tl)
	}
	if !strings.Contains(tl.Note, "snapshot") {
		t.Errorf("note = %q", tl.Note)
	}
	wantStatus(t, svc.SubstanceTimeline(ctx, "P001"), StatusNotFound)
	wantStatus(t, svc.SubstanceTimeline(ctx, "x"), StatusInvalid)
}

func TestHealth(t *testing.T) {
	svc, m := newTestService(t)
	m.FailTable("WHO", errors.New("permission denied"))

	rep := payload[HealthReport](t, svc.Health(context.Background(), HealthOptions{IncludeDependencies: true, IncludePerformance: true}))
	if rep.Checks["database"].Status != HealthHealthy {
		t.Errorf("database = %+v", rep.Checks["database"])
	}
	if rep.Tables["who"].Status != HealthError || rep.Tables["phq"].Status != "accessible" {
		t.Errorf("tables = %+v", rep.Tables)
	}
	if rep.Status != HealthDegraded && rep.Status != HealthUnhealthy {
		t.Errorf("status = %s", rep.Status)
	}
	if rep.Version != "test" || rep.PerformanceMetrics == nil {
		t.Errorf("report = %+v", rep)
	}
}

func TestCacheStatus(t *testing.T) {
	svc, _ := newTestService(t)
	payload[SummaryStats](t, svc.SummaryStats(context.Background(), "phq", false))

	st := payload[CacheStatus](t, svc.CacheStatus())
	if st.Size != 1 || st.Status != "operational" || st.MaxSize != 100 {
		t.Errorf("got %+v", st)
	}
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{OK(map[string]int{"a": 1}), `{"a":1}`},
		{NotFound("No %s data", "phq"), `{"status":"not_found","message":"No phq data"}`},
		{Invalid("bad page", "page must be >= 1"), `{"status":"invalid_argument","error":"bad page","details":"page must be >= 1"}`},
		{Upstream("retrieve scores", errors.New("eof")), `{"status":"upstream_error","error":"Failed to retrieve scores: eof"}`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.r)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.want {
			t.Errorf("got %s, want %s", b, tt.want)
		}
	}
}
