//go:build integration

package engine_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/rs/zerolog"

	"github.com/gyeh/clinscore/internal/cache"
	"github.com/gyeh/clinscore/internal/db"
	"github.com/gyeh/clinscore/internal/engine"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

const (
	testPort     = 15433
	testDB       = "clinscoretest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)
	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

var phqColumns = []string{
	"col_1_little_interest", "col_2_feeling_down", "col_3_sleep_trouble",
	"col_4_tired", "col_5_appetite", "col_6_feeling_bad",
	"col_7_concentration", "col_8_moving_slowly", "col_9_self_harm_thoughts",
	"col_10_difficulty",
}

func phqRecord(id string, date time.Time, vals ...int16) model.Record {
	r := model.Record{"group_identifier": id, "assessment_date": date}
	for i, v := range vals {
		r[phqColumns[i]] = v
	}
	return r
}

// setupService migrates a clean database, loads rows and returns an engine
// reading through the Postgres store.
func setupService(t *testing.T) *engine.Service {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	pool, err := db.NewPool(ctx, testDSN, db.PoolOptions{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, table := range []string{"PTSD", "PHQ", "GAD", "WHO", "DERS", "DERS_2", model.SubstanceTable} {
		if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, table)); err != nil {
			t.Fatalf("drop %s: %v", table, err)
		}
	}
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	day := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}
	phq := []model.Record{
		// The index-10 difficulty rating must not count toward the total.
		phqRecord("P001", day("2024-01-10"), 2, 2, 3, 2, 1, 2, 2, 1, 0, 3),
		phqRecord("P001", day("2024-03-01"), 1, 1, 1, 1, 1, 0, 0, 0, 0, 1),
		phqRecord("P002", day("2024-02-15"), 3, 3, 3, 3, 3, 3, 3, 3, 3, 3),
	}
	if _, err := db.CopyRecords(ctx, pool, "PHQ", phq, nil); err != nil {
		t.Fatalf("copy PHQ: %v", err)
	}
	substance := []model.Record{
		{"group_identifier": "P002", "substance": "Heroin", "use_flag": int16(1), "pattern_of_use": "Daily"},
	}
	if _, err := db.CopyRecords(ctx, pool, model.SubstanceTable, substance, nil); err != nil {
		t.Fatalf("copy substance history: %v", err)
	}

	return engine.New(store.NewPostgres(pool), cache.New(100, time.Minute), scoring.NewScorer(nil), log, engine.Options{Version: "it"})
}

func TestPostgresScores(t *testing.T) {
	svc := setupService(t)
	r := svc.GetScores(context.Background(), "p001", "phq", 0)
	if r.Status != engine.StatusOK {
		t.Fatalf("status = %s: %s", r.Status, r.Message)
	}
	h := r.Payload.(*model.ScoreHistory)
	if h.AssessmentCount != 2 {
		t.Fatalf("assessment_count = %d, want 2", h.AssessmentCount)
	}
	if got := h.Assessments[0].TotalScore; got != 5 {
		t.Errorf("newest total = %v, want 5", got)
	}
	if got := h.Assessments[1].TotalScore; got != 15 {
		t.Errorf("oldest total = %v, want 15 (index 10 excluded)", got)
	}
}

func TestPostgresCompositeRisk(t *testing.T) {
	svc := setupService(t)
	r := svc.GetCompositeRisk(context.Background(), "P002")
	if r.Status != engine.StatusOK {
		t.Fatalf("status = %s: %s", r.Status, r.Message)
	}
	risk := r.Payload.(model.CompositeRisk)
	if risk.DomainsAssessed != 2 {
		t.Errorf("domains_assessed = %d, want 2 (depression, substance)", risk.DomainsAssessed)
	}
	if len(risk.DomainErrors) != 0 {
		t.Errorf("domain_errors = %v, want none", risk.DomainErrors)
	}
}

func TestPostgresHealth(t *testing.T) {
	svc := setupService(t)
	r := svc.Health(context.Background(), engine.HealthOptions{IncludeDependencies: true, Timeout: 5 * time.Second})
	rep := r.Payload.(engine.HealthReport)
	if rep.Checks["database"].Status != engine.HealthHealthy {
		t.Errorf("database check = %+v", rep.Checks["database"])
	}
}
