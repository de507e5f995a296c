package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

func gadRow(id, date string, vals ...int) model.Record {
	r := model.Record{"group_identifier": id, "assessment_date": date}
	for i, v := range vals {
		r[fmt.Sprintf("col_%d_item", i+1)] = v
	}
	return r
}

func testStore() *store.Memory {
	m := store.NewMemory()
	m.Insert("GAD",
		gadRow("P002", "2024-02-01", 1, 1, 1, 1, 1, 1, 1),
		gadRow("P001", "2024-01-10", 3, 3, 3, 3, 2, 1, 1),
		gadRow("P001", "2024-03-10", 0, 0, 1, 0, 0, 0, 0),
	)
	return m
}

func TestRunParquet(t *testing.T) {
	out := filepath.Join(t.TempDir(), "gad.parquet")
	sum, err := Run(context.Background(), testStore(), scoring.NewScorer(nil), zerolog.Nop(), Options{
		Kind:       model.KindGAD,
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Format != FormatParquet {
		t.Errorf("Format = %q, want parquet", sum.Format)
	}
	if sum.RowsFetched != 3 || sum.RowsWritten != 3 {
		t.Errorf("rows fetched/written = %d/%d, want 3/3", sum.RowsFetched, sum.RowsWritten)
	}

	r, err := OpenParquet(out)
	if err != nil {
		t.Fatalf("OpenParquet: %v", err)
	}
	defer r.Close()
	if r.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", r.NumRows())
	}
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	// Ordered by patient then date.
	want := []struct {
		patient  string
		total    float64
		severity string
	}{
		{"P001", 16, "severe"},
		{"P001", 1, "minimal"},
		{"P002", 7, "mild"},
	}
	for i, w := range want {
		got := rows[i]
		if got.PatientID != w.patient || got.TotalScore != w.total || got.Severity != w.severity {
			t.Errorf("row %d = {%s %v %s}, want {%s %v %s}",
				i, got.PatientID, got.TotalScore, got.Severity, w.patient, w.total, w.severity)
		}
		if got.Kind != "gad" {
			t.Errorf("row %d kind = %q, want gad", i, got.Kind)
		}
		if got.AssessmentDate == nil {
			t.Errorf("row %d has no assessment date", i)
		}
	}
}

func TestRunXLSXOnePatient(t *testing.T) {
	out := filepath.Join(t.TempDir(), "gad.xlsx")
	sum, err := Run(context.Background(), testStore(), scoring.NewScorer(nil), zerolog.Nop(), Options{
		Kind:       model.KindGAD,
		PatientID:  "P001",
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RowsWritten != 2 {
		t.Errorf("RowsWritten = %d, want 2", sum.RowsWritten)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "gad" {
		t.Errorf("sheets = %v, want [gad]", sheets)
	}
	rows, err := f.GetRows("gad")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d sheet rows, want header + 2", len(rows))
	}
	if rows[0][0] != "patient_id" || rows[0][3] != "total_score" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "P001" || rows[1][3] != "16" {
		t.Errorf("first data row = %v", rows[1])
	}
}

func TestRunPhaseErrors(t *testing.T) {
	dir := t.TempDir()

	failing := testStore()
	failing.FailTable("GAD", errors.New("connection refused"))

	noCols := store.NewMemory()
	noCols.Insert("GAD", model.Record{"group_identifier": "P001", "notes": "x"})

	tests := []struct {
		name  string
		st    store.Store
		opts  Options
		phase string
	}{
		{"bad extension", testStore(), Options{Kind: model.KindGAD, OutputPath: filepath.Join(dir, "gad.csv")}, PhaseValidate},
		{"unknown kind", testStore(), Options{Kind: "bdi", OutputPath: filepath.Join(dir, "x.parquet")}, PhaseValidate},
		{"store failure", failing, Options{Kind: model.KindGAD, OutputPath: filepath.Join(dir, "a.parquet")}, PhaseFetch},
		{"no scoring columns", noCols, Options{Kind: model.KindGAD, OutputPath: filepath.Join(dir, "b.parquet")}, PhaseScore},
		{"unwritable path", testStore(), Options{Kind: model.KindGAD, OutputPath: filepath.Join(dir, "missing", "c.parquet")}, PhaseWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.st, scoring.NewScorer(nil), zerolog.Nop(), tt.opts)
			var pe *PhaseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *PhaseError", err)
			}
			if pe.Phase != tt.phase {
				t.Errorf("phase = %q, want %q (%v)", pe.Phase, tt.phase, err)
			}
		})
	}
}

func TestFormatFor(t *testing.T) {
	for path, want := range map[string]string{
		"out.parquet": FormatParquet,
		"OUT.XLSX":    FormatXLSX,
	} {
		got, err := FormatFor(path)
		if err != nil || got != want {
			t.Errorf("FormatFor(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatFor("out.json"); err == nil {
		t.Error("FormatFor(out.json) succeeded, want error")
	}
}
