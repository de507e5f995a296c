package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestFloat_NeverFailsAndDefaults(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, -1},
		{"empty", "", -1},
		{"garbage", "abc", -1},
		{"numeric string", "3.5", 3.5},
		{"padded string", "  2 ", 2},
		{"int", 2, 2},
		{"int32", int32(7), 7},
		{"float32", float32(1.5), 1.5},
		{"json number", json.Number("4"), 4},
		{"bool", true, 1},
		{"struct", struct{}{}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Float(tc.in, -1); got != tc.want {
				t.Errorf("Float(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFloat_DefaultZero(t *testing.T) {
	if got := Float(nil, 0); got != 0 {
		t.Errorf("Float(nil, 0) = %v", got)
	}
}

func TestFloat_NonFiniteFallsBackToDefault(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name string
		in   any
	}{
		{"string nan", "nan"},
		{"string NaN", "NaN"},
		{"string Inf", "Inf"},
		{"string -Infinity", "-Infinity"},
		{"float64 NaN", nan},
		{"float64 +Inf", math.Inf(1)},
		{"float32 NaN", float32(nan)},
		{"pointer NaN", &nan},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Float(tc.in, 7); got != 7 {
				t.Errorf("Float(%v, 7) = %v, want 7", tc.in, got)
			}
			if got := Int(tc.in, 3); got != 3 {
				t.Errorf("Int(%v, 3) = %d, want 3", tc.in, got)
			}
		})
	}
}

func TestInt_GoesThroughFloat(t *testing.T) {
	if got := Int("1.0", 0); got != 1 {
		t.Errorf(`Int("1.0") = %d, want 1`, got)
	}
	if got := Int("2.9", 0); got != 2 {
		t.Errorf(`Int("2.9") = %d, want 2 (truncation)`, got)
	}
	if got := Int(nil, 9); got != 9 {
		t.Errorf("Int(nil) = %d, want default 9", got)
	}
	if got := Int("nan", 5); got != 5 {
		t.Errorf(`Int("nan") = %d, want default 5`, got)
	}
	if got := Int(math.Inf(1), 5); got != 5 {
		t.Errorf("Int(+Inf) = %d, want default 5", got)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{"2024-03-05", "2024-03-05T00:00:00", "2024-03-05T00:00:00+00:00", want} {
		got := ParseDate(in)
		if got == nil {
			t.Fatalf("ParseDate(%v) = nil", in)
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%v) = %v, want %v", in, got, want)
		}
	}
	if ParseDate("") != nil || ParseDate("not a date") != nil || ParseDate(42) != nil {
		t.Error("expected nil for unparseable input")
	}
}

func TestName(t *testing.T) {
	if got := Name("  Daily  Use "); got != "daily use" {
		t.Errorf("Name = %q", got)
	}
	if got := PatientID(" ab12 "); got != "AB12" {
		t.Errorf("PatientID = %q", got)
	}
}

func TestArgsHash_StableAcrossMapOrder(t *testing.T) {
	a := ArgsHash("stats", map[string]string{"kind": "phq", "demo": "false"})
	b := ArgsHash("stats", map[string]string{"demo": "false", "kind": "phq"})
	if a != b {
		t.Fatal("hash depends on map order")
	}
	if a == ArgsHash("stats", map[string]string{"kind": "gad", "demo": "false"}) {
		t.Error("different args produced the same hash")
	}
	if a == ArgsHash("other", map[string]string{"kind": "phq", "demo": "false"}) {
		t.Error("different names produced the same hash")
	}
}
