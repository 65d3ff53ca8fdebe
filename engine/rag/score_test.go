package rag

import (
	"math"
	"testing"

	"github.com/askdoc/askdoc/engine/semantic"
)

func TestNormalize_L2(t *testing.T) {
	cases := []struct {
		name string
		raw  float64
		want float64
	}{
		{"identical", 0, 1.0},
		{"opposite", 2, 0.0},
		{"orthogonal", 1, 0.5},
		{"quarter", 0.5, 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(semantic.MetricL2, tc.raw)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Normalize(l2, %v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalize_Cosine(t *testing.T) {
	cases := []struct {
		raw  float64
		want float64
	}{
		{1, 1.0},
		{-1, 0.0},
		{0, 0.5},
		{0.5, 0.75},
	}
	for _, tc := range cases {
		got := Normalize(semantic.MetricCosine, tc.raw)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Normalize(cosine, %v) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestNormalize_AlwaysInUnitInterval(t *testing.T) {
	metrics := []semantic.Metric{semantic.MetricL2, semantic.MetricCosine, semantic.Metric("unknown")}
	for _, m := range metrics {
		for raw := -1.0; raw <= 10.0; raw += 0.01 {
			got := Normalize(m, raw)
			if got < 0 || got > 1 {
				t.Fatalf("Normalize(%s, %v) = %v out of [0,1]", m, raw, got)
			}
		}
	}
}

// Lower distance must never yield lower similarity.
func TestNormalize_MonotoneOnDistanceRange(t *testing.T) {
	prev := math.Inf(1)
	for raw := 0.0; raw <= 2.0; raw += 0.01 {
		got := Normalize(semantic.MetricL2, raw)
		if got > prev {
			t.Fatalf("similarity increased with distance at raw=%v: %v > %v", raw, got, prev)
		}
		prev = got
	}
}

func TestNormalize_HeuristicFallback(t *testing.T) {
	m := semantic.Metric("")
	if got := Normalize(m, 1.5); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("heuristic on 1.5 = %v, want 0.25", got)
	}
	if got := Normalize(m, -0.5); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("heuristic on -0.5 = %v, want 0.25", got)
	}
	if got := Normalize(m, 7.3); got != 1.0 {
		t.Errorf("heuristic on 7.3 = %v, want clamp to 1", got)
	}
}

func TestPct(t *testing.T) {
	cases := []struct {
		sim  float64
		want float64
	}{
		{1, 100},
		{0, 0},
		{0.5, 50},
		{0.8765, 87.7},
		{0.87649, 87.6},
	}
	for _, tc := range cases {
		if got := Pct(tc.sim); got != tc.want {
			t.Errorf("Pct(%v) = %v, want %v", tc.sim, got, tc.want)
		}
	}
}

func scoredList(sims ...float64) []Scored {
	out := make([]Scored, len(sims))
	for i, s := range sims {
		out[i] = Scored{Similarity: s}
	}
	return out
}

func TestFilterByThreshold_NilKeepsEverything(t *testing.T) {
	in := scoredList(0.1, 0.9, 0.4)
	got := FilterByThreshold(in, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(got))
	}
}

func TestFilterByThreshold_PreservesOrder(t *testing.T) {
	in := scoredList(0.9, 0.2, 0.7, 0.5, 0.95)
	th := 0.5
	got := FilterByThreshold(in, &th)

	want := []float64{0.9, 0.7, 0.5, 0.95}
	if len(got) != len(want) {
		t.Fatalf("expected %d survivors, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Similarity != w {
			t.Errorf("survivor %d = %v, want %v", i, got[i].Similarity, w)
		}
	}
}

func TestFilterByThreshold_Idempotent(t *testing.T) {
	in := scoredList(0.9, 0.2, 0.7)
	th := 0.6
	once := FilterByThreshold(in, &th)
	twice := FilterByThreshold(once, &th)
	if len(once) != len(twice) {
		t.Fatalf("filter not idempotent: %d vs %d", len(once), len(twice))
	}
}

func TestFilterByThreshold_BoundaryIsInclusive(t *testing.T) {
	in := scoredList(0.5)
	th := 0.5
	if got := FilterByThreshold(in, &th); len(got) != 1 {
		t.Errorf("score equal to threshold must survive, got %d survivors", len(got))
	}
}
