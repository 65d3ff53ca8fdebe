package rag

import (
	"math"

	"github.com/askdoc/askdoc/engine/semantic"
)

// Scored pairs a retrieved chunk with its normalized similarity in [0,1].
type Scored struct {
	Chunk      semantic.ScoredChunk
	Similarity float64
}

// Normalize maps a raw provider score to a similarity in [0,1], 1 meaning
// identical. Indexes that declare their metric get the exact mapping for it;
// anything else falls back to the numeric-range heuristic. The result is a
// measure of embedding-space closeness, never of whether the chunk answers
// the question.
func Normalize(metric semantic.Metric, raw float64) float64 {
	var s float64
	switch metric {
	case semantic.MetricL2:
		if raw >= 0 && raw <= 2 {
			s = 1 - raw/2
		} else {
			s = normalizeHeuristic(raw)
		}
	case semantic.MetricCosine:
		if raw >= -1 && raw <= 1 {
			s = (raw + 1) / 2
		} else {
			s = normalizeHeuristic(raw)
		}
	default:
		s = normalizeHeuristic(raw)
	}
	return clamp01(s)
}

// normalizeHeuristic guesses the score semantics from its numeric range:
// [0,2] is treated as L2 distance over unit vectors, negatives as a cosine
// similarity in [-1,1], and anything above 2 as an already-normalized value
// to clamp.
func normalizeHeuristic(raw float64) float64 {
	switch {
	case raw >= 0 && raw <= 2:
		return 1 - raw/2
	case raw < 0:
		return (raw + 1) / 2
	default:
		return clamp01(raw)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Pct renders a similarity as a percentage rounded to one decimal.
func Pct(similarity float64) float64 {
	return math.Round(similarity*1000) / 10
}

// FilterByThreshold drops every entry whose similarity is below the
// threshold. Survivors keep their relative order; a nil threshold keeps
// everything. Idempotent for a fixed threshold.
func FilterByThreshold(scored []Scored, threshold *float64) []Scored {
	if threshold == nil {
		return scored
	}
	out := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if s.Similarity >= *threshold {
			out = append(out, s)
		}
	}
	return out
}
