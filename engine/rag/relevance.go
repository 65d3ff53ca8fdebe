package rag

import "context"

// RelevanceFilter is the extension point for a second, model-backed filter
// that would verify a surviving chunk actually answers the question, as
// opposed to merely resembling it in embedding space. Confidence lies in
// [0,1].
type RelevanceFilter interface {
	CheckRelevance(ctx context.Context, chunkText, question string) (relevant bool, confidence float64, err error)
}

// NullRelevanceFilter is the pass-through default: every chunk is relevant
// with confidence 1.0. A model-backed implementation would be selected by
// configuration, not wired in yet.
type NullRelevanceFilter struct{}

// CheckRelevance always passes.
func (NullRelevanceFilter) CheckRelevance(context.Context, string, string) (bool, float64, error) {
	return true, 1.0, nil
}
