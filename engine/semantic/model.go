// Package semantic provides the per-session vector index. An Index owns the
// chunks of exactly one session: it embeds them on Add, answers k-NN searches,
// and is destroyed as a unit with its session.
package semantic

import (
	"context"

	"github.com/askdoc/askdoc/engine/domain"
)

// Embedder maps text to fixed-dimension vectors. Implemented by provider
// adapters (pkg/openai, pkg/ollama); failures surface through the index as
// domain.ErrEmbeddingProvider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Metric names the distance semantics of an index's raw scores. Downstream
// score normalization dispatches on it.
type Metric string

const (
	// MetricL2 is Euclidean distance over unit-normalized vectors: raw scores
	// lie in [0,2], 0 = identical.
	MetricL2 Metric = "l2"
	// MetricCosine is cosine similarity: raw scores lie in [-1,1], 1 = identical.
	MetricCosine Metric = "cosine"
)

// ScoredChunk pairs a chunk with the provider-assigned raw score from one
// search. Interpretation of RawScore depends on the index Metric.
type ScoredChunk struct {
	Chunk    domain.Chunk
	RawScore float64
}

// Index is the nearest-neighbour store for one session.
//
// Add embeds and appends chunks all-or-nothing: on any embedding failure the
// index keeps its prior state. Search returns the k best matches, best first;
// fewer than k entries means all of them. Destroy releases backing resources
// and is idempotent.
type Index interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, query string, k int) ([]ScoredChunk, error)
	Size() int
	Dimension() int
	Metric() Metric
	Destroy(ctx context.Context) error
}
