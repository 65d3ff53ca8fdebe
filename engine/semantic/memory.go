package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/askdoc/askdoc/engine/domain"
)

// MemoryIndex is a brute-force in-process index over L2 distance. Vectors are
// unit-normalized at insert time so raw distances lie in [0,2].
type MemoryIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []memoryEntry
	dim     int
}

type memoryEntry struct {
	chunk  domain.Chunk
	vector []float32
}

// NewMemoryIndex creates an empty in-memory index backed by the embedder.
func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder}
}

// Add embeds all chunks, then appends them. If any embedding fails nothing
// is appended.
func (m *MemoryIndex) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.E(domain.ErrEmbeddingProvider, "semantic: embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return domain.E(domain.ErrEmbeddingProvider, "semantic: embed chunks",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	staged := make([]memoryEntry, len(chunks))
	for i := range chunks {
		staged[i] = memoryEntry{chunk: chunks[i], vector: unitNorm(vectors[i])}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 && len(staged) > 0 {
		m.dim = len(staged[0].vector)
	}
	m.entries = append(m.entries, staged...)
	return nil
}

// Search embeds the query and returns the k nearest entries ordered by
// ascending L2 distance.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if err := domain.ValidateK(k); err != nil {
		return nil, err
	}

	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.E(domain.ErrEmbeddingProvider, "semantic: embed query", err)
	}
	qv := unitNorm(vector)

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ScoredChunk, len(m.entries))
	for i, e := range m.entries {
		results[i] = ScoredChunk{Chunk: e.chunk, RawScore: l2Distance(qv, e.vector)}
	}

	// Stable: ties keep insertion order, so repeated searches are deterministic.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RawScore < results[j].RawScore
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Size returns the number of indexed chunks.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Dimension returns the embedding dimension, 0 before the first Add.
func (m *MemoryIndex) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// Metric reports L2 distance semantics.
func (m *MemoryIndex) Metric() Metric { return MetricL2 }

// Destroy drops all entries. Idempotent.
func (m *MemoryIndex) Destroy(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.dim = 0
	return nil
}

// unitNorm returns v scaled to unit length. Zero vectors pass through.
func unitNorm(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// l2Distance computes Euclidean distance over the shorter common length.
func l2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
