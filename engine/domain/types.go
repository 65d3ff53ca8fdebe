// Package domain defines the core types, constants, and validation for the
// askdoc engine. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// SourceKind identifies where a document came from.
type SourceKind string

const (
	SourcePDF SourceKind = "pdf"
	SourceURL SourceKind = "url"
)

// Chunk is a bounded contiguous span of source text, the atomic unit of
// indexing and citation. Immutable once created; owned by exactly one index.
type Chunk struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
	// Page is the 1-based page number for paginated sources, nil otherwise.
	Page *int `json:"page,omitempty"`
}

// IngestStats records what ingestion produced for a session.
type IngestStats struct {
	ChunkCount         int     `json:"chunk_count"`
	TotalChars         int     `json:"total_characters"`
	AvgChunkSize       float64 `json:"avg_chunk_size"`
	ChunkSize          int     `json:"chunk_size"`
	ChunkOverlap       int     `json:"chunk_overlap"`
	EmbeddingDimension int     `json:"embedding_dimension"`
	DistanceMetric     string  `json:"distance_metric"`
}

// SessionInfo is the introspection view of a registered session.
type SessionInfo struct {
	SessionID  string      `json:"session_id"`
	SourceName string      `json:"source"`
	SourceKind SourceKind  `json:"source_type"`
	CreatedAt  time.Time   `json:"created_at"`
	Stats      IngestStats `json:"stats"`
}
