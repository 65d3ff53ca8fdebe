package ingest

import "github.com/askdoc/askdoc/engine/domain"

// Source is a raw document handed to the ingestion pipeline.
type Source struct {
	Kind domain.SourceKind
	// Name is the display name: the uploaded filename for PDFs, the URL for
	// web pages.
	Name string
	// Data holds the raw bytes for PDF sources.
	Data []byte
	// URL is set for URL sources.
	URL string
}

// Result is what a successful ingestion produces. Summary is non-empty for
// URL sources only.
type Result struct {
	SessionID string             `json:"session_id"`
	Source    string             `json:"source"`
	Kind      domain.SourceKind  `json:"source_type"`
	Summary   string             `json:"summary,omitempty"`
	Stats     domain.IngestStats `json:"stats"`
}
