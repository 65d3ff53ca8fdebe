package ingest

import (
	"fmt"

	"github.com/askdoc/askdoc/engine/domain"
	"github.com/askdoc/askdoc/engine/extract"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 800
	// DefaultOverlap is how many characters consecutive chunks share.
	DefaultOverlap = 200
)

// SplitOptions configures the chunker. Overlap must satisfy
// 0 <= Overlap < ChunkSize.
type SplitOptions struct {
	ChunkSize int
	Overlap   int
}

// DefaultSplitOptions matches the ingestion defaults.
var DefaultSplitOptions = SplitOptions{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}

func (o SplitOptions) validate() error {
	if o.ChunkSize <= 0 {
		return domain.E(domain.ErrInvalidArgument, "chunker", fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize))
	}
	if o.Overlap < 0 || o.Overlap >= o.ChunkSize {
		return domain.E(domain.ErrInvalidArgument, "chunker", fmt.Errorf("overlap %d outside [0,%d)", o.Overlap, o.ChunkSize))
	}
	return nil
}

// Split cuts text into segments of at most ChunkSize characters, preferring
// paragraph then sentence then word boundaries, with consecutive segments
// sharing Overlap characters. Deterministic: identical input and options
// always yield identical output. Empty input yields no segments.
func Split(text string, opts SplitOptions) ([]string, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var segments []string
	start := 0
	for start < len(runes) {
		end := start + opts.ChunkSize
		if end >= len(runes) {
			segments = append(segments, string(runes[start:]))
			break
		}
		cut := breakPoint(runes, start, end)
		segments = append(segments, string(runes[start:cut]))

		next := cut - opts.Overlap
		if next <= start {
			// Forward progress beats overlap when chunks are tiny.
			next = cut
		}
		start = next
	}
	return segments, nil
}

// breakPoint picks the cut position in (start, end]. Boundaries in the first
// half of the window are ignored so chunks stay near their target size.
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2

	// Paragraph break: cut after the blank line.
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// Sentence break: cut after terminal punctuation followed by whitespace.
	for i := end - 1; i > floor; i-- {
		if isSentenceEnd(runes[i-1]) && isSpace(runes[i]) {
			return i + 1
		}
	}
	// Word break.
	for i := end - 1; i > floor; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	// Hard cut.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// ChunkDocument splits every page of an extracted document, assigning global
// positions and per-chunk page provenance.
func ChunkDocument(doc extract.Document, opts SplitOptions) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	position := 0
	for _, page := range doc.Pages {
		segments, err := Split(page.Text, opts)
		if err != nil {
			return nil, err
		}
		for _, seg := range segments {
			chunk := domain.Chunk{
				Text:     seg,
				SourceID: doc.SourceName,
				Position: position,
			}
			if page.Number > 0 {
				n := page.Number
				chunk.Page = &n
			}
			chunks = append(chunks, chunk)
			position++
		}
	}
	return chunks, nil
}
