// Package ingest turns a raw source into a registered session: extraction,
// chunking, embedding, index population, and finally registration. Any step
// failure aborts the whole ingestion and leaves no session behind.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdoc/askdoc/engine/domain"
	"github.com/askdoc/askdoc/engine/extract"
	"github.com/askdoc/askdoc/engine/semantic"
	"github.com/askdoc/askdoc/engine/session"
	"github.com/askdoc/askdoc/pkg/fn"
)

// DefaultSummaryBudget bounds how many characters of extracted text feed the
// URL summary prompt.
const DefaultSummaryBudget = 8000

// PDFExtractor extracts per-page text from PDF bytes.
type PDFExtractor interface {
	Extract(ctx context.Context, name string, data []byte) (extract.Document, error)
}

// WebExtractor extracts plain text from a web page.
type WebExtractor interface {
	Extract(ctx context.Context, url string) (extract.Document, error)
}

// Summarizer produces the abstractive summary for URL sources. Implemented
// by the same LLM provider adapters as answer generation.
type Summarizer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IndexFactory creates the index store for a new session id.
type IndexFactory func(sessionID string) semantic.Index

// Options tunes the pipeline.
type Options struct {
	ChunkSize     int
	Overlap       int
	SummaryBudget int
}

// DefaultOptions returns the ingestion defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:     DefaultChunkSize,
		Overlap:       DefaultOverlap,
		SummaryBudget: DefaultSummaryBudget,
	}
}

// Pipeline orchestrates ingestion. It is safe for concurrent use; every
// Ingest call works on its own session.
type Pipeline struct {
	pdf        PDFExtractor
	web        WebExtractor
	newIndex   IndexFactory
	registry   *session.Registry
	summarizer Summarizer
	opts       Options
	logger     *slog.Logger
}

// New creates an ingestion pipeline.
func New(pdf PDFExtractor, web WebExtractor, newIndex IndexFactory, registry *session.Registry, summarizer Summarizer, opts Options, logger *slog.Logger) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.SummaryBudget <= 0 {
		opts.SummaryBudget = DefaultSummaryBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		pdf:        pdf,
		web:        web,
		newIndex:   newIndex,
		registry:   registry,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
	}
}

const summaryPromptTemplate = `Summarize the following web content in a clear and concise manner.
Focus on the main points, key information, and important details.
Include source citations in the format [Source: %s] at the end of each major point.

Content:
%s

Provide a comprehensive summary with source citations:`

type chunkedDoc struct {
	doc    extract.Document
	chunks []domain.Chunk
}

// Ingest runs the full pipeline for one source. On success the returned
// session is registered and queryable; on failure nothing is registered and
// any partially built index is destroyed.
func (p *Pipeline) Ingest(ctx context.Context, src Source) (*Result, error) {
	start := time.Now()
	p.logger.Info("ingest start", "kind", src.Kind, "source", src.Name)

	extractStage := fn.TracedStage("ingest.extract", p.extractStage())
	chunkStage := fn.TracedStage("ingest.chunk", p.chunkStage())

	cd, err := fn.Then(extractStage, chunkStage)(ctx, src).Unwrap()
	if err != nil {
		return nil, err
	}

	// The session id is minted before registration so session-scoped index
	// backends can name their storage after it.
	id := p.registry.NewID()
	index := p.newIndex(id)

	if err := index.Add(ctx, cd.chunks); err != nil {
		p.discard(index, id)
		return nil, err
	}

	summary := ""
	if src.Kind == domain.SourceURL {
		summary, err = p.summarize(ctx, cd.doc)
		if err != nil {
			p.discard(index, id)
			return nil, err
		}
	}

	stats := buildStats(cd, index, p.opts)
	sess := p.registry.Register(&session.Session{
		ID:         id,
		SourceName: cd.doc.SourceName,
		Kind:       src.Kind,
		Index:      index,
		Stats:      stats,
	})

	p.logger.Info("ingest done",
		"session_id", sess.ID,
		"chunks", stats.ChunkCount,
		"duration", time.Since(start),
	)
	return &Result{
		SessionID: sess.ID,
		Source:    sess.SourceName,
		Kind:      sess.Kind,
		Summary:   summary,
		Stats:     stats,
	}, nil
}

func (p *Pipeline) extractStage() fn.Stage[Source, extract.Document] {
	return func(ctx context.Context, src Source) fn.Result[extract.Document] {
		switch src.Kind {
		case domain.SourcePDF:
			return fn.FromPair(p.pdf.Extract(ctx, src.Name, src.Data))
		case domain.SourceURL:
			return fn.FromPair(p.web.Extract(ctx, src.URL))
		default:
			return fn.Err[extract.Document](domain.E(domain.ErrInvalidArgument, "ingest", fmt.Errorf("unknown source kind %q", src.Kind)))
		}
	}
}

func (p *Pipeline) chunkStage() fn.Stage[extract.Document, chunkedDoc] {
	return func(_ context.Context, doc extract.Document) fn.Result[chunkedDoc] {
		chunks, err := ChunkDocument(doc, SplitOptions{ChunkSize: p.opts.ChunkSize, Overlap: p.opts.Overlap})
		if err != nil {
			return fn.Err[chunkedDoc](err)
		}
		if len(chunks) == 0 {
			return fn.Err[chunkedDoc](domain.E(domain.ErrUnreadableSource, "ingest: chunk "+doc.SourceName, fmt.Errorf("no text to index")))
		}
		return fn.Ok(chunkedDoc{doc: doc, chunks: chunks})
	}
}

// summarize generates the URL summary from a bounded slice of the page text.
func (p *Pipeline) summarize(ctx context.Context, doc extract.Document) (string, error) {
	text := doc.Text()
	if runes := []rune(text); len(runes) > p.opts.SummaryBudget {
		text = string(runes[:p.opts.SummaryBudget])
	}
	prompt := fmt.Sprintf(summaryPromptTemplate, doc.SourceName, text)
	summary, err := p.summarizer.Generate(ctx, prompt)
	if err != nil {
		return "", domain.E(domain.ErrSummarization, "ingest: summarize "+doc.SourceName, err)
	}
	return summary, nil
}

// discard destroys the index of an aborted ingestion. Best effort: the
// session was never registered, so a leaked backing collection is only a
// storage concern.
func (p *Pipeline) discard(index semantic.Index, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := index.Destroy(ctx); err != nil {
		p.logger.Warn("ingest: discard index failed", "session_id", id, "err", err)
	}
}

func buildStats(cd chunkedDoc, index semantic.Index, opts Options) domain.IngestStats {
	totalChars := 0
	for _, c := range cd.chunks {
		totalChars += len(c.Text)
	}
	avg := 0.0
	if len(cd.chunks) > 0 {
		avg = float64(totalChars) / float64(len(cd.chunks))
	}
	return domain.IngestStats{
		ChunkCount:         len(cd.chunks),
		TotalChars:         totalChars,
		AvgChunkSize:       avg,
		ChunkSize:          opts.ChunkSize,
		ChunkOverlap:       opts.Overlap,
		EmbeddingDimension: index.Dimension(),
		DistanceMetric:     string(index.Metric()),
	}
}
