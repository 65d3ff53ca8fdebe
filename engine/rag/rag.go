// Package rag orchestrates the retrieval-and-answer pipeline: similarity
// search over a session's index, score normalization, threshold filtering,
// context assembly, and answer generation with per-chunk citations.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/askdoc/askdoc/engine/domain"
	"github.com/askdoc/askdoc/engine/semantic"
	"github.com/askdoc/askdoc/engine/session"
)

// Generator produces the final answer text from a prompt. Implemented by
// provider adapters; failures surface as domain.ErrGeneration.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SessionResolver resolves session ids. Implemented by session.Registry.
type SessionResolver interface {
	Get(id string) (*session.Session, error)
}

// Options configures the answer pipeline.
type Options struct {
	// InitialK is how many chunks the similarity search retrieves before
	// filtering.
	InitialK int
	// PreviewLen bounds the per-citation content preview in characters.
	PreviewLen int
	// SearchTimeout bounds the similarity search, not the generation call.
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		InitialK:      10,
		PreviewLen:    200,
		SearchTimeout: 10 * time.Second,
	}
}

const answerPromptTemplate = `Answer ONLY using the context below.
Add the source name after EACH sentence in [source] format.
Use only the source name, not the full path.

Context:
%s

Question:
%s
`

// Service runs the answer pipeline. Safe for concurrent use; queries against
// different sessions are fully independent.
type Service struct {
	sessions  SessionResolver
	generator Generator
	relevance RelevanceFilter
	opts      Options
	logger    *slog.Logger
}

// New creates a Service. A nil relevance filter means the pass-through
// default.
func New(sessions SessionResolver, generator Generator, relevance RelevanceFilter, opts Options, logger *slog.Logger) *Service {
	if relevance == nil {
		relevance = NullRelevanceFilter{}
	}
	if opts.InitialK <= 0 {
		opts.InitialK = DefaultOptions().InitialK
	}
	if opts.PreviewLen <= 0 {
		opts.PreviewLen = DefaultOptions().PreviewLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:  sessions,
		generator: generator,
		relevance: relevance,
		opts:      opts,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one question against one session. A nil
// threshold disables similarity filtering. If filtering leaves no chunks the
// generator is never invoked and the call fails with
// domain.ErrNoRelevantChunks.
func (s *Service) Answer(ctx context.Context, sessionID, question string, threshold *float64) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}
	if err := domain.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("query start",
		"session_id", sessionID,
		"question_len", len(question),
		"k", s.opts.InitialK,
	)

	// Stage 1: similarity search. Pure vector arithmetic, no generation.
	searchCtx := ctx
	if s.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
	}
	retrieved, err := sess.Index.Search(searchCtx, question, s.opts.InitialK)
	if err != nil {
		return nil, err
	}

	// Stage 2: normalize raw scores to similarities in [0,1].
	metric := sess.Index.Metric()
	scored := make([]Scored, len(retrieved))
	for i, r := range retrieved {
		scored[i] = Scored{Chunk: r, Similarity: Normalize(metric, r.RawScore)}
	}

	// Stage 3: threshold filter. Removes, never reorders; runs before any
	// generation call.
	filtered := FilterByThreshold(scored, threshold)

	// Stage 4: relevance filter extension point (pass-through by default).
	survivors := make([]Scored, 0, len(filtered))
	for _, c := range filtered {
		relevant, _, err := s.relevance.CheckRelevance(ctx, c.Chunk.Chunk.Text, question)
		if err != nil {
			return nil, err
		}
		if relevant {
			survivors = append(survivors, c)
		}
	}

	if len(survivors) == 0 {
		return nil, domain.E(domain.ErrNoRelevantChunks, "rag: answer "+sessionID,
			fmt.Errorf("%d retrieved, 0 survived filtering", len(retrieved)))
	}

	// Stage 5: assemble context, similarity-descending, stable on ties.
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Similarity > survivors[j].Similarity
	})

	var contextB strings.Builder
	for i, c := range survivors {
		fmt.Fprintf(&contextB, "Chunk %d (%s): %s\n\n", i+1, displaySource(c.Chunk.Chunk.SourceID), c.Chunk.Chunk.Text)
	}

	// Stage 6: generation.
	prompt := fmt.Sprintf(answerPromptTemplate, contextB.String(), question)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, domain.E(domain.ErrGeneration, "rag: answer "+sessionID, err)
	}

	// Stage 7: result assembly.
	answer := s.buildAnswer(text, retrieved, filtered, survivors, threshold, sess)
	s.logger.Info("query done",
		"session_id", sessionID,
		"retrieved", len(retrieved),
		"used", len(survivors),
	)
	return answer, nil
}

func (s *Service) buildAnswer(text string, retrieved []semantic.ScoredChunk, filtered, survivors []Scored, threshold *float64, sess *session.Session) *Answer {
	citations := make([]Citation, len(survivors))
	sum, maxS, minS := 0.0, 0.0, 0.0
	for i, c := range survivors {
		pct := Pct(c.Similarity)
		citations[i] = Citation{
			ChunkID:         i + 1,
			Source:          displaySource(c.Chunk.Chunk.SourceID),
			SimilarityScore: pct,
			Page:            c.Chunk.Chunk.Page,
			ContentPreview:  preview(c.Chunk.Chunk.Text, s.opts.PreviewLen),
		}
		sum += pct
		if i == 0 || pct > maxS {
			maxS = pct
		}
		if i == 0 || pct < minS {
			minS = pct
		}
	}

	avg := 0.0
	if len(citations) > 0 {
		avg = sum / float64(len(citations))
	}

	return &Answer{
		Text:      text,
		Citations: citations,
		Stats: TechStats{
			ChunksRetrievedInitial:      len(retrieved),
			ChunksAfterSimilarityFilter: len(filtered),
			ChunksUsedForAnswer:         len(survivors),
			AvgSimilarityScore:          avg,
			MaxSimilarityScore:          maxS,
			MinSimilarityScore:          minS,
			SimilarityThresholdApplied:  threshold,
			EmbeddingDimension:          sess.Index.Dimension(),
			DistanceMetric:              string(sess.Index.Metric()),
		},
	}
}

// displaySource shortens a source id for citations: URLs become host+path
// prefix, file paths become the bare filename.
func displaySource(sourceID string) string {
	if sourceID == "" {
		return "unknown"
	}
	if strings.HasPrefix(sourceID, "http://") || strings.HasPrefix(sourceID, "https://") {
		u, err := url.Parse(sourceID)
		if err != nil {
			if len(sourceID) > 60 {
				return sourceID[:60]
			}
			return sourceID
		}
		p := u.Path
		if len(p) > 50 {
			p = p[:50]
		}
		return u.Host + p
	}
	return path.Base(sourceID)
}

// preview returns at most n runes of text.
func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
