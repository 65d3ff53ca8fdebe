package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/askdoc/askdoc/engine/domain"
	"github.com/askdoc/askdoc/engine/ingest"
	"github.com/askdoc/askdoc/engine/rag"
	"github.com/askdoc/askdoc/engine/session"
	"github.com/askdoc/askdoc/pkg/metrics"
	"github.com/askdoc/askdoc/pkg/natsutil"
)

type apiServer struct {
	pipeline  *ingest.Pipeline
	rag       *rag.Service
	registry  *session.Registry
	nc        *nats.Conn
	metrics   *apiMetrics
	logger    *slog.Logger
	maxUpload int64
}

type apiMetrics struct {
	ingestTotal  *metrics.Counter
	ingestFailed *metrics.Counter
	askTotal     *metrics.Counter
	askFailed    *metrics.Counter
	askDuration  *metrics.Histogram
}

func newAPIMetrics(reg *metrics.Registry, registry *session.Registry) *apiMetrics {
	m := &apiMetrics{
		ingestTotal:  reg.Counter("askdoc_ingest_total", "Completed ingestions."),
		ingestFailed: reg.Counter("askdoc_ingest_failed_total", "Failed ingestions."),
		askTotal:     reg.Counter("askdoc_ask_total", "Answered questions."),
		askFailed:    reg.Counter("askdoc_ask_failed_total", "Failed questions."),
		askDuration:  reg.Histogram("askdoc_ask_duration_seconds", "Question latency.", nil),
	}
	// Live session count is polled rather than hooked into every mutation.
	gauge := reg.Gauge("askdoc_sessions_live", "Currently registered sessions.")
	go func() {
		for range time.Tick(5 * time.Second) {
			gauge.Set(int64(registry.Len()))
		}
	}()
	return m
}

// errorBody is the JSON error envelope. Kind is stable; the message is not.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnreadableSource):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNoRelevantChunks):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmbeddingProvider), errors.Is(err, domain.ErrGeneration), errors.Is(err, domain.ErrSummarization):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorBody{Error: publicMessage(err, kind), Kind: kind})
}

// publicMessage keeps provider internals out of API responses.
func publicMessage(err error, kind string) string {
	switch kind {
	case "no_relevant_chunks":
		return "no sufficiently relevant content found for this question"
	case "internal", "embedding_provider_error", "generation_error", "summarization_error":
		return "upstream provider error"
	default:
		return err.Error()
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.registry.Len(),
	})
}

// handleUpload ingests a PDF from a multipart form field named "file".
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, domain.E(domain.ErrInvalidArgument, "api: upload", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.E(domain.ErrInvalidArgument, "api: upload", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, domain.E(domain.ErrInvalidArgument, "api: upload", err))
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), ingest.Source{
		Kind: domain.SourcePDF,
		Name: header.Filename,
		Data: data,
	})
	if err != nil {
		s.metrics.ingestFailed.Inc()
		s.logger.Error("upload failed", "file", header.Filename, "err", err)
		writeError(w, err)
		return
	}
	s.metrics.ingestTotal.Inc()
	writeJSON(w, http.StatusOK, result)
}

// ProcessURLRequest is the JSON body for POST /process-url.
type ProcessURLRequest struct {
	URL string `json:"url"`
	// Async hands the request to the ingest worker over NATS and returns
	// immediately. Requires the server to be configured with a NATS URL.
	Async bool `json:"async,omitempty"`
}

func (s *apiServer) handleProcessURL(w http.ResponseWriter, r *http.Request) {
	var req ProcessURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.E(domain.ErrInvalidArgument, "api: process-url", err))
		return
	}
	if req.URL == "" {
		writeError(w, domain.E(domain.ErrInvalidArgument, "api: process-url", errors.New("url is required")))
		return
	}

	if req.Async {
		if s.nc == nil {
			writeError(w, domain.E(domain.ErrInvalidArgument, "api: process-url", errors.New("async ingestion is not enabled")))
			return
		}
		if err := natsutil.Publish(r.Context(), s.nc, ingest.URLSubject, ingest.URLRequest{URL: req.URL}); err != nil {
			s.logger.Error("async ingest publish failed", "url", req.URL, "err", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "url": req.URL})
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), ingest.Source{
		Kind: domain.SourceURL,
		Name: req.URL,
		URL:  req.URL,
	})
	if err != nil {
		s.metrics.ingestFailed.Inc()
		s.logger.Error("process-url failed", "url", req.URL, "err", err)
		writeError(w, err)
		return
	}
	s.metrics.ingestTotal.Inc()
	writeJSON(w, http.StatusOK, result)
}

// AskRequest is the JSON body for POST /ask.
type AskRequest struct {
	SessionID string   `json:"session_id"`
	Question  string   `json:"question"`
	Threshold *float64 `json:"similarity_threshold,omitempty"`
}

func (s *apiServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.E(domain.ErrInvalidArgument, "api: ask", err))
		return
	}

	start := time.Now()
	answer, err := s.rag.Answer(r.Context(), req.SessionID, req.Question, req.Threshold)
	s.metrics.askDuration.Since(start)
	if err != nil {
		s.metrics.askFailed.Inc()
		s.logger.Error("ask failed", "session_id", req.SessionID, "kind", domain.Kind(err), "err", err)
		writeError(w, err)
		return
	}
	s.metrics.askTotal.Inc()
	writeJSON(w, http.StatusOK, answer)
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.registry.List()})
}

func (s *apiServer) handleTechnical(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *apiServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": id})
}
