// Package session maps opaque session ids to their index stores and
// ingestion metadata. The Registry is the single owner of all indexes; no
// other component holds a long-lived reference to one.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc/engine/domain"
	"github.com/askdoc/askdoc/engine/semantic"
)

// Session is an isolated unit of ingested content plus its index.
type Session struct {
	ID         string
	SourceName string
	Kind       domain.SourceKind
	CreatedAt  time.Time
	Index      semantic.Index
	Stats      domain.IngestStats
}

// Info returns the introspection view of the session.
func (s *Session) Info() domain.SessionInfo {
	return domain.SessionInfo{
		SessionID:  s.ID,
		SourceName: s.SourceName,
		SourceKind: s.Kind,
		CreatedAt:  s.CreatedAt,
		Stats:      s.Stats,
	}
}

// Registry holds all live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// NewID returns a fresh session id. Ids are uuid v4 and never reused.
func (r *Registry) NewID() string {
	return uuid.NewString()
}

// Register makes a fully ingested session visible. The ingestion pipeline
// calls this only after the index is completely populated, so a query can
// never observe a half-populated index.
func (r *Registry) Register(s *Session) *Session {
	if s.ID == "" {
		s.ID = r.NewID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Info("session registered",
		"session_id", s.ID,
		"source", s.SourceName,
		"chunks", s.Stats.ChunkCount,
	)
	return s
}

// Get resolves a session id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.E(domain.ErrSessionNotFound, "session: get "+id, nil)
	}
	return s, nil
}

// Delete removes a session and destroys its index. Deleting an unknown id is
// a no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := s.Index.Destroy(ctx); err != nil {
		r.logger.Warn("session: index destroy failed", "session_id", id, "err", err)
		return err
	}
	r.logger.Info("session deleted", "session_id", id)
	return nil
}

// List returns summaries of all live sessions, newest first.
func (r *Registry) List() []domain.SessionInfo {
	r.mu.RLock()
	out := make([]domain.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
