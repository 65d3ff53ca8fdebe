package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine. Every failure surfaced to a caller wraps
// exactly one of these so the caller can branch with errors.Is.
var (
	ErrUnreadableSource  = errors.New("unreadable source")
	ErrEmbeddingProvider = errors.New("embedding provider failure")
	ErrGeneration        = errors.New("generation failure")
	ErrSummarization     = errors.New("summarization failure")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoRelevantChunks  = errors.New("no chunks passed the similarity filter")
)

// Error wraps a sentinel with the operation that failed and the underlying
// cause. The payload stays free of provider internals; the cause is kept in
// the chain for logging, not rendered to API callers.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E builds an *Error. Kind must be one of the sentinels above.
func E(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Kind returns the stable machine-readable kind for an error, suitable for
// API payloads. Unknown errors report "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnreadableSource):
		return "unreadable_source"
	case errors.Is(err, ErrEmbeddingProvider):
		return "embedding_provider_error"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	case errors.Is(err, ErrSummarization):
		return "summarization_error"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrNoRelevantChunks):
		return "no_relevant_chunks"
	default:
		return "internal"
	}
}
