package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestE_WrapsSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := E(ErrEmbeddingProvider, "semantic: embed query", cause)

	if !errors.Is(err, ErrEmbeddingProvider) {
		t.Error("errors.Is lost the sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is lost the cause")
	}
	if !strings.Contains(err.Error(), "semantic: embed query") {
		t.Errorf("message missing op: %s", err)
	}
}

func TestE_NilCause(t *testing.T) {
	err := E(ErrSessionNotFound, "session: get abc", nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Error("errors.Is lost the sentinel")
	}
	if strings.Contains(err.Error(), "<nil>") {
		t.Errorf("message renders nil cause: %s", err)
	}
}

func TestE_SurvivesFurtherWrapping(t *testing.T) {
	inner := E(ErrNoRelevantChunks, "rag: answer", nil)
	outer := fmt.Errorf("handler: %w", inner)
	if !errors.Is(outer, ErrNoRelevantChunks) {
		t.Error("sentinel lost through fmt.Errorf wrapping")
	}
	if Kind(outer) != "no_relevant_chunks" {
		t.Errorf("Kind through wrapping = %s", Kind(outer))
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{E(ErrUnreadableSource, "op", nil), "unreadable_source"},
		{E(ErrEmbeddingProvider, "op", nil), "embedding_provider_error"},
		{E(ErrGeneration, "op", nil), "generation_error"},
		{E(ErrSummarization, "op", nil), "summarization_error"},
		{E(ErrInvalidArgument, "op", nil), "invalid_argument"},
		{E(ErrSessionNotFound, "op", nil), "session_not_found"},
		{E(ErrNoRelevantChunks, "op", nil), "no_relevant_chunks"},
		{errors.New("anything else"), "internal"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
