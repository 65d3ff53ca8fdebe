package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "test-model" || req.Prompt != "hello" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{0.25, -0.5, 1}})
	}))
	defer srv.Close()

	vec, err := NewEmbedder(srv.URL, "test-model").Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.25 || vec[1] != -0.5 || vec[2] != 1 {
		t.Errorf("unexpected vector: %v", vec)
	}
}

func TestEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewEmbedder(srv.URL, "missing").Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected an error for non-200 status")
	}
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req embedReq
		json.NewDecoder(r.Body).Decode(&req)
		// Vector encodes the text length so order can be verified.
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{float64(len(req.Prompt))}})
	}))
	defer srv.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := NewEmbedder(srv.URL, "m").EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if v[0] != float32(len(texts[i])) {
			t.Errorf("vector %d out of order: got %v for %q", i, v[0], texts[i])
		}
	}
	if calls.Load() != int64(len(texts)) {
		t.Errorf("expected %d requests, got %d", len(texts), calls.Load())
	}
}

func TestEmbedder_EmbedBatchFailsWhole(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{1}})
	}))
	defer srv.Close()

	e := NewEmbedder(srv.URL, "m")
	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"}); err == nil {
		t.Fatal("one failed embedding must fail the whole batch")
	}
}

func TestGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Stream {
			t.Error("generation must request a non-streamed response")
		}
		json.NewEncoder(w).Encode(generateResp{Response: "the answer"})
	}))
	defer srv.Close()

	got, err := NewGenerator(srv.URL, "m").Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "the answer" {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewGenerator(srv.URL, "m").Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected an error for non-200 status")
	}
}
