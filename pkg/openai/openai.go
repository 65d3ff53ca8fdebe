// Package openai provides an OpenAI-compatible embeddings and chat client.
// It speaks to api.openai.com by default but works against any server that
// implements the same surface.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/askdoc/askdoc/pkg/resilience"
)

// Defaults matching the hosted API.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultEmbedModel = "text-embedding-3-small"
	DefaultChatModel  = "gpt-4o-mini"
)

const maxAttempts = 4

// Config configures the client.
type Config struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
	// RequestsPerSecond throttles outgoing calls; zero means no throttle.
	RequestsPerSecond float64
}

// Client implements semantic.Embedder and rag.Generator against an
// OpenAI-compatible API. Transient failures (429, 5xx) are retried with
// backoff; repeated failures trip a circuit breaker.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// New creates a client. APIKey may be empty for local compatible servers.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out embedResponse
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/embeddings", embedRequest{Model: c.cfg.EmbedModel, Input: texts}, &out)
	})
	if err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate returns the chat completion for a prompt, temperature 0.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/chat/completions", chatRequest{
			Model:       c.cfg.ChatModel,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0,
		}, &out)
	})
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}

// post sends one JSON request, retrying transient failures with backoff.
// Client errors other than 429 are returned immediately.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay(attempt, lastErr)):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("openai %s: %w", path, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &transientError{status: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After")}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return fmt.Errorf("openai %s: status %d", path, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("openai %s: decode: %w", path, err)
		}
		return nil
	}
	return lastErr
}

type transientError struct {
	status     int
	retryAfter string
}

func (e *transientError) Error() string {
	return fmt.Sprintf("openai: transient status %d", e.status)
}

// retryDelay is exponential backoff capped at 5s, honoring Retry-After when
// the server sent one.
func retryDelay(attempt int, lastErr error) time.Duration {
	if te, ok := lastErr.(*transientError); ok && te.retryAfter != "" {
		if secs, err := strconv.Atoi(te.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	d := 200 * time.Millisecond << (attempt - 1)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
