// Package main implements the askdoc API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/askdoc/askdoc/engine/extract"
	"github.com/askdoc/askdoc/engine/ingest"
	"github.com/askdoc/askdoc/engine/rag"
	"github.com/askdoc/askdoc/engine/semantic"
	"github.com/askdoc/askdoc/engine/session"
	"github.com/askdoc/askdoc/pkg/metrics"
	"github.com/askdoc/askdoc/pkg/mid"
	"github.com/askdoc/askdoc/pkg/ollama"
	"github.com/askdoc/askdoc/pkg/openai"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	Provider    string // "ollama" or "openai"
	IndexStore  string // "memory" or "qdrant"
	OllamaURL   string
	EmbedModel  string
	ChatModel   string
	OpenAIURL   string
	OpenAIKey   string
	QdrantURL   string
	NATSURL     string
	CORSOrigin  string
	MaxUploadMB int64
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		Provider:    envOr("LLM_PROVIDER", "ollama"),
		IndexStore:  envOr("INDEX_STORE", "memory"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:  envOr("EMBED_MODEL", ""),
		ChatModel:   envOr("CHAT_MODEL", ""),
		OpenAIURL:   envOr("OPENAI_BASE_URL", openai.DefaultBaseURL),
		OpenAIKey:   envOr("OPENAI_API_KEY", ""),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		NATSURL:     envOr("NATS_URL", ""),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		MaxUploadMB: 32,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Model providers ---
	embedder, generator, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	// --- Index store backend ---
	newIndex, closeIndexes, err := buildIndexFactory(cfg, embedder)
	if err != nil {
		return err
	}
	defer closeIndexes()

	// --- Engine ---
	registry := session.NewRegistry(logger)
	pipeline := ingest.New(
		extract.NewPDF(), extract.NewWeb(),
		newIndex, registry, generator,
		ingest.DefaultOptions(), logger,
	)
	ragSvc := rag.New(registry, generator, nil, rag.DefaultOptions(), logger)

	// --- Optional async ingestion over NATS ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name("askdoc-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		logger.Info("nats connected", "url", cfg.NATSURL)
	}

	// --- Metrics ---
	reg := metrics.New()
	m := newAPIMetrics(reg, registry)

	// --- Build HTTP server ---
	api := &apiServer{
		pipeline:  pipeline,
		rag:       ragSvc,
		registry:  registry,
		nc:        nc,
		metrics:   m,
		logger:    logger,
		maxUpload: cfg.MaxUploadMB << 20,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", api.handleHealth)
	mux.HandleFunc("POST /upload", api.handleUpload)
	mux.HandleFunc("POST /process-url", api.handleProcessURL)
	mux.HandleFunc("POST /ask", api.handleAsk)
	mux.HandleFunc("GET /sessions", api.handleListSessions)
	mux.HandleFunc("GET /session/{id}/technical", api.handleTechnical)
	mux.HandleFunc("DELETE /session/{id}", api.handleDeleteSession)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("askdoc-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "provider", cfg.Provider, "index_store", cfg.IndexStore)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildProviders wires the embedding and generation backends for the
// configured provider.
func buildProviders(cfg Config) (semantic.Embedder, rag.Generator, error) {
	switch cfg.Provider {
	case "ollama":
		embedModel := cfg.EmbedModel
		if embedModel == "" {
			embedModel = "nomic-embed-text"
		}
		chatModel := cfg.ChatModel
		if chatModel == "" {
			chatModel = "llama3.2"
		}
		return ollama.NewEmbedder(cfg.OllamaURL, embedModel),
			ollama.NewGenerator(cfg.OllamaURL, chatModel), nil
	case "openai":
		client := openai.New(openai.Config{
			BaseURL:    cfg.OpenAIURL,
			APIKey:     cfg.OpenAIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
		})
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
}

// buildIndexFactory returns the per-session index factory for the configured
// backend plus a close function for shared resources.
func buildIndexFactory(cfg Config, embedder semantic.Embedder) (ingest.IndexFactory, func(), error) {
	switch cfg.IndexStore {
	case "memory":
		return func(string) semantic.Index {
			return semantic.NewMemoryIndex(embedder)
		}, func() {}, nil
	case "qdrant":
		client, err := semantic.NewQdrantClient(cfg.QdrantURL)
		if err != nil {
			return nil, nil, err
		}
		return func(sessionID string) semantic.Index {
			return client.Index(sessionID, embedder)
		}, func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown INDEX_STORE %q", cfg.IndexStore)
	}
}
