// Command ingest-worker consumes URL ingestion requests from NATS and runs
// them through the ingestion pipeline. Results and dead letters are published
// back on their subjects; metrics are served over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/askdoc/askdoc/engine/extract"
	"github.com/askdoc/askdoc/engine/ingest"
	"github.com/askdoc/askdoc/engine/semantic"
	"github.com/askdoc/askdoc/engine/session"
	"github.com/askdoc/askdoc/pkg/fn"
	"github.com/askdoc/askdoc/pkg/metrics"
	"github.com/askdoc/askdoc/pkg/natsutil"
	"github.com/askdoc/askdoc/pkg/ollama"
)

var met = metrics.New()

var (
	mIngested    = met.Counter("askdoc_worker_ingested_total", "URLs ingested successfully")
	mDeadLetters = met.Counter("askdoc_worker_dead_letters_total", "Requests that exhausted retries")
	mSessions    = met.Gauge("askdoc_worker_sessions_live", "Sessions held by this worker")
)

func main() {
	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel  = flag.String("embed-model", "nomic-embed-text", "embedding model")
		chatModel   = flag.String("chat-model", "llama3.2", "summary model")
		metricsPort = flag.Int("metrics-port", 9091, "metrics HTTP port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *natsURL, *qdrantAddr, *ollamaURL, *embedModel, *chatModel, *metricsPort, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, natsURL, qdrantAddr, ollamaURL, embedModel, chatModel string, metricsPort int, logger *slog.Logger) error {
	// The NATS server often comes up after the worker in compose setups.
	nc, err := fn.Retry(ctx, fn.RetryOpts{MaxAttempts: 5, InitialWait: time.Second, MaxWait: 10 * time.Second, Jitter: true},
		func(context.Context) fn.Result[*nats.Conn] {
			return fn.FromPair(nats.Connect(natsURL, nats.Name("askdoc-ingest-worker")))
		}).Unwrap()
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", natsURL, err)
	}
	defer nc.Close()

	qdrant, err := semantic.NewQdrantClient(qdrantAddr)
	if err != nil {
		return err
	}
	defer qdrant.Close()

	embedder := ollama.NewEmbedder(ollamaURL, embedModel)
	generator := ollama.NewGenerator(ollamaURL, chatModel)

	registry := session.NewRegistry(logger)
	pipeline := ingest.New(
		extract.NewPDF(), extract.NewWeb(),
		func(sessionID string) semantic.Index { return qdrant.Index(sessionID, embedder) },
		registry, generator,
		ingest.DefaultOptions(), logger,
	)

	sub, err := ingest.StartConsumer(nc, pipeline, logger)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ingest.URLSubject, err)
	}
	defer sub.Unsubscribe()

	// Count completions and dead letters off the wire rather than inside the
	// consumer, so the metrics see exactly what downstream consumers see.
	resSub, err := natsutil.Subscribe(nc, ingest.ResultSubject, func(_ context.Context, r ingest.Result) {
		mIngested.Inc()
		mSessions.Set(int64(registry.Len()))
	})
	if err != nil {
		return err
	}
	defer resSub.Unsubscribe()

	dlqSub, err := natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, m map[string]any) {
		mDeadLetters.Inc()
		logger.Error("dead letter", "payload", m)
	})
	if err != nil {
		return err
	}
	defer dlqSub.Unsubscribe()

	msrv := &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: met.Handler()}
	go func() {
		if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()

	logger.Info("ingest worker running",
		"subject", ingest.URLSubject,
		"nats", natsURL,
		"qdrant", qdrantAddr,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msrv.Shutdown(shutCtx)
	return nc.Drain()
}
