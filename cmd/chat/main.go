// Package main implements a terminal chat against a single document.
// It ingests the PDF path or URL given as the first argument, then answers
// questions read from stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/askdoc/askdoc/engine/domain"
	"github.com/askdoc/askdoc/engine/extract"
	"github.com/askdoc/askdoc/engine/ingest"
	"github.com/askdoc/askdoc/engine/rag"
	"github.com/askdoc/askdoc/engine/semantic"
	"github.com/askdoc/askdoc/engine/session"
	"github.com/askdoc/askdoc/pkg/ollama"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: chat <pdf-path-or-url> [similarity-threshold]")
		os.Exit(2)
	}
	target := os.Args[1]

	var threshold *float64
	if len(os.Args) > 2 {
		t, err := strconv.ParseFloat(os.Args[2], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad threshold %q: %v\n", os.Args[2], err)
			os.Exit(2)
		}
		threshold = &t
	}

	ollamaURL := envOr("OLLAMA_URL", "http://localhost:11434")
	embedModel := envOr("EMBED_MODEL", "nomic-embed-text")
	chatModel := envOr("CHAT_MODEL", "llama3.2")

	embedder := ollama.NewEmbedder(ollamaURL, embedModel)
	generator := ollama.NewGenerator(ollamaURL, chatModel)

	registry := session.NewRegistry(logger)
	pipeline := ingest.New(
		extract.NewPDF(), extract.NewWeb(),
		func(string) semantic.Index { return semantic.NewMemoryIndex(embedder) },
		registry, generator,
		ingest.DefaultOptions(), logger,
	)
	ragSvc := rag.New(registry, generator, nil, rag.DefaultOptions(), logger)

	ctx := context.Background()

	src, err := buildSource(target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("ingesting %s ...\n", target)
	result, err := pipeline.Ingest(ctx, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ready: %d chunks, %d-dim embeddings\n", result.Stats.ChunkCount, result.Stats.EmbeddingDimension)
	if result.Summary != "" {
		fmt.Printf("\nsummary:\n%s\n", result.Summary)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "/quit" || question == "/exit" {
			break
		}

		answer, err := ragSvc.Answer(ctx, result.SessionID, question, threshold)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error (%s): %v\n", domain.Kind(err), err)
			continue
		}

		fmt.Println(answer.Text)
		for _, c := range answer.Citations {
			fmt.Printf("  [%d] %s (%.1f%%)\n", c.ChunkID, c.Source, c.SimilarityScore)
		}
	}
}

func buildSource(target string) (ingest.Source, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return ingest.Source{Kind: domain.SourceURL, Name: target, URL: target}, nil
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return ingest.Source{}, fmt.Errorf("read %s: %w", target, err)
	}
	return ingest.Source{Kind: domain.SourcePDF, Name: target, Data: data}, nil
}
