package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/askdoc/askdoc/engine/domain"
	"github.com/askdoc/askdoc/pkg/natsutil"
)

const (
	// URLSubject carries asynchronous URL ingestion requests.
	URLSubject = "askdoc.ingest.url"
	// ResultSubject carries successful ingestion results.
	ResultSubject = "askdoc.ingest.result"
	// DLQSubject is the dead letter queue for requests that kept failing.
	DLQSubject = "askdoc.ingest.dlq"
	// MaxRetries before a request goes to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// URLRequest is the wire format for async URL ingestion.
type URLRequest struct {
	URL string `json:"url"`
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request URLRequest `json:"request"`
	Error   string     `json:"error"`
	Kind    string     `json:"kind"`
	Retries int        `json:"retries"`
}

// StartConsumer subscribes to URL ingestion requests and runs them through
// the pipeline. Transient failures are re-published with a bumped retry
// count; after MaxRetries the request lands on the DLQ. Results go out on
// ResultSubject.
func StartConsumer(nc *nats.Conn, p *Pipeline, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return nc.Subscribe(URLSubject, func(msg *nats.Msg) {
		var req URLRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			logger.Error("ingest consumer: unmarshal failed", "err", err)
			return
		}
		if req.URL == "" {
			logger.Error("ingest consumer: empty url")
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		ctx := context.Background()
		result, err := p.Ingest(ctx, Source{Kind: domain.SourceURL, Name: req.URL, URL: req.URL})
		if err != nil {
			retries++
			logger.Error("ingest consumer: pipeline failed",
				"url", req.URL,
				"kind", domain.Kind(err),
				"retry", retries,
				"err", err,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{
					Request: req,
					Error:   err.Error(),
					Kind:    domain.Kind(err),
					Retries: retries,
				}
				if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
					logger.Error("ingest consumer: DLQ publish failed", "err", err)
				}
				return
			}

			retryMsg := nats.NewMsg(URLSubject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				logger.Error("ingest consumer: retry publish failed", "err", err)
			}
			return
		}

		if err := natsutil.Publish(ctx, nc, ResultSubject, result); err != nil {
			logger.Error("ingest consumer: result publish failed", "err", err)
		}
		logger.Info("ingest consumer: done", "url", req.URL, "session_id", result.SessionID)
	})
}
