// Package outbox drains staged events from the durable outbox and
// forwards them to the broker, decoupled from the writes that staged
// them.
package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/database"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/kafka"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/metrics"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/repository"
)

// Publisher polls NEW outbox rows and publishes them to the configured
// topic. It runs on its own schedule, concurrent with ingestion, and
// never blocks it.
type Publisher struct {
	store     repository.OutboxStore
	producer  kafka.Publisher
	topic     string
	interval  time.Duration
	batchSize int
	log       *logging.Logger
}

// NewPublisher creates an outbox publisher.
func NewPublisher(store repository.OutboxStore, producer kafka.Publisher, topic string, interval time.Duration, batchSize int, log *logging.Logger) *Publisher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Publisher{
		store:     store,
		producer:  producer,
		topic:     topic,
		interval:  interval,
		batchSize: batchSize,
		log:       log.WithComponent("outbox"),
	}
}

// Run drains the outbox on a fixed interval until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("outbox publisher started",
		slog.String("topic", p.topic),
		slog.Duration("interval", p.interval),
		slog.Int("batch_size", p.batchSize))

	for {
		select {
		case <-ctx.Done():
			p.log.Info("outbox publisher stopping")
			return
		case <-ticker.C:
			if _, _, err := p.DrainAndPublish(ctx, p.batchSize); err != nil {
				p.log.Error("outbox drain pass failed", logging.Err(err))
			}
		}
	}
}

// DrainAndPublish selects up to batchSize NEW rows oldest-first and
// attempts to publish each. Success finalizes the row as PUBLISHED; a
// publish error parks it as FAILED for external retry — a persistently
// failing row must not wedge future batches. Returns the published and
// failed counts.
func (p *Publisher) DrainAndPublish(ctx context.Context, batchSize int) (published, failed int, err error) {
	queryCtx, cancel := database.QueryContext(ctx)
	events, err := p.store.FindNextNew(queryCtx, batchSize)
	cancel()
	if err != nil {
		return 0, 0, err
	}

	metrics.OutboxBacklog.Set(float64(len(events)))
	if len(events) == 0 {
		return 0, 0, nil
	}

	for _, event := range events {
		if pubErr := p.publishOne(ctx, event); pubErr != nil {
			failed++
			metrics.OutboxFailed.Inc()
			p.log.Error("failed to publish outbox event",
				slog.Int64("outbox_id", event.ID),
				slog.String("event_type", event.EventType),
				logging.Err(pubErr))

			if markErr := p.markFailed(ctx, event.ID, pubErr.Error()); markErr != nil {
				p.log.Error("failed to mark outbox event failed",
					slog.Int64("outbox_id", event.ID), logging.Err(markErr))
			}
			continue
		}

		published++
		metrics.OutboxPublished.Inc()
		if markErr := p.markPublished(ctx, event.ID); markErr != nil {
			// The broker send succeeded but the bookkeeping did not; the
			// row stays NEW and the event may be sent again. Downstream
			// consumers of the stats stream must tolerate duplicates.
			p.log.Error("failed to mark outbox event published",
				slog.Int64("outbox_id", event.ID), logging.Err(markErr))
		}
	}

	p.log.Info("outbox drain pass complete",
		slog.Int("published", published), slog.Int("failed", failed))

	return published, failed, nil
}

func (p *Publisher) publishOne(ctx context.Context, event *models.OutboxEvent) error {
	var headers map[string]string
	if len(event.Headers) > 0 {
		if err := json.Unmarshal(event.Headers, &headers); err != nil {
			p.log.Warn("dropping unparseable outbox headers",
				slog.Int64("outbox_id", event.ID), logging.Err(err))
			headers = nil
		}
	}

	return p.producer.Publish(ctx, p.topic, event.PartitionKey, event.Payload, headers)
}

func (p *Publisher) markPublished(ctx context.Context, id int64) error {
	writeCtx, cancel := database.WriteContext(ctx)
	defer cancel()
	return p.store.MarkPublished(writeCtx, id)
}

func (p *Publisher) markFailed(ctx context.Context, id int64, message string) error {
	writeCtx, cancel := database.WriteContext(ctx)
	defer cancel()
	return p.store.MarkFailed(writeCtx, id, message)
}
