// Package producer publishes search events into the main topic on
// behalf of external callers (HTTP API, CLI).
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/kafka"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// Service enriches payloads and publishes them to the search-events
// topic.
type Service struct {
	producer kafka.Publisher
	topic    string
	now      func() time.Time
	log      *logging.Logger
}

// NewService creates the producer service.
func NewService(producer kafka.Publisher, topic string, log *logging.Logger) *Service {
	return &Service{
		producer: producer,
		topic:    topic,
		now:      time.Now,
		log:      log.WithComponent("producer"),
	}
}

// Send fills in missing identity and timestamps, resolves the partition
// key, and publishes the payload. The enriched payload is returned so
// callers can surface the assigned event id.
func (s *Service) Send(ctx context.Context, payload *models.SearchEventPayload) (*models.SearchEventPayload, error) {
	enriched := s.enrich(payload)

	data, err := json.Marshal(enriched)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize search event: %w", err)
	}

	key := enriched.Key()
	if err := s.producer.Publish(ctx, s.topic, key, data, nil); err != nil {
		return nil, fmt.Errorf("failed to publish search event: %w", err)
	}

	s.log.Info("produced search event",
		logging.EventKey(key), logging.Query(enriched.Query))

	return enriched, nil
}

func (s *Service) enrich(payload *models.SearchEventPayload) *models.SearchEventPayload {
	enriched := *payload
	if enriched.EventID == "" {
		enriched.EventID = uuid.NewString()
	}

	now := s.now().UTC()
	if enriched.OccurredAt == nil || enriched.OccurredAt.IsZero() {
		enriched.OccurredAt = &now
	}
	if enriched.SentAt == nil || enriched.SentAt.IsZero() {
		enriched.SentAt = &now
	}

	return &enriched
}
