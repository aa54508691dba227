package kafka

import (
	"context"
	"encoding/json"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/metrics"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// DeadLetterEnvelope wraps a failed event with its source position and
// error context so downstream tooling can correlate and replay it.
type DeadLetterEnvelope struct {
	OriginalKey       string          `json:"originalKey"`
	OriginalTopic     string          `json:"originalTopic"`
	OriginalPartition int             `json:"originalPartition"`
	OriginalOffset    int64           `json:"originalOffset"`
	ErrorMessage      string          `json:"errorMessage"`
	ErrorType         string          `json:"errorType"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// DeadLetterPublisher re-emits failing events, enriched with error
// context, to the dead-letter topic. The whole path is best-effort:
// serialize or send failures are logged and swallowed so they can never
// bounce back into the controller's already-failing path.
type DeadLetterPublisher struct {
	producer Publisher
	topic    string
	log      *logging.Logger
}

// NewDeadLetterPublisher creates a publisher for the given DLT topic.
func NewDeadLetterPublisher(producer Publisher, topic string, log *logging.Logger) *DeadLetterPublisher {
	return &DeadLetterPublisher{
		producer: producer,
		topic:    topic,
		log:      log.WithComponent("dead-letter"),
	}
}

// Publish sends the envelope with the original key preserved.
func (p *DeadLetterPublisher) Publish(ctx context.Context, originalKey string, payload []byte, pos models.Position, errorType string, cause error) {
	envelope := DeadLetterEnvelope{
		OriginalKey:       originalKey,
		OriginalTopic:     pos.Topic,
		OriginalPartition: pos.Partition,
		OriginalOffset:    pos.Offset,
		ErrorType:         errorType,
	}
	if cause != nil {
		envelope.ErrorMessage = cause.Error()
	}
	if json.Valid(payload) {
		envelope.Payload = payload
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		metrics.DeadLetterFailures.Inc()
		p.log.Error("failed to serialize dead-letter envelope",
			logging.Position(pos), logging.Err(err))
		return
	}

	if err := p.producer.Publish(ctx, p.topic, originalKey, data, nil); err != nil {
		metrics.DeadLetterFailures.Inc()
		p.log.Error("failed to publish dead-letter message",
			logging.Position(pos), logging.Err(err))
		return
	}

	metrics.DeadLetterPublished.Inc()
	p.log.Warn("sent message to dead-letter topic",
		logging.EventKey(originalKey), logging.Position(pos))
}
