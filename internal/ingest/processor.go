// Package ingest contains the orchestrator of the event pipeline: it
// receives one event at a time from the broker, drives the durable
// stores in sequence and decides when to advance the stream cursor.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/kafka"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/metrics"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/repository"
)

// Aggregator updates the daily counters from a validated payload.
type Aggregator interface {
	IncrementFromEvent(ctx context.Context, payload *models.SearchEventPayload) (*models.DailyQueryStat, error)
}

// DeadLetterer re-emits a failed event with error context. Best-effort;
// implementations never return.
type DeadLetterer interface {
	Publish(ctx context.Context, originalKey string, payload []byte, pos models.Position, errorType string, cause error)
}

// Processor implements the ingestion contract: persist, validate,
// aggregate, then acknowledge. Failures are captured in the error log
// and the dead-letter stream, and the position is acknowledged anyway —
// a poison message is recorded once, never reprocessed forever.
type Processor struct {
	rawEvents  repository.RawEventStore
	errorLog   repository.ErrorStore
	aggregator Aggregator
	deadLetter DeadLetterer
	log        *logging.Logger
}

// NewProcessor wires the controller to its stores and publishers.
func NewProcessor(
	rawEvents repository.RawEventStore,
	errorLog repository.ErrorStore,
	aggregator Aggregator,
	deadLetter DeadLetterer,
	log *logging.Logger,
) *Processor {
	return &Processor{
		rawEvents:  rawEvents,
		errorLog:   errorLog,
		aggregator: aggregator,
		deadLetter: deadLetter,
		log:        log.WithComponent("ingest"),
	}
}

// Handle processes one delivered message.
//
// Acknowledgment happens only after durable side effects were attempted
// (success or captured failure), never before. That bounds data loss to
// events lost between broker delivery and the first durable write, the
// exposure every at-least-once consumer accepts.
func (p *Processor) Handle(ctx context.Context, key string, value []byte, pos models.Position, ack kafka.AckFunc) error {
	payload, decodeErr := decodePayload(value)

	raw, created, err := p.rawEvents.RecordReceived(ctx, newRawEvent(key, payload, value, pos))
	if err != nil {
		// Nothing durable exists for this position yet: capture what we
		// can and move the cursor so the partition is not blocked.
		p.captureFailure(ctx, nil, key, value, pos, fmt.Errorf("record raw event: %w", err))
		return p.acknowledge(ctx, pos, ack)
	}

	if !created && raw.Final() {
		// Redelivery of completed work. The first delivery already
		// aggregated (or already captured the failure); doing it again
		// would double-count.
		metrics.EventsConsumed.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		metrics.DuplicateDeliveries.Inc()
		p.log.Info("skipping redelivered position", logging.Position(pos))
		return p.acknowledge(ctx, pos, ack)
	}

	if decodeErr != nil {
		p.rejectInvalid(ctx, raw.ID, pos, fmt.Sprintf("payload is not valid JSON: %v", decodeErr))
		return p.acknowledge(ctx, pos, ack)
	}

	if !payload.ValidForAggregation() {
		p.rejectInvalid(ctx, raw.ID, pos, "payload invalid for aggregation (missing query or occurredAt)")
		return p.acknowledge(ctx, pos, ack)
	}

	if _, err := p.aggregator.IncrementFromEvent(ctx, payload); err != nil {
		p.captureFailure(ctx, &raw.ID, key, value, pos, fmt.Errorf("increment daily stats: %w", err))
		return p.acknowledge(ctx, pos, ack)
	}

	if err := p.rawEvents.MarkProcessed(ctx, raw.ID); err != nil {
		p.captureFailure(ctx, &raw.ID, key, value, pos, fmt.Errorf("mark raw event processed: %w", err))
		return p.acknowledge(ctx, pos, ack)
	}

	metrics.EventsConsumed.WithLabelValues(metrics.OutcomeProcessed).Inc()
	return p.acknowledge(ctx, pos, ack)
}

// rejectInvalid handles a permanently malformed event: mark the raw row
// ERROR, append a VALIDATION error, and let the caller acknowledge. An
// invalid event can never become valid, so it is never retried.
func (p *Processor) rejectInvalid(ctx context.Context, rawEventID int64, pos models.Position, message string) {
	metrics.EventsConsumed.WithLabelValues(metrics.OutcomeInvalid).Inc()
	metrics.ProcessingErrors.WithLabelValues(models.ErrorTypeValidation).Inc()
	p.log.Warn(message, logging.Position(pos))

	if err := p.rawEvents.MarkError(ctx, rawEventID, message); err != nil {
		p.log.Error("failed to mark raw event error", logging.Position(pos), logging.Err(err))
	}

	if _, err := p.errorLog.LogError(ctx, &models.ProcessingError{
		RawEventID:     &rawEventID,
		KafkaTopic:     pos.Topic,
		KafkaPartition: pos.Partition,
		KafkaOffset:    pos.Offset,
		ErrorType:      models.ErrorTypeValidation,
		ErrorMessage:   message,
	}); err != nil {
		p.log.Error("failed to log validation error", logging.Position(pos), logging.Err(err))
	}
}

// captureFailure handles an unexpected runtime failure: mark the raw row
// ERROR when one exists, append a PROCESSING_ERROR with a diagnostic
// trace, and forward the original event to the dead-letter stream.
// Failures inside this fallback path are logged and swallowed so the
// controller always reaches acknowledgment.
func (p *Processor) captureFailure(ctx context.Context, rawEventID *int64, key string, value []byte, pos models.Position, cause error) {
	metrics.EventsConsumed.WithLabelValues(metrics.OutcomeFailed).Inc()
	metrics.ProcessingErrors.WithLabelValues(models.ErrorTypeProcessing).Inc()
	p.log.Error("failed to process search event",
		logging.EventKey(key), logging.Position(pos), logging.Err(cause))

	if rawEventID != nil {
		if err := p.rawEvents.MarkError(ctx, *rawEventID, cause.Error()); err != nil {
			p.log.Error("failed to mark raw event error", logging.Position(pos), logging.Err(err))
		}
	}

	trace := string(debug.Stack())
	if _, err := p.errorLog.LogError(ctx, &models.ProcessingError{
		RawEventID:     rawEventID,
		KafkaTopic:     pos.Topic,
		KafkaPartition: pos.Partition,
		KafkaOffset:    pos.Offset,
		ErrorType:      models.ErrorTypeProcessing,
		ErrorMessage:   cause.Error(),
		StackTrace:     &trace,
	}); err != nil {
		p.log.Error("failed to log processing error", logging.Position(pos), logging.Err(err))
	}

	p.deadLetter.Publish(ctx, key, value, pos, models.ErrorTypeProcessing, cause)
}

func (p *Processor) acknowledge(ctx context.Context, pos models.Position, ack kafka.AckFunc) error {
	if err := ack(ctx); err != nil {
		return fmt.Errorf("acknowledge %s[%d]@%d: %w", pos.Topic, pos.Partition, pos.Offset, err)
	}
	return nil
}

// decodePayload parses the wire payload. A decode failure is reported
// to the caller; the opaque bytes are still recorded in the raw store.
func decodePayload(value []byte) (*models.SearchEventPayload, error) {
	payload := &models.SearchEventPayload{}
	if err := json.Unmarshal(value, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// newRawEvent maps a delivery onto its raw_search_events row. Payload
// fields are taken as given; a nil payload (undecodable message) leaves
// the descriptive columns empty while the opaque bytes are kept.
func newRawEvent(key string, payload *models.SearchEventPayload, value []byte, pos models.Position) *models.RawSearchEvent {
	stored := value
	if !json.Valid(value) {
		// The payload column is JSONB; keep undecodable bytes as a JSON
		// string so the row can still be written.
		stored, _ = json.Marshal(string(value))
	}

	event := &models.RawSearchEvent{
		EventKey:         key,
		ReceivedAt:       time.Now().UTC(),
		KafkaTopic:       pos.Topic,
		KafkaPartition:   pos.Partition,
		KafkaOffset:      pos.Offset,
		Payload:          stored,
		ProcessingStatus: models.StatusReceived,
	}

	if payload != nil {
		event.Query = payload.Query
		event.OccurredAt = payload.OccurredAt
		if payload.UserID != "" {
			event.UserID = &payload.UserID
		}
		if payload.Country != "" {
			event.Country = &payload.Country
		}
	}

	return event
}
