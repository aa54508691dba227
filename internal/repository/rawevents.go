package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// RawEventRepository implements RawEventStore on PostgreSQL.
type RawEventRepository struct {
	db DBTX
}

// NewRawEventRepository creates a repository bound to db.
func NewRawEventRepository(db DBTX) *RawEventRepository {
	return &RawEventRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *RawEventRepository) WithTx(tx pgx.Tx) *RawEventRepository {
	return &RawEventRepository{db: tx}
}

const rawEventColumns = `
	id, event_key, user_id, query, country, occurred_at, received_at,
	kafka_topic, kafka_partition, kafka_offset, payload, processing_status, error_message`

// RecordReceived inserts the event keyed by its source position. The
// UNIQUE constraint on (kafka_topic, kafka_partition, kafka_offset)
// absorbs at-least-once redelivery: on conflict nothing is written and
// the pre-existing row is returned with created=false.
func (r *RawEventRepository) RecordReceived(ctx context.Context, event *models.RawSearchEvent) (*models.RawSearchEvent, bool, error) {
	query := `
		INSERT INTO raw_search_events (
			event_key, user_id, query, country, occurred_at, received_at,
			kafka_topic, kafka_partition, kafka_offset, payload, processing_status, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (kafka_topic, kafka_partition, kafka_offset) DO NOTHING
		RETURNING id, received_at
	`

	err := r.db.QueryRow(ctx, query,
		event.EventKey, event.UserID, event.Query, event.Country,
		event.OccurredAt, event.ReceivedAt,
		event.KafkaTopic, event.KafkaPartition, event.KafkaOffset,
		event.Payload, event.ProcessingStatus, event.ErrorMessage,
	).Scan(&event.ID, &event.ReceivedAt)
	if err == nil {
		return event, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to record raw event: %w", err)
	}

	// Conflict path: the position was seen before. Reuse the existing row.
	existing, err := r.FindByPosition(ctx, event.Position())
	if err != nil {
		return nil, false, fmt.Errorf("failed to load raw event after position conflict: %w", err)
	}
	return existing, false, nil
}

// MarkProcessed transitions the row to PROCESSED and clears any error.
func (r *RawEventRepository) MarkProcessed(ctx context.Context, id int64) error {
	query := `
		UPDATE raw_search_events
		SET processing_status = $1, error_message = NULL
		WHERE id = $2
	`

	tag, err := r.db.Exec(ctx, query, models.StatusProcessed, id)
	if err != nil {
		return fmt.Errorf("failed to mark raw event processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkError transitions the row to ERROR with a descriptive message.
func (r *RawEventRepository) MarkError(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE raw_search_events
		SET processing_status = $1, error_message = $2
		WHERE id = $3
	`

	tag, err := r.db.Exec(ctx, query, models.StatusError, message, id)
	if err != nil {
		return fmt.Errorf("failed to mark raw event error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByPosition loads the raw event stored at the given source position.
func (r *RawEventRepository) FindByPosition(ctx context.Context, pos models.Position) (*models.RawSearchEvent, error) {
	query := `
		SELECT ` + rawEventColumns + `
		FROM raw_search_events
		WHERE kafka_topic = $1 AND kafka_partition = $2 AND kafka_offset = $3
	`

	event := &models.RawSearchEvent{}
	err := r.db.QueryRow(ctx, query, pos.Topic, pos.Partition, pos.Offset).Scan(
		&event.ID, &event.EventKey, &event.UserID, &event.Query, &event.Country,
		&event.OccurredAt, &event.ReceivedAt,
		&event.KafkaTopic, &event.KafkaPartition, &event.KafkaOffset,
		&event.Payload, &event.ProcessingStatus, &event.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find raw event by position: %w", err)
	}

	return event, nil
}
