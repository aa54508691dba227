package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// OutboxRepository implements OutboxStore on PostgreSQL.
type OutboxRepository struct {
	db DBTX
}

// NewOutboxRepository creates a repository bound to db.
func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
// Staging an outbox event in the same transaction as the business write
// that produced it is what keeps database state and broker output
// consistent.
func (r *OutboxRepository) WithTx(tx pgx.Tx) *OutboxRepository {
	return &OutboxRepository{db: tx}
}

// Save inserts a NEW outbox row and returns its id.
func (r *OutboxRepository) Save(ctx context.Context, event *models.OutboxEvent) (int64, error) {
	query := `
		INSERT INTO search_event_outbox (
			aggregate_type, aggregate_id, event_type, payload, headers,
			partition_key, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`

	status := event.Status
	if status == "" {
		status = models.OutboxStatusNew
	}

	var id int64
	err := r.db.QueryRow(ctx, query,
		event.AggregateType, event.AggregateID, event.EventType,
		event.Payload, event.Headers, event.PartitionKey, status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save outbox event: %w", err)
	}

	return id, nil
}

// FindNextNew returns up to limit NEW rows, oldest first, so staleness
// of staged events stays bounded.
func (r *OutboxRepository) FindNextNew(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, headers,
		       partition_key, status, created_at, published_at, last_error
		FROM search_event_outbox
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, models.OutboxStatusNew, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query new outbox events: %w", err)
	}
	defer rows.Close()

	events := []*models.OutboxEvent{}
	for rows.Next() {
		event := &models.OutboxEvent{}
		if err := rows.Scan(
			&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType,
			&event.Payload, &event.Headers, &event.PartitionKey, &event.Status,
			&event.CreatedAt, &event.PublishedAt, &event.LastError,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

// MarkPublished finalizes a row as PUBLISHED and clears any prior error.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	query := `
		UPDATE search_event_outbox
		SET status = $1, published_at = NOW(), last_error = NULL
		WHERE id = $2
	`

	tag, err := r.db.Exec(ctx, query, models.OutboxStatusPublished, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed parks a row as FAILED. FAILED rows are not re-selected by
// FindNextNew; an operator resets them via ResetFailed.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE search_event_outbox
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	tag, err := r.db.Exec(ctx, query, models.OutboxStatusFailed, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetFailed moves FAILED rows back to NEW so the next drain pass picks
// them up again. With no ids it resets every FAILED row. Returns the
// number of rows reset.
func (r *OutboxRepository) ResetFailed(ctx context.Context, ids []int64) (int64, error) {
	var (
		query string
		args  []any
	)
	if len(ids) == 0 {
		query = `
			UPDATE search_event_outbox
			SET status = $1, last_error = NULL
			WHERE status = $2
		`
		args = []any{models.OutboxStatusNew, models.OutboxStatusFailed}
	} else {
		query = `
			UPDATE search_event_outbox
			SET status = $1, last_error = NULL
			WHERE status = $2 AND id = ANY($3)
		`
		args = []any{models.OutboxStatusNew, models.OutboxStatusFailed, ids}
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed outbox events: %w", err)
	}

	return tag.RowsAffected(), nil
}
