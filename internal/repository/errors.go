package repository

import (
	"context"
	"fmt"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// ErrorRepository implements ErrorStore on PostgreSQL.
type ErrorRepository struct {
	db DBTX
}

// NewErrorRepository creates a repository bound to db.
func NewErrorRepository(db DBTX) *ErrorRepository {
	return &ErrorRepository{db: db}
}

// LogError appends one failure record and returns its id.
func (r *ErrorRepository) LogError(ctx context.Context, perr *models.ProcessingError) (int64, error) {
	query := `
		INSERT INTO search_event_processing_errors (
			raw_event_id, kafka_topic, kafka_partition, kafka_offset,
			error_type, error_message, stack_trace, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		perr.RawEventID, perr.KafkaTopic, perr.KafkaPartition, perr.KafkaOffset,
		perr.ErrorType, perr.ErrorMessage, perr.StackTrace,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to log processing error: %w", err)
	}

	return id, nil
}

// IncrementRetry bumps the retry bookkeeping for one error row. The
// ingestion path never calls this; it serves an external retry driver.
func (r *ErrorRepository) IncrementRetry(ctx context.Context, id int64) error {
	query := `
		UPDATE search_event_processing_errors
		SET retry_count = retry_count + 1, last_retry_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecent returns the most recent failures, newest first.
func (r *ErrorRepository) ListRecent(ctx context.Context, limit int) ([]*models.ProcessingError, error) {
	query := `
		SELECT id, raw_event_id, kafka_topic, kafka_partition, kafka_offset,
		       error_type, error_message, stack_trace, retry_count, last_retry_at, occurred_at
		FROM search_event_processing_errors
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing errors: %w", err)
	}
	defer rows.Close()

	errs := []*models.ProcessingError{}
	for rows.Next() {
		perr := &models.ProcessingError{}
		if err := rows.Scan(
			&perr.ID, &perr.RawEventID, &perr.KafkaTopic, &perr.KafkaPartition, &perr.KafkaOffset,
			&perr.ErrorType, &perr.ErrorMessage, &perr.StackTrace,
			&perr.RetryCount, &perr.LastRetryAt, &perr.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan processing error: %w", err)
		}
		errs = append(errs, perr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return errs, nil
}
