// Package repository implements the four durable stores of the search
// analytics pipeline on PostgreSQL: the raw event log, the daily
// aggregates, the processing error log and the transactional outbox.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// Sentinel errors returned by repositories.
var (
	ErrNotFound = errors.New("row not found")
)

// DBTX is the subset of pgx operations the repositories need. It is
// satisfied by *pgxpool.Pool and by pgx.Tx, so the same repository code
// runs inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RawEventStore records every consumed event exactly once.
type RawEventStore interface {
	// RecordReceived persists a raw event at its source position with
	// status RECEIVED. A redelivered position is a no-op: the existing
	// row is returned with created=false.
	RecordReceived(ctx context.Context, event *models.RawSearchEvent) (*models.RawSearchEvent, bool, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkError(ctx context.Context, id int64, message string) error
	FindByPosition(ctx context.Context, pos models.Position) (*models.RawSearchEvent, error)
}

// StatStore maintains upsert-based counters keyed by (day, query).
type StatStore interface {
	IncrementCount(ctx context.Context, day time.Time, query string) (*models.DailyQueryStat, error)
	TopForDay(ctx context.Context, day time.Time, limit int) ([]*models.DailyQueryStat, error)
	TopInRange(ctx context.Context, from, to time.Time, limit int) ([]*models.DailyQueryStat, error)
	FindByDayAndQuery(ctx context.Context, day time.Time, query string) (*models.DailyQueryStat, error)
}

// ErrorStore is the append-only record of processing failures.
type ErrorStore interface {
	LogError(ctx context.Context, perr *models.ProcessingError) (int64, error)
	IncrementRetry(ctx context.Context, id int64) error
	ListRecent(ctx context.Context, limit int) ([]*models.ProcessingError, error)
}

// OutboxStore stages internally-produced events for asynchronous publish.
type OutboxStore interface {
	Save(ctx context.Context, event *models.OutboxEvent) (int64, error)
	FindNextNew(ctx context.Context, limit int) ([]*models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	ResetFailed(ctx context.Context, ids []int64) (int64, error)
}
