// Package stats aggregates search events into daily per-query counters
// and serves the read-only reporting queries.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/database"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/metrics"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/repository"
)

// EventTypeStatsUpdated labels the derived event staged whenever a
// counter changes.
const EventTypeStatsUpdated = "SEARCH_STATS_UPDATED"

// DefaultLimit caps reporting queries when the caller passes no limit.
const DefaultLimit = 10

// Service owns the daily aggregate store and the outbox staging of
// stats-updated events.
type Service struct {
	pool   *pgxpool.Pool
	stats  *repository.StatRepository
	outbox *repository.OutboxRepository
	log    *logging.Logger
}

// NewService creates the aggregation service.
func NewService(pool *pgxpool.Pool, stats *repository.StatRepository, outbox *repository.OutboxRepository, log *logging.Logger) *Service {
	return &Service{
		pool:   pool,
		stats:  stats,
		outbox: outbox,
		log:    log.WithComponent("stats"),
	}
}

// NormalizeQuery canonicalizes query text before it becomes an
// aggregation key: surrounding whitespace is dropped, inner runs of
// whitespace collapse to one space, and the query is lower-cased so
// "Java" and "java " count as one query.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// DayUTC truncates a timestamp to its UTC calendar day.
func DayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IncrementFromEvent bumps the (day, query) counter for the event and
// stages a stats-updated outbox row. Both writes commit in one
// transaction: either the counter moved and the derived event is staged,
// or neither happened.
func (s *Service) IncrementFromEvent(ctx context.Context, payload *models.SearchEventPayload) (*models.DailyQueryStat, error) {
	day := DayUTC(*payload.OccurredAt)
	query := NormalizeQuery(payload.Query)

	writeCtx, cancel := database.WriteContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.StoreWriteDuration.WithLabelValues("daily_query_stats").Observe(time.Since(start).Seconds())
	}()

	tx, err := s.pool.Begin(writeCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback(writeCtx)

	stat, err := s.stats.WithTx(tx).IncrementCount(writeCtx, day, query)
	if err != nil {
		return nil, err
	}

	outboxEvent, err := statsUpdatedEvent(stat)
	if err != nil {
		return nil, err
	}
	if _, err := s.outbox.WithTx(tx).Save(writeCtx, outboxEvent); err != nil {
		return nil, err
	}

	if err := tx.Commit(writeCtx); err != nil {
		return nil, fmt.Errorf("failed to commit stats transaction: %w", err)
	}

	s.log.Debug("incremented daily query stat",
		logging.Query(stat.Query), slog.Int64("count", stat.Count))

	return stat, nil
}

// TopForDay returns the most frequent queries for one UTC day.
func (s *Service) TopForDay(ctx context.Context, day time.Time, limit int) ([]*models.DailyQueryStat, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryCtx, cancel := database.QueryContext(ctx)
	defer cancel()

	return s.stats.TopForDay(queryCtx, DayUTC(day), limit)
}

// TopInRange returns the most frequent queries across an inclusive day
// range, counts summed per query.
func (s *Service) TopInRange(ctx context.Context, from, to time.Time, limit int) ([]*models.DailyQueryStat, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryCtx, cancel := database.QueryContext(ctx)
	defer cancel()

	return s.stats.TopInRange(queryCtx, DayUTC(from), DayUTC(to), limit)
}

func statsUpdatedEvent(stat *models.DailyQueryStat) (*models.OutboxEvent, error) {
	payload, err := json.Marshal(map[string]any{
		"day":   stat.Day.Format("2006-01-02"),
		"query": stat.Query,
		"count": stat.Count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build stats-updated payload: %w", err)
	}

	return &models.OutboxEvent{
		AggregateType: "DailyQueryStat",
		AggregateID:   strconv.FormatInt(stat.ID, 10),
		EventType:     EventTypeStatsUpdated,
		Payload:       payload,
		PartitionKey:  stat.Query,
		Status:        models.OutboxStatusNew,
	}, nil
}
