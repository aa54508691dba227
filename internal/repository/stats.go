package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// StatRepository implements StatStore on PostgreSQL.
type StatRepository struct {
	db DBTX
}

// NewStatRepository creates a repository bound to db.
func NewStatRepository(db DBTX) *StatRepository {
	return &StatRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *StatRepository) WithTx(tx pgx.Tx) *StatRepository {
	return &StatRepository{db: tx}
}

// IncrementCount inserts a (day, query) row with count 1 or bumps the
// existing counter by one. The single upsert statement is atomic at the
// storage layer, so concurrent increments for the same key never lose
// updates.
func (r *StatRepository) IncrementCount(ctx context.Context, day time.Time, query string) (*models.DailyQueryStat, error) {
	sql := `
		INSERT INTO daily_query_stats (day, query, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (day, query)
		DO UPDATE SET count = daily_query_stats.count + 1
		RETURNING id, day, query, count
	`

	stat := &models.DailyQueryStat{}
	err := r.db.QueryRow(ctx, sql, day, query).Scan(&stat.ID, &stat.Day, &stat.Query, &stat.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to increment daily query stat: %w", err)
	}

	return stat, nil
}

// TopForDay returns up to limit stats for the day, ordered by count
// descending with query ascending as the deterministic tie-break.
func (r *StatRepository) TopForDay(ctx context.Context, day time.Time, limit int) ([]*models.DailyQueryStat, error) {
	sql := `
		SELECT id, day, query, count
		FROM daily_query_stats
		WHERE day = $1
		ORDER BY count DESC, query ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, sql, day, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top stats for day: %w", err)
	}
	defer rows.Close()

	return scanStats(rows, false)
}

// TopInRange sums counts per query across the inclusive day range.
// Aggregated rows span multiple underlying rows, so id and day are
// left unset.
func (r *StatRepository) TopInRange(ctx context.Context, from, to time.Time, limit int) ([]*models.DailyQueryStat, error) {
	sql := `
		SELECT query, SUM(count) AS count
		FROM daily_query_stats
		WHERE day BETWEEN $1 AND $2
		GROUP BY query
		ORDER BY SUM(count) DESC, query ASC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, sql, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top stats in range: %w", err)
	}
	defer rows.Close()

	return scanStats(rows, true)
}

// FindByDayAndQuery loads a single counter row, if it exists.
func (r *StatRepository) FindByDayAndQuery(ctx context.Context, day time.Time, query string) (*models.DailyQueryStat, error) {
	sql := `
		SELECT id, day, query, count
		FROM daily_query_stats
		WHERE day = $1 AND query = $2
	`

	stat := &models.DailyQueryStat{}
	err := r.db.QueryRow(ctx, sql, day, query).Scan(&stat.ID, &stat.Day, &stat.Query, &stat.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find daily query stat: %w", err)
	}

	return stat, nil
}

func scanStats(rows pgx.Rows, aggregated bool) ([]*models.DailyQueryStat, error) {
	stats := []*models.DailyQueryStat{}
	for rows.Next() {
		stat := &models.DailyQueryStat{}
		var err error
		if aggregated {
			err = rows.Scan(&stat.Query, &stat.Count)
		} else {
			err = rows.Scan(&stat.ID, &stat.Day, &stat.Query, &stat.Count)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily query stat: %w", err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return stats, nil
}
