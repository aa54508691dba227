package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations.
func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("search_analytics_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := NewPool(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	return nil
}

func rawEventAt(offset int64) *models.RawSearchEvent {
	occurredAt := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	return &models.RawSearchEvent{
		EventKey:         "user-1",
		Query:            "kafka",
		OccurredAt:       &occurredAt,
		ReceivedAt:       time.Now().UTC(),
		KafkaTopic:       "search-events",
		KafkaPartition:   0,
		KafkaOffset:      offset,
		Payload:          []byte(`{"query":"kafka"}`),
		ProcessingStatus: models.StatusReceived,
	}
}

// ============================================================================
// Raw event tests
// ============================================================================

func TestRecordReceived_DeduplicatesByPosition(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewRawEventRepository(pool)
	ctx := context.Background()

	first, created, err := repo.RecordReceived(ctx, rawEventAt(100))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	// Same position again: the original row comes back untouched.
	second, created, err := repo.RecordReceived(ctx, rawEventAt(100))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A different offset is a new row.
	third, created, err := repo.RecordReceived(ctx, rawEventAt(101))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestRecordReceived_DedupSurvivesStatusChange(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewRawEventRepository(pool)
	ctx := context.Background()

	first, _, err := repo.RecordReceived(ctx, rawEventAt(200))
	require.NoError(t, err)
	require.NoError(t, repo.MarkProcessed(ctx, first.ID))

	redelivered, created, err := repo.RecordReceived(ctx, rawEventAt(200))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.StatusProcessed, redelivered.ProcessingStatus,
		"redelivery must expose the stored status so the caller can skip")
	assert.True(t, redelivered.Final())
}

func TestMarkProcessedAndMarkError(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewRawEventRepository(pool)
	ctx := context.Background()

	event, _, err := repo.RecordReceived(ctx, rawEventAt(300))
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessed(ctx, event.ID))
	stored, err := repo.FindByPosition(ctx, event.Position())
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, stored.ProcessingStatus)

	require.NoError(t, repo.MarkError(ctx, event.ID, "aggregation failed"))
	stored, err = repo.FindByPosition(ctx, event.Position())
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, stored.ProcessingStatus)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "aggregation failed", *stored.ErrorMessage)

	assert.ErrorIs(t, repo.MarkProcessed(ctx, 999999), ErrNotFound)
}

func TestFindByPosition_NotFound(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewRawEventRepository(pool)

	_, err := repo.FindByPosition(context.Background(),
		models.Position{Topic: "search-events", Partition: 9, Offset: 9})
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// Daily stat tests
// ============================================================================

func TestIncrementCount_ConcurrentIncrementsAreLossless(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewStatRepository(pool)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementCount(ctx, day, "kafka"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent increment failed: %v", err)
	}

	stat, err := repo.FindByDayAndQuery(ctx, day, "kafka")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), stat.Count, "every increment must land exactly once")
}

func TestTopForDay_OrdersByCountThenQuery(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewStatRepository(pool)
	ctx := context.Background()
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	seed := map[string]int{"kafka": 3, "postgres": 5, "redis": 3, "go": 1}
	for query, n := range seed {
		for i := 0; i < n; i++ {
			_, err := repo.IncrementCount(ctx, day, query)
			require.NoError(t, err)
		}
	}

	rows, err := repo.TopForDay(ctx, day, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "postgres", rows[0].Query)
	assert.Equal(t, int64(5), rows[0].Count)
	// Ties break alphabetically.
	assert.Equal(t, "kafka", rows[1].Query)
	assert.Equal(t, "redis", rows[2].Query)
}

func TestTopInRange_SumsAcrossDays(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewStatRepository(pool)
	ctx := context.Background()

	day1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := repo.IncrementCount(ctx, day1, "kafka")
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := repo.IncrementCount(ctx, day2, "kafka")
		require.NoError(t, err)
	}
	_, err := repo.IncrementCount(ctx, outside, "kafka")
	require.NoError(t, err)

	rows, err := repo.TopInRange(ctx, day1, day2, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kafka", rows[0].Query)
	assert.Equal(t, int64(5), rows[0].Count, "counts summed per query, range bounds inclusive")
}

func TestFindByDayAndQuery_NotFound(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewStatRepository(pool)

	_, err := repo.FindByDayAndQuery(context.Background(),
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// Processing error tests
// ============================================================================

func TestErrorLogLifecycle(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewErrorRepository(pool)
	ctx := context.Background()

	trace := "goroutine 1 [running]:"
	id, err := repo.LogError(ctx, &models.ProcessingError{
		KafkaTopic:     "search-events",
		KafkaPartition: 1,
		KafkaOffset:    55,
		ErrorType:      models.ErrorTypeProcessing,
		ErrorMessage:   "increment daily stats: deadlock",
		StackTrace:     &trace,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	require.NoError(t, repo.IncrementRetry(ctx, id))
	require.NoError(t, repo.IncrementRetry(ctx, id))

	entries, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, 2, entry.RetryCount)
	assert.NotNil(t, entry.LastRetryAt)
	require.NotNil(t, entry.StackTrace)
	assert.Equal(t, trace, *entry.StackTrace)

	assert.ErrorIs(t, repo.IncrementRetry(ctx, 999999), ErrNotFound)
}

// ============================================================================
// Outbox tests
// ============================================================================

func stageOutboxEvent(t *testing.T, repo *OutboxRepository, key string) int64 {
	t.Helper()
	id, err := repo.Save(context.Background(), &models.OutboxEvent{
		AggregateType: "DailyQueryStat",
		AggregateID:   "1",
		EventType:     "SEARCH_STATS_UPDATED",
		Payload:       []byte(`{"query":"kafka","count":1}`),
		PartitionKey:  key,
	})
	require.NoError(t, err)
	return id
}

func TestOutboxLifecycle(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewOutboxRepository(pool)
	ctx := context.Background()

	first := stageOutboxEvent(t, repo, "kafka")
	second := stageOutboxEvent(t, repo, "postgres")
	third := stageOutboxEvent(t, repo, "redis")

	// Oldest rows drain first.
	pending, err := repo.FindNextNew(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, first, pending[0].ID)
	assert.Equal(t, models.OutboxStatusNew, pending[0].Status)

	require.NoError(t, repo.MarkPublished(ctx, first))
	require.NoError(t, repo.MarkFailed(ctx, second, "broker unreachable"))

	// PUBLISHED and FAILED rows no longer show up.
	pending, err = repo.FindNextNew(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, third, pending[0].ID)

	// Manual reset re-queues the failed row.
	reset, err := repo.ResetFailed(ctx, []int64{second})
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	pending, err = repo.FindNextNew(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, second, pending[0].ID, "reset row rejoins the queue at its original place")
}

func TestOutboxResetFailed_AllWhenNoIDs(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewOutboxRepository(pool)
	ctx := context.Background()

	first := stageOutboxEvent(t, repo, "a")
	second := stageOutboxEvent(t, repo, "b")
	require.NoError(t, repo.MarkFailed(ctx, first, "boom"))
	require.NoError(t, repo.MarkFailed(ctx, second, "boom"))

	reset, err := repo.ResetFailed(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reset)
}

func TestOutboxFindNextNew_RespectsLimit(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewOutboxRepository(pool)

	for i := 0; i < 5; i++ {
		stageOutboxEvent(t, repo, "kafka")
	}

	pending, err := repo.FindNextNew(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestOutboxMarkPublished_NotFound(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewOutboxRepository(pool)

	err := repo.MarkPublished(context.Background(), 999999)
	assert.True(t, errors.Is(err, ErrNotFound))
}
