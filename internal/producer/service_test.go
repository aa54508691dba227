package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

type capturedMessage struct {
	topic string
	key   string
	value []byte
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
	messages    []capturedMessage
}

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	m.messages = append(m.messages, capturedMessage{topic: topic, key: key, value: value})
	if m.publishFunc != nil {
		return m.publishFunc(ctx, topic, key, value, headers)
	}
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func newTestService(pub *mockPublisher, now time.Time) *Service {
	svc := NewService(pub, "search-events", logging.Default())
	svc.now = func() time.Time { return now }
	return svc
}

func TestSend_EnrichesMissingFields(t *testing.T) {
	pub := &mockPublisher{}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(pub, now)

	sent, err := svc.Send(context.Background(), &models.SearchEventPayload{
		UserID: "user-1",
		Query:  "kafka",
	})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(sent.EventID)
	assert.NoError(t, parseErr, "assigned event id must be a UUID")
	require.NotNil(t, sent.OccurredAt)
	assert.True(t, sent.OccurredAt.Equal(now))
	require.NotNil(t, sent.SentAt)
	assert.True(t, sent.SentAt.Equal(now))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "search-events", pub.messages[0].topic)
	assert.Equal(t, "user-1", pub.messages[0].key)

	var wire models.SearchEventPayload
	require.NoError(t, json.Unmarshal(pub.messages[0].value, &wire))
	assert.Equal(t, sent.EventID, wire.EventID)
	assert.Equal(t, "kafka", wire.Query)
}

func TestSend_PreservesCallerFields(t *testing.T) {
	pub := &mockPublisher{}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	occurredAt := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	svc := newTestService(pub, now)

	sent, err := svc.Send(context.Background(), &models.SearchEventPayload{
		EventID:    "evt-fixed",
		SessionID:  "sess-1",
		Query:      "postgres",
		OccurredAt: &occurredAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-fixed", sent.EventID)
	assert.True(t, sent.OccurredAt.Equal(occurredAt), "caller timestamp kept")
	assert.Equal(t, "sess-1", pub.messages[0].key, "session id keys the partition when no user id")
}

func TestSend_DoesNotMutateInput(t *testing.T) {
	pub := &mockPublisher{}
	svc := newTestService(pub, time.Now())
	in := &models.SearchEventPayload{Query: "kafka"}

	_, err := svc.Send(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, in.EventID, "input payload left untouched")
	assert.Nil(t, in.OccurredAt)
}

func TestSend_PublishFailure(t *testing.T) {
	pub := &mockPublisher{
		publishFunc: func(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
			return errors.New("broker unreachable")
		},
	}
	svc := newTestService(pub, time.Now())

	_, err := svc.Send(context.Background(), &models.SearchEventPayload{Query: "kafka"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish search event")
}
