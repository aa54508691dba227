package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

type stubPublisher struct {
	publishFunc func(ctx context.Context, topic, key string, value []byte, headers map[string]string) error

	topics []string
	keys   []string
	values [][]byte
}

func (s *stubPublisher) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	s.topics = append(s.topics, topic)
	s.keys = append(s.keys, key)
	s.values = append(s.values, value)
	if s.publishFunc != nil {
		return s.publishFunc(ctx, topic, key, value, headers)
	}
	return nil
}

func (s *stubPublisher) Close() error { return nil }

func TestDeadLetterPublish_WrapsEventWithErrorContext(t *testing.T) {
	stub := &stubPublisher{}
	dlt := NewDeadLetterPublisher(stub, "search-events-dlt", logging.Default())
	pos := models.Position{Topic: "search-events", Partition: 2, Offset: 314}

	dlt.Publish(context.Background(), "user-1", []byte(`{"query":"kafka"}`), pos,
		models.ErrorTypeProcessing, errors.New("increment daily stats: deadlock"))

	require.Len(t, stub.values, 1)
	assert.Equal(t, "search-events-dlt", stub.topics[0])
	assert.Equal(t, "user-1", stub.keys[0], "original key preserved for partition affinity")

	var envelope DeadLetterEnvelope
	require.NoError(t, json.Unmarshal(stub.values[0], &envelope))
	assert.Equal(t, "user-1", envelope.OriginalKey)
	assert.Equal(t, "search-events", envelope.OriginalTopic)
	assert.Equal(t, 2, envelope.OriginalPartition)
	assert.Equal(t, int64(314), envelope.OriginalOffset)
	assert.Equal(t, models.ErrorTypeProcessing, envelope.ErrorType)
	assert.Contains(t, envelope.ErrorMessage, "deadlock")
	assert.JSONEq(t, `{"query":"kafka"}`, string(envelope.Payload))
}

func TestDeadLetterPublish_OmitsUndecodablePayload(t *testing.T) {
	stub := &stubPublisher{}
	dlt := NewDeadLetterPublisher(stub, "search-events-dlt", logging.Default())

	dlt.Publish(context.Background(), "k", []byte("not json{"), models.Position{Topic: "search-events"},
		models.ErrorTypeProcessing, errors.New("boom"))

	require.Len(t, stub.values, 1)
	var envelope DeadLetterEnvelope
	require.NoError(t, json.Unmarshal(stub.values[0], &envelope))
	assert.Empty(t, envelope.Payload)
}

func TestDeadLetterPublish_SwallowsBrokerFailure(t *testing.T) {
	stub := &stubPublisher{
		publishFunc: func(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
			return errors.New("broker unreachable")
		},
	}
	dlt := NewDeadLetterPublisher(stub, "search-events-dlt", logging.Default())

	// Must not panic or propagate; the caller is already on a failure path.
	dlt.Publish(context.Background(), "k", []byte(`{}`), models.Position{Topic: "search-events"},
		models.ErrorTypeProcessing, errors.New("boom"))
}
