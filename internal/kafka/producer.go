// Package kafka wraps the broker client: the single-worker consumer
// loop, the keyed producer and the dead-letter publisher.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/config"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
)

// Publisher sends keyed messages to a topic. Implemented by Producer;
// mocked in tests.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
	Close() error
}

// Producer publishes messages using a hash balancer, so all messages
// with the same key land on the same partition.
type Producer struct {
	writer *kafka.Writer
	log    *logging.Logger
}

// NewProducer creates a producer for the given brokers. The topic is
// chosen per message, so one producer serves the dead-letter and outbox
// streams alike.
func NewProducer(cfg config.KafkaConfig, log *logging.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		log:    log.WithComponent("kafka-producer"),
	}
}

// Publish sends one message and waits for broker acknowledgment.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes and releases the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
