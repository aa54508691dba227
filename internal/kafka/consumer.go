package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/config"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// AckFunc advances the consumer's committed offset past the delivered
// message. It must be called only after the message's side effects are
// durable (success or captured failure).
type AckFunc func(ctx context.Context) error

// Handler processes one delivered message. Implementations own the ack
// decision; the consumer loop never commits on their behalf.
type Handler interface {
	Handle(ctx context.Context, key string, value []byte, pos models.Position, ack AckFunc) error
}

// Consumer drives a Kafka reader with manual offset commits.
//
// Exactly one goroutine runs the loop: consumption concurrency is fixed
// at one execution unit per process instance, so no two events are ever
// in flight at once within a process. Across processes, the consumer
// group protocol guarantees at most one owner per partition.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	backoff time.Duration
	log     *logging.Logger
}

// NewConsumer creates a consumer for the configured search-events topic.
func NewConsumer(cfg config.KafkaConfig, fetchBackoff time.Duration, handler Handler, log *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.ConsumerGroup,
		Topic:    cfg.SearchEvents,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		// CommitInterval zero: CommitMessages is synchronous, the ack
		// really is durable when it returns.
	})

	if fetchBackoff <= 0 {
		fetchBackoff = time.Second
	}

	return &Consumer{
		reader:  reader,
		handler: handler,
		backoff: fetchBackoff,
		log:     log.WithComponent("kafka-consumer"),
	}
}

// Run fetches and processes messages until ctx is canceled. Each message
// is handled to completion before the next fetch, which preserves
// per-partition order end-to-end. The handler runs on a detached
// context so an in-flight message finishes its durable writes and its
// ack even while shutdown is in progress.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Error("failed to close kafka reader", logging.Err(err))
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.log.Info("consumer loop stopping")
				return nil
			}
			c.log.Error("failed to fetch message", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		pos := models.Position{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}
		ack := func(ackCtx context.Context) error {
			return c.reader.CommitMessages(ackCtx, msg)
		}

		handleCtx := context.WithoutCancel(ctx)
		if err := c.handler.Handle(handleCtx, string(msg.Key), msg.Value, pos, ack); err != nil {
			// The handler swallows processing failures itself; an error
			// here means the ack could not be committed. The position
			// will be redelivered and deduplicated by the raw store.
			c.log.Error("handler did not acknowledge message",
				logging.Position(pos), logging.Err(err))
		}

		select {
		case <-ctx.Done():
			c.log.Info("consumer loop stopping", slog.Int64("last_offset", msg.Offset))
			return nil
		default:
		}
	}
}
