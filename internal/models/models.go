// Package models defines the domain types shared across the search
// analytics pipeline: the wire payload, the four persisted records and
// the status/error taxonomies.
package models

import "time"

// Raw event processing statuses.
const (
	StatusReceived  = "RECEIVED"
	StatusProcessed = "PROCESSED"
	StatusSkipped   = "SKIPPED"
	StatusError     = "ERROR"
)

// Outbox statuses.
const (
	OutboxStatusNew       = "NEW"
	OutboxStatusPublished = "PUBLISHED"
	OutboxStatusFailed    = "FAILED"
)

// Error classifications recorded in search_event_processing_errors.
const (
	ErrorTypeValidation     = "VALIDATION"
	ErrorTypeProcessing     = "PROCESSING_ERROR"
	ErrorTypePublishFailure = "PUBLISH_FAILURE"
)

// Position identifies a message's exact location in the source log.
// The triple is the deduplication key for at-least-once redelivery.
type Position struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Offset    int64  `json:"offset"`
}

// RawSearchEvent is one row per consumed message.
type RawSearchEvent struct {
	ID               int64      `json:"id"`
	EventKey         string     `json:"event_key"`
	UserID           *string    `json:"user_id,omitempty"`
	Query            string     `json:"query"`
	Country          *string    `json:"country,omitempty"`
	OccurredAt       *time.Time `json:"occurred_at,omitempty"`
	ReceivedAt       time.Time  `json:"received_at"`
	KafkaTopic       string     `json:"kafka_topic"`
	KafkaPartition   int        `json:"kafka_partition"`
	KafkaOffset      int64      `json:"kafka_offset"`
	Payload          []byte     `json:"payload,omitempty"`
	ProcessingStatus string     `json:"processing_status"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
}

// Position returns the source-log position of the raw event.
func (e *RawSearchEvent) Position() Position {
	return Position{Topic: e.KafkaTopic, Partition: e.KafkaPartition, Offset: e.KafkaOffset}
}

// Final reports whether the event reached a terminal processing status.
// A redelivered message whose row is already final must not be
// re-aggregated.
func (e *RawSearchEvent) Final() bool {
	switch e.ProcessingStatus {
	case StatusProcessed, StatusSkipped, StatusError:
		return true
	}
	return false
}

// DailyQueryStat is one row per (day, normalized query).
// Rows returned by range aggregation span multiple underlying rows and
// carry neither ID nor Day.
type DailyQueryStat struct {
	ID    int64     `json:"id,omitempty"`
	Day   time.Time `json:"day,omitzero"`
	Query string    `json:"query"`
	Count int64     `json:"count"`
}

// ProcessingError is one row per failure occurrence.
type ProcessingError struct {
	ID             int64      `json:"id"`
	RawEventID     *int64     `json:"raw_event_id,omitempty"`
	KafkaTopic     string     `json:"kafka_topic"`
	KafkaPartition int        `json:"kafka_partition"`
	KafkaOffset    int64      `json:"kafka_offset"`
	ErrorType      string     `json:"error_type"`
	ErrorMessage   string     `json:"error_message"`
	StackTrace     *string    `json:"stack_trace,omitempty"`
	RetryCount     int        `json:"retry_count"`
	LastRetryAt    *time.Time `json:"last_retry_at,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// OutboxEvent is one row per internally-produced event awaiting publish.
type OutboxEvent struct {
	ID            int64      `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   string     `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Payload       []byte     `json:"payload,omitempty"`
	Headers       []byte     `json:"headers,omitempty"`
	PartitionKey  string     `json:"partition_key"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
}
