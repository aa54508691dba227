// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_analytics_events_consumed_total",
			Help: "Total number of events consumed, by outcome",
		},
		[]string{"outcome"},
	)

	DuplicateDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_analytics_duplicate_deliveries_total",
			Help: "Redelivered positions skipped by the deduplication key",
		},
	)

	ProcessingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_analytics_processing_errors_total",
			Help: "Total number of recorded processing errors, by kind",
		},
		[]string{"kind"},
	)

	// Dead-letter metrics
	DeadLetterPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_analytics_dead_letter_published_total",
			Help: "Events forwarded to the dead-letter topic",
		},
	)

	DeadLetterFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_analytics_dead_letter_failures_total",
			Help: "Dead-letter publish attempts that failed",
		},
	)

	// Outbox metrics
	OutboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_analytics_outbox_published_total",
			Help: "Outbox events published to the broker",
		},
	)

	OutboxFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_analytics_outbox_failed_total",
			Help: "Outbox events marked FAILED after a publish error",
		},
	)

	OutboxBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_analytics_outbox_backlog",
			Help: "NEW outbox rows seen by the most recent drain pass",
		},
	)

	// Storage metrics
	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_analytics_store_write_duration_seconds",
			Help:    "Duration of durable store writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)
)

// Outcome label values for EventsConsumed.
const (
	OutcomeProcessed = "processed"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)
