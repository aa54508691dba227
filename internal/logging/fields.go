package logging

import (
	"log/slog"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
)

// Common field names for consistent logging across the pipeline.
const (
	FieldTopic     = "topic"
	FieldPartition = "partition"
	FieldOffset    = "offset"
	FieldEventKey  = "event_key"
	FieldEventID   = "event_id"
	FieldQuery     = "query"
	FieldError     = "error"
)

// Position returns slog attributes for a source-log position.
func Position(pos models.Position) slog.Attr {
	return slog.Group("position",
		slog.String(FieldTopic, pos.Topic),
		slog.Int(FieldPartition, pos.Partition),
		slog.Int64(FieldOffset, pos.Offset),
	)
}

// EventKey returns a slog attribute for the message key.
func EventKey(key string) slog.Attr {
	return slog.String(FieldEventKey, key)
}

// Query returns a slog attribute for the search query.
func Query(q string) slog.Attr {
	return slog.String(FieldQuery, q)
}

// Err returns a slog attribute for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
