// Package database provides shared helpers for Postgres access.
package database

import (
	"context"
	"time"
)

// Timeout ceilings for store access. Reads serve the HTTP surface and
// stay short; writes sit on the ingestion path, where a hung statement
// would stall the whole partition, so they get a harder bound.
const (
	QueryTimeout = 5 * time.Second
	WriteTimeout = 10 * time.Second
)

// QueryContext bounds a read query with QueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, QueryTimeout)
}

// WriteContext bounds a durable write with WriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, WriteTimeout)
}
