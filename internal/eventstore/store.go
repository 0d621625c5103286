package eventstore

import (
	"context"
	"time"
)

// Store persists query lifecycle events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, queryID, eventType string, payload []byte, metadata map[string]string) error

	// GetByQueryID retrieves all events of one query, oldest first.
	GetByQueryID(ctx context.Context, queryID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Prune deletes events older than cutoff and reports how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}
