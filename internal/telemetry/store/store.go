// Package store defines the persistence boundary of the telemetry pipeline.
package store

import (
	"context"
	"time"

	"fidotel/internal/telemetry"
)

// Store is the minimal capability the pipeline needs from the persistence
// engine: append a batch in one operation and delete expired entries in
// bounded chunks. Implementations must tolerate concurrent append and delete.
type Store interface {
	// AppendBatch persists all events in one operation. Implementations must
	// be idempotent for re-appends of the same events so a retried batch
	// never duplicates rows.
	AppendBatch(ctx context.Context, events []telemetry.Event) error

	// DeleteOlderThan removes at most limit events with OccurredAt before
	// cutoff, returning the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
