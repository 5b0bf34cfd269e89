// Package postgres persists telemetry events in PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fidotel/internal/telemetry"
)

var tracer = otel.Tracer("fidotel/store/postgres")

// Store implements store.Store on a pgx connection pool. Appends and
// retention deletes touch the same table but never the same rows, so the two
// background tasks need no coordination beyond the database itself.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL event store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the events table and its retention index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS passkey_events (
			id          UUID PRIMARY KEY,
			kind        TEXT NOT NULL,
			subject_id  TEXT NOT NULL,
			outcome     BOOLEAN NOT NULL,
			duration_ms BIGINT NOT NULL,
			attributes  JSONB,
			occurred_at TIMESTAMPTZ NOT NULL,
			node_id     TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure passkey_events schema: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS passkey_events_occurred_at_idx ON passkey_events (occurred_at)`)
	if err != nil {
		return fmt.Errorf("ensure passkey_events index: %w", err)
	}
	return nil
}

// AppendBatch inserts all events in a single multi-row statement with
// ON CONFLICT DO NOTHING so a retried batch never duplicates rows.
func (s *Store) AppendBatch(ctx context.Context, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "passkey_events.append_batch",
		trace.WithAttributes(attribute.Int("batch.size", len(events))))
	defer span.End()

	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*8)
	for i, event := range events {
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d::jsonb,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))

		var attrs any
		if len(event.Attributes) > 0 {
			encoded, err := json.Marshal(event.Attributes)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("encode event attributes: %w", err)
			}
			attrs = string(encoded)
		}

		args = append(args,
			event.ID,
			string(event.Kind),
			event.SubjectID,
			event.Outcome,
			event.DurationMillis,
			attrs,
			event.OccurredAt,
			event.NodeID,
		)
	}

	sql := "INSERT INTO passkey_events (id, kind, subject_id, outcome, duration_ms, attributes, occurred_at, node_id) VALUES " +
		strings.Join(placeholders, ",") +
		" ON CONFLICT (id) DO NOTHING"

	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("append event batch: %w", err)
	}
	return nil
}

// DeleteOlderThan removes at most limit expired events. The ctid subquery
// bounds the pass so a large backlog never turns into one long-running
// delete.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	ctx, span := tracer.Start(ctx, "passkey_events.delete_older_than",
		trace.WithAttributes(attribute.Int("chunk.limit", limit)))
	defer span.End()

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM passkey_events
		WHERE ctid IN (
			SELECT ctid FROM passkey_events
			WHERE occurred_at < $1
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("delete expired events: %w", err)
	}
	return tag.RowsAffected(), nil
}
