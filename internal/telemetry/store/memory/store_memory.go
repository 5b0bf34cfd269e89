// Package memory provides an in-memory event store used as a test double and
// for single-node development without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fidotel/internal/telemetry"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []telemetry.Event
	seen   map[uuid.UUID]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{seen: make(map[uuid.UUID]struct{})}
}

// AppendBatch stores the events, skipping IDs already present so retried
// batches stay idempotent.
func (s *InMemoryStore) AppendBatch(_ context.Context, events []telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range events {
		if _, ok := s.seen[event.ID]; ok {
			continue
		}
		s.seen[event.ID] = struct{}{}
		s.events = append(s.events, event)
	}
	return nil
}

// DeleteOlderThan removes at most limit events older than cutoff.
func (s *InMemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.events[:0]
	for _, event := range s.events {
		if event.OccurredAt.Before(cutoff) && (limit <= 0 || deleted < int64(limit)) {
			delete(s.seen, event.ID)
			deleted++
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a copy of everything stored, in append order.
func (s *InMemoryStore) Events() []telemetry.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]telemetry.Event{}, s.events...)
}

// Len returns the number of stored events.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear removes everything; use between tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.seen = make(map[uuid.UUID]struct{})
}
