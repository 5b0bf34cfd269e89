package settings

import (
	"context"
	"sync"
	"time"

	"fidotel/internal/platform/sentinel"
)

// MemoryStore keeps the settings document in process memory. Used for
// single-node development and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	snap  Snapshot
	saved bool
}

// NewMemory returns an empty in-memory settings store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// NewMemorySeeded returns an in-memory store pre-populated with snap at
// version 1.
func NewMemorySeeded(snap Snapshot) *MemoryStore {
	snap.Version = 1
	snap.UpdatedAt = time.Now().UTC()
	return &MemoryStore{snap: snap, saved: true}
}

func (m *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return Snapshot{}, sentinel.ErrNotFound
	}
	return m.snap, nil
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Version = m.snap.Version + 1
	snap.UpdatedAt = time.Now().UTC()
	m.snap = snap
	m.saved = true
	return snap, nil
}
