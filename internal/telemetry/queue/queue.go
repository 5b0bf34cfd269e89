// Package queue provides the bounded intake buffer between event producers
// on the authentication path and the batch writer.
package queue

import (
	"sync"

	"fidotel/internal/telemetry"
)

// Ring is a bounded, thread-safe buffer for telemetry events. Producers push
// with TryEnqueue, which never blocks; when the buffer is full the incoming
// event is dropped and counted. The single consumer drains in arrival order
// with DequeueBatch.
type Ring struct {
	mu       sync.Mutex
	events   []telemetry.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64

	// wake carries at most one pending notification for the consumer.
	wake chan struct{}
}

// NewRing creates a ring buffer with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 8192 // default
	}
	return &Ring{
		events:   make([]telemetry.Event, capacity),
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// TryEnqueue attempts to add an event to the buffer. Returns false if the
// buffer is full; the event is dropped and the drop counter incremented.
// Dropping the incoming event keeps the call constant-time for producers.
func (b *Ring) TryEnqueue(event telemetry.Event) bool {
	b.mu.Lock()
	if b.count >= b.capacity {
		b.dropped++
		b.mu.Unlock()
		return false
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return true
}

// DequeueBatch removes up to n events from the buffer, preserving arrival
// order. Returns nil when the buffer is empty.
func (b *Ring) DequeueBatch(n int) []telemetry.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]telemetry.Event, n)
	for i := 0; i < n; i++ {
		result[i] = b.events[b.tail]
		b.events[b.tail] = telemetry.Event{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n

	return result
}

// Wake returns the channel the consumer selects on; it receives at most one
// pending notification regardless of how many events were enqueued.
func (b *Ring) Wake() <-chan struct{} {
	return b.wake
}

// Len returns the current number of events in the buffer.
func (b *Ring) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of events rejected because the buffer
// was full.
func (b *Ring) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
