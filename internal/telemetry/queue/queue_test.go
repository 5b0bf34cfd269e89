package queue

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fidotel/internal/telemetry"
)

func event(subject string) telemetry.Event {
	return telemetry.NewNudgeShown(subject, "test")
}

func TestTryEnqueueDequeuePreservesOrder(t *testing.T) {
	ring := NewRing(8)

	for i := 0; i < 5; i++ {
		require.True(t, ring.TryEnqueue(event(strconv.Itoa(i))))
	}

	batch := ring.DequeueBatch(5)
	require.Len(t, batch, 5)
	for i, got := range batch {
		assert.Equal(t, strconv.Itoa(i), got.SubjectID)
	}
	assert.Equal(t, 0, ring.Len())
}

func TestFullQueueDropsIncomingEventOnly(t *testing.T) {
	const capacity = 4
	ring := NewRing(capacity)

	for i := 0; i < capacity; i++ {
		require.True(t, ring.TryEnqueue(event(strconv.Itoa(i))))
	}

	// The overflowing event is rejected; everything already queued survives.
	assert.False(t, ring.TryEnqueue(event("overflow")))
	assert.Equal(t, int64(1), ring.Dropped())
	assert.Equal(t, capacity, ring.Len())

	batch := ring.DequeueBatch(capacity)
	require.Len(t, batch, capacity)
	for i, got := range batch {
		assert.Equal(t, strconv.Itoa(i), got.SubjectID)
	}
}

func TestDequeueBatchBounds(t *testing.T) {
	ring := NewRing(8)
	for i := 0; i < 3; i++ {
		require.True(t, ring.TryEnqueue(event(strconv.Itoa(i))))
	}

	assert.Nil(t, ring.DequeueBatch(0))
	assert.Len(t, ring.DequeueBatch(2), 2)
	assert.Len(t, ring.DequeueBatch(10), 1)
	assert.Nil(t, ring.DequeueBatch(10))
}

func TestWrapAround(t *testing.T) {
	ring := NewRing(3)

	for round := 0; round < 5; round++ {
		require.True(t, ring.TryEnqueue(event("a")))
		require.True(t, ring.TryEnqueue(event("b")))
		batch := ring.DequeueBatch(2)
		require.Len(t, batch, 2)
		assert.Equal(t, "a", batch[0].SubjectID)
		assert.Equal(t, "b", batch[1].SubjectID)
	}
}

func TestWakeCoalescesNotifications(t *testing.T) {
	ring := NewRing(8)

	for i := 0; i < 5; i++ {
		require.True(t, ring.TryEnqueue(event(strconv.Itoa(i))))
	}

	select {
	case <-ring.Wake():
	default:
		t.Fatal("expected a pending wake notification")
	}
	select {
	case <-ring.Wake():
		t.Fatal("wake must carry at most one pending notification")
	default:
	}
}

func TestConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perWorker = 200
	)
	ring := NewRing(producers * perWorker)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ring.TryEnqueue(event(strconv.Itoa(p)))
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, producers*perWorker, ring.Len())
	assert.Equal(t, int64(0), ring.Dropped())

	var total int
	for {
		batch := ring.DequeueBatch(100)
		if len(batch) == 0 {
			break
		}
		total += len(batch)
	}
	assert.Equal(t, producers*perWorker, total)
}
