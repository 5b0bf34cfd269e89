package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fidotel/internal/telemetry"
)

func eventAt(occurredAt time.Time) telemetry.Event {
	return telemetry.Event{
		ID:         uuid.New(),
		Kind:       telemetry.KindNudgeShown,
		SubjectID:  "user-1",
		OccurredAt: occurredAt,
	}
}

func TestAppendBatchIsIdempotent(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	batch := []telemetry.Event{eventAt(time.Now()), eventAt(time.Now())}

	require.NoError(t, st.AppendBatch(ctx, batch))
	require.NoError(t, st.AppendBatch(ctx, batch))

	assert.Equal(t, 2, st.Len(), "replayed batch must not duplicate events")
}

func TestDeleteOlderThanHonorsLimit(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	cutoff := time.Now()

	old := make([]telemetry.Event, 5)
	for i := range old {
		old[i] = eventAt(cutoff.Add(-time.Hour))
	}
	require.NoError(t, st.AppendBatch(ctx, old))

	deleted, err := st.DeleteOlderThan(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 3, st.Len())

	deleted, err = st.DeleteOlderThan(ctx, cutoff, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, 0, st.Len())
}

func TestDeleteOlderThanKeepsCutoffBoundary(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	cutoff := time.Now()

	boundary := eventAt(cutoff)
	require.NoError(t, st.AppendBatch(ctx, []telemetry.Event{boundary}))

	deleted, err := st.DeleteOlderThan(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted, "events exactly at the cutoff are retained")
	assert.Equal(t, 1, st.Len())
}

func TestClearResetsIdempotencyTracking(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	batch := []telemetry.Event{eventAt(time.Now())}

	require.NoError(t, st.AppendBatch(ctx, batch))
	st.Clear()
	require.NoError(t, st.AppendBatch(ctx, batch))

	assert.Equal(t, 1, st.Len())
}
