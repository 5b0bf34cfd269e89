package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fidotel/internal/platform/sentinel"
)

func TestDefaults(t *testing.T) {
	snap := Defaults()

	assert.True(t, snap.MetricsEnabled)
	assert.True(t, snap.AsyncStorageEnabled)
	assert.Equal(t, 100, snap.BatchSize)
	assert.Equal(t, 90, snap.RetentionDays)
	assert.True(t, snap.RegistrationEnabled)
	assert.True(t, snap.AuthenticationEnabled)
	assert.True(t, snap.DeviceInfoCollectionEnabled)
	assert.True(t, snap.ErrorCategorizationEnabled)
	require.NoError(t, snap.Validate())
}

func TestDisabledRecordsNothing(t *testing.T) {
	snap := Disabled()
	assert.False(t, snap.MetricsEnabled)
	// The fail-closed snapshot is intentionally not a valid committed document.
	assert.Error(t, snap.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr bool
	}{
		{"defaults are valid", func(*Snapshot) {}, false},
		{"batch size of one is valid", func(s *Snapshot) { s.BatchSize = 1 }, false},
		{"zero batch size rejected", func(s *Snapshot) { s.BatchSize = 0 }, true},
		{"negative batch size rejected", func(s *Snapshot) { s.BatchSize = -5 }, true},
		{"zero retention is valid", func(s *Snapshot) { s.RetentionDays = 0 }, false},
		{"negative retention rejected", func(s *Snapshot) { s.RetentionDays = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Defaults()
			tt.mutate(&snap)
			err := snap.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, sentinel.ErrInvalidState)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	_, err := st.Load(ctx)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	saved, err := st.Save(ctx, Defaults())
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)
	assert.False(t, saved.UpdatedAt.IsZero())

	update := Defaults()
	update.RetentionDays = 30
	saved, err = st.Save(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.RetentionDays)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestMemoryStoreSeeded(t *testing.T) {
	st := NewMemorySeeded(Defaults())
	loaded, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Equal(t, 100, loaded.BatchSize)
}
