package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyLoader fails or succeeds per call, in order.
type flakyLoader struct {
	snaps []Snapshot
	errs  []error
	calls int
}

func (f *flakyLoader) Load(context.Context) (Snapshot, error) {
	i := f.calls
	f.calls++
	if i >= len(f.errs) {
		i = len(f.errs) - 1
	}
	return f.snaps[i], f.errs[i]
}

func TestCachedFailsClosedBeforeFirstLoad(t *testing.T) {
	cached := NewCached(&flakyLoader{snaps: []Snapshot{{}}, errs: []error{errors.New("down")}}, 0, nil)

	snap := cached.Current()
	assert.False(t, snap.MetricsEnabled, "recording must stay off until settings load")
}

func TestCachedServesLastLoadedSnapshot(t *testing.T) {
	want := Defaults()
	want.RetentionDays = 30
	cached := NewCached(&flakyLoader{snaps: []Snapshot{want}, errs: []error{nil}}, 0, nil)

	require.NoError(t, cached.Refresh(context.Background()))
	assert.Equal(t, want, cached.Current())
}

func TestCachedFailsClosedAfterLoadFailure(t *testing.T) {
	loader := &flakyLoader{
		snaps: []Snapshot{Defaults(), {}, Defaults()},
		errs:  []error{nil, errors.New("store down"), nil},
	}
	cached := NewCached(loader, 0, nil)
	ctx := context.Background()

	require.NoError(t, cached.Refresh(ctx))
	assert.True(t, cached.Current().MetricsEnabled)

	require.Error(t, cached.Refresh(ctx))
	assert.False(t, cached.Current().MetricsEnabled, "stale snapshot must not be served after a failed load")

	require.NoError(t, cached.Refresh(ctx))
	assert.True(t, cached.Current().MetricsEnabled)
}
