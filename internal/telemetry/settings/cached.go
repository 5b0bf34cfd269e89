package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cached keeps the latest loaded snapshot in memory and refreshes it on an
// interval, so the hot authentication path never touches the backing store.
//
// It fails closed: until a load succeeds, and whenever the most recent load
// failed, Current returns the disabled snapshot and nothing is recorded.
type Cached struct {
	loader   Loader
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	snap    Snapshot
	healthy bool
}

// NewCached wraps loader with an in-memory cache refreshed every interval.
func NewCached(loader Loader, interval time.Duration, logger *slog.Logger) *Cached {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Cached{
		loader:   loader,
		interval: interval,
		logger:   logger,
	}
}

// Current returns the last successfully loaded snapshot, or the disabled
// snapshot if no load has succeeded yet.
func (c *Cached) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.healthy {
		return Disabled()
	}
	return c.snap
}

// Refresh loads the settings once and updates the cache. A load failure marks
// the provider unhealthy so decisions fail closed until the next success.
func (c *Cached) Refresh(ctx context.Context) error {
	snap, err := c.loader.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.healthy = false
		return err
	}
	c.snap = snap
	c.healthy = true
	return nil
}

// Run refreshes the cache until ctx is cancelled. Load failures are logged
// and retried on the next tick.
func (c *Cached) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && c.logger != nil {
				c.logger.WarnContext(ctx, "settings refresh failed, recording disabled until next success",
					"error", err,
				)
			}
		}
	}
}
