// Package reaper enforces the retention window on persisted telemetry
// events, independently of the batch writer.
package reaper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"fidotel/internal/telemetry/pipeline"
	"fidotel/internal/telemetry/settings"
	"fidotel/internal/telemetry/store"
)

const defaultChunkSize = 100

// Reaper periodically deletes events older than the configured retention
// window, in bounded chunks so the store never runs one long delete.
// Reaping runs even while capture is disabled: retention must be honored for
// events recorded before the operator paused collection.
type Reaper struct {
	store     store.Store
	provider  settings.Provider
	interval  time.Duration
	chunkSize int
	logger    *slog.Logger
	metrics   *pipeline.Metrics
	now       func() time.Time

	reaped   atomic.Int64
	failures atomic.Int64
}

// Option configures the Reaper.
type Option func(*Reaper)

// WithLogger sets a logger for delete failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) { r.logger = logger }
}

// WithMetrics sets the shared pipeline metrics collector.
func WithMetrics(m *pipeline.Metrics) Option {
	return func(r *Reaper) { r.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Reaper. interval is the clean-service cadence; chunkSize
// bounds each delete pass.
func New(st store.Store, provider settings.Provider, interval time.Duration, chunkSize int, opts ...Option) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	r := &Reaper{
		store:     st,
		provider:  provider,
		interval:  interval,
		chunkSize: chunkSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reaps on the configured interval until ctx is cancelled. An in-flight
// chunked pass finishes its current chunk before the loop exits.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil && r.logger != nil {
				r.logger.WarnContext(ctx, "retention reap cycle failed, will retry next cycle",
					"error", err,
				)
			}
		}
	}
}

// ReapOnce runs one full reap cycle: chunked deletes with a fixed cutoff
// until a pass returns fewer than a full chunk. It is idempotent; re-running
// with the same cutoff deletes nothing new. Returns the number of events
// deleted this cycle.
func (r *Reaper) ReapOnce(ctx context.Context) (int64, error) {
	snap := r.provider.Current()
	if snap.Validate() != nil {
		// Fail-closed snapshot (settings unreadable): retentionDays would
		// read as zero and wipe everything. Skip until settings are back.
		return 0, nil
	}
	cutoff := r.now().AddDate(0, 0, -snap.RetentionDays)

	var total int64
	for {
		deleted, err := r.store.DeleteOlderThan(ctx, cutoff, r.chunkSize)
		if err != nil {
			r.failures.Add(1)
			r.metrics.IncReapFailures()
			return total, err
		}
		total += deleted
		if deleted < int64(r.chunkSize) {
			break
		}
		if ctx.Err() != nil {
			// Shutdown mid-pass: the current chunk completed, stop here.
			break
		}
	}

	r.reaped.Add(total)
	r.metrics.AddEventsReaped(total)
	return total, nil
}

// Reaped returns the total number of events deleted since start.
func (r *Reaper) Reaped() int64 {
	return r.reaped.Load()
}

// Failures returns the total number of failed delete passes.
func (r *Reaper) Failures() int64 {
	return r.failures.Load()
}
