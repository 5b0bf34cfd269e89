package pipeline

import (
	"context"
	"time"

	"fidotel/internal/telemetry"
)

// run is the single background batch writer. It wakes on the first queued
// event or the flush timer, drains up to the configured batch size per store
// call, and never lets a batch failure terminate the loop.
func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finalDrain()
			return
		case <-r.closing:
			r.finalDrain()
			return
		case <-r.queue.Wake():
			r.drainAll(ctx)
		case <-ticker.C:
			r.drainAll(ctx)
		}
	}
}

// batchSize reads the bound from the current snapshot; it may change between
// drains. A fail-closed snapshot reports zero, which must not stall draining
// of events admitted under an earlier snapshot.
func (r *Recorder) batchSize() int {
	if n := r.provider.Current().BatchSize; n >= 1 {
		return n
	}
	return defaultBatchSize
}

// drainAll flushes full batches until the queue holds fewer events than one
// batch, then flushes the remainder. Draining "up to N" keeps low-traffic
// events from waiting for a full batch.
func (r *Recorder) drainAll(ctx context.Context) {
	for {
		n := r.batchSize()
		events := r.queue.DequeueBatch(n)
		if len(events) == 0 {
			break
		}
		r.persist(ctx, events)
		if len(events) < n {
			break
		}
	}
	r.metrics.SetQueueDepth(r.queue.Len())
}

// persist writes one batch, retrying with exponential backoff before
// discarding it. The batch is the unit of retry: appends are idempotent, so
// a replay after a partial failure cannot duplicate rows.
func (r *Recorder) persist(ctx context.Context, events []telemetry.Event) {
	if len(events) == 0 {
		return
	}

	if !r.breaker.Allow() {
		r.stats.breakerDropped.Add(1)
		r.metrics.IncBreakerDropped()
		r.metrics.SetBreakerState(true)
		return
	}

	var lastErr error
	for attempt := 0; attempt < maxPersistAttempts; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, backoffBase<<(attempt-1)) {
				break
			}
		}

		lastErr = r.store.AppendBatch(ctx, events)
		if lastErr == nil {
			r.breaker.RecordSuccess()
			r.metrics.SetBreakerState(false)
			r.stats.eventsPersisted.Add(int64(len(events)))
			r.stats.batchesPersisted.Add(1)
			r.metrics.AddEventsPersisted(len(events))
			r.metrics.IncBatchesPersisted()
			if r.relay != nil {
				r.relay.PublishBatch(ctx, events)
			}
			return
		}

		r.breaker.RecordFailure()
		r.stats.persistFailures.Add(1)
		r.metrics.IncPersistFailures()
		if r.logger != nil {
			r.logger.Warn("event batch persistence failed",
				"attempt", attempt+1,
				"batch_size", len(events),
				"error", lastErr,
			)
		}
	}

	// Retry budget exhausted: the batch is lost. Metrics loss is acceptable,
	// the authentication system's availability is not.
	r.stats.batchesDiscarded.Add(1)
	r.metrics.IncBatchesDiscarded()
	r.metrics.SetBreakerState(r.breaker.IsOpen())
	if r.logger != nil {
		r.logger.Error("event batch discarded after exhausting retries",
			"batch_size", len(events),
			"error", lastErr,
		)
	}
}

// finalDrain flushes whatever is still queued within the drain timeout.
// Events left after the deadline are dropped and counted.
func (r *Recorder) finalDrain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		n := r.batchSize()
		events := r.queue.DequeueBatch(n)
		if len(events) == 0 {
			break
		}
		r.persist(ctx, events)
	}

	if leftover := r.queue.Len(); leftover > 0 {
		r.stats.droppedShutdown.Add(int64(leftover))
		r.metrics.AddDroppedShutdown(leftover)
		if r.logger != nil {
			r.logger.Warn("shutdown drain timed out, dropping queued events",
				"dropped", leftover,
			)
		}
	}
	r.metrics.SetQueueDepth(0)
}

// sleepCtx sleeps for d or until ctx is done; returns false when cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
