// Package pipeline implements the asynchronous passkey event recording
// pipeline: fire-and-forget submission on the authentication path, a bounded
// queue, and a single background writer that persists events in batches.
//
// Nothing in this package is allowed to propagate an error into the caller's
// request path; every failure degrades to "event not recorded" and is
// surfaced through counters and boundary logging only.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fidotel/internal/telemetry"
	"fidotel/internal/telemetry/policy"
	"fidotel/internal/telemetry/queue"
	"fidotel/internal/telemetry/settings"
	"fidotel/internal/telemetry/store"
)

const (
	defaultQueueCapacity = 8192
	defaultBatchSize     = 100
	maxPersistAttempts   = 3
	backoffBase          = 50 * time.Millisecond
)

// BatchPublisher mirrors persisted batches to a secondary sink. Publishing is
// best-effort; implementations must never block the writer for long or
// return errors that would stall it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []telemetry.Event)
}

// Recorder is the injected pipeline instance with an explicit start/stop
// lifecycle. One Recorder runs per process.
type Recorder struct {
	store    store.Store
	provider settings.Provider
	queue    *queue.Ring
	breaker  *CircuitBreaker
	relay    BatchPublisher
	logger   *slog.Logger
	metrics  *Metrics
	nodeID   string

	flushInterval time.Duration
	syncTimeout   time.Duration
	drainTimeout  time.Duration

	closing   chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	closed    atomic.Bool

	stats recorderStats
}

type recorderStats struct {
	submitted        atomic.Int64
	rejected         atomic.Int64
	droppedSyncWrite atomic.Int64
	droppedShutdown  atomic.Int64
	eventsPersisted  atomic.Int64
	batchesPersisted atomic.Int64
	persistFailures  atomic.Int64
	batchesDiscarded atomic.Int64
	breakerDropped   atomic.Int64
}

// Stats is a point-in-time view of the pipeline counters, served by the
// stats endpoint and used by tests.
type Stats struct {
	Submitted        int64 `json:"submitted"`
	Rejected         int64 `json:"rejected"`
	DroppedQueueFull int64 `json:"droppedQueueFull"`
	DroppedSyncWrite int64 `json:"droppedSyncWrite"`
	DroppedShutdown  int64 `json:"droppedShutdown"`
	EventsPersisted  int64 `json:"eventsPersisted"`
	BatchesPersisted int64 `json:"batchesPersisted"`
	PersistFailures  int64 `json:"persistFailures"`
	BatchesDiscarded int64 `json:"batchesDiscarded"`
	BreakerDropped   int64 `json:"breakerDropped"`
	QueueDepth       int   `json:"queueDepth"`
	BreakerOpen      bool  `json:"breakerOpen"`
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for boundary error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithMetrics sets the Prometheus metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithRelay mirrors every persisted batch to the given publisher.
func WithRelay(p BatchPublisher) Option {
	return func(r *Recorder) { r.relay = p }
}

// WithQueueCapacity overrides the ingestion queue bound.
func WithQueueCapacity(capacity int) Option {
	return func(r *Recorder) { r.queue = queue.NewRing(capacity) }
}

// WithFlushInterval overrides how often the writer flushes a partial batch.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// WithSyncWriteTimeout bounds the direct write attempted when async storage
// is disabled.
func WithSyncWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.syncTimeout = d
		}
	}
}

// WithDrainTimeout bounds the final drain-and-flush performed on Close.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.drainTimeout = d
		}
	}
}

// WithCircuitBreaker replaces the default store circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(r *Recorder) {
		if cb != nil {
			r.breaker = cb
		}
	}
}

// New creates a Recorder. nodeID identifies this process in multi-node
// deployments and is stamped on every recorded event.
func New(st store.Store, provider settings.Provider, nodeID string, opts ...Option) *Recorder {
	r := &Recorder{
		store:         st,
		provider:      provider,
		queue:         queue.NewRing(defaultQueueCapacity),
		breaker:       NewCircuitBreaker(5, time.Minute),
		nodeID:        nodeID,
		flushInterval: time.Second,
		syncTimeout:   250 * time.Millisecond,
		drainTimeout:  5 * time.Second,
		closing:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background batch writer. It returns immediately.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.run(ctx)
	})
}

// Submit records one lifecycle event. It never returns an error, never
// blocks beyond a small constant time in async mode, and never waits on
// storage I/O from the caller's goroutine. Events submitted after Close are
// dropped.
func (r *Recorder) Submit(ctx context.Context, event telemetry.Event) {
	if r.closed.Load() {
		r.stats.droppedShutdown.Add(1)
		r.metrics.AddDroppedShutdown(1)
		return
	}
	if !event.Kind.Valid() {
		r.stats.rejected.Add(1)
		r.metrics.IncRejected()
		return
	}

	snap := r.provider.Current()
	if !policy.ShouldRecord(event.Kind, snap) {
		return
	}

	event = policy.Enrich(event, snap)
	event.NodeID = r.nodeID
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if !snap.AsyncStorageEnabled {
		r.syncWrite(ctx, event)
		return
	}

	if !r.queue.TryEnqueue(event) {
		r.metrics.IncDroppedQueueFull()
		return
	}
	r.stats.submitted.Add(1)
	r.metrics.IncSubmitted()
	r.metrics.SetQueueDepth(r.queue.Len())
}

// syncWrite is the best-effort direct path used when operators disable async
// storage: one single-event append with a short timeout, dropped on failure.
func (r *Recorder) syncWrite(ctx context.Context, event telemetry.Event) {
	writeCtx, cancel := context.WithTimeout(ctx, r.syncTimeout)
	defer cancel()

	if err := r.store.AppendBatch(writeCtx, []telemetry.Event{event}); err != nil {
		r.stats.droppedSyncWrite.Add(1)
		r.metrics.IncDroppedSyncWrite()
		if r.logger != nil {
			r.logger.WarnContext(ctx, "synchronous event write dropped",
				"kind", string(event.Kind),
				"error", err,
			)
		}
		return
	}
	r.stats.submitted.Add(1)
	r.stats.eventsPersisted.Add(1)
	r.stats.batchesPersisted.Add(1)
	r.metrics.IncSubmitted()
	r.metrics.AddEventsPersisted(1)
	r.metrics.IncBatchesPersisted()
}

// Close stops intake, performs one final bounded drain-and-flush, and waits
// for the writer to exit. Events still queued when the drain deadline passes
// are dropped and counted.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.closing)
	})

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pipeline counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Submitted:        r.stats.submitted.Load(),
		Rejected:         r.stats.rejected.Load(),
		DroppedQueueFull: r.queue.Dropped(),
		DroppedSyncWrite: r.stats.droppedSyncWrite.Load(),
		DroppedShutdown:  r.stats.droppedShutdown.Load(),
		EventsPersisted:  r.stats.eventsPersisted.Load(),
		BatchesPersisted: r.stats.batchesPersisted.Load(),
		PersistFailures:  r.stats.persistFailures.Load(),
		BatchesDiscarded: r.stats.batchesDiscarded.Load(),
		BreakerDropped:   r.stats.breakerDropped.Load(),
		QueueDepth:       r.queue.Len(),
		BreakerOpen:      r.breaker.IsOpen(),
	}
}
