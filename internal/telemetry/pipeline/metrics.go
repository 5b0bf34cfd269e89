package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the recording pipeline. The recorder
// accepts a nil Metrics; its internal stats counters always run, the
// Prometheus surface is opt-in from main.
type Metrics struct {
	Submitted         prometheus.Counter
	Rejected          prometheus.Counter
	DroppedQueueFull  prometheus.Counter
	DroppedSyncWrite  prometheus.Counter
	DroppedShutdown   prometheus.Counter
	EventsPersisted   prometheus.Counter
	BatchesPersisted  prometheus.Counter
	PersistFailures   prometheus.Counter
	BatchesDiscarded  prometheus.Counter
	BreakerDropped    prometheus.Counter
	BreakerState      prometheus.Gauge
	QueueDepth        prometheus.Gauge
	EventsReaped      prometheus.Counter
	ReapFailures      prometheus.Counter
	RelayPublishFails prometheus.Counter
}

// NewMetrics creates a Metrics instance with all pipeline metrics registered
// on the default registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_events_submitted_total",
			Help: "Total number of passkey events accepted into the pipeline",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_events_rejected_total",
			Help: "Total number of submissions rejected for an unknown event kind",
		}),
		DroppedQueueFull: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_events_dropped_queue_full_total",
			Help: "Total number of events dropped because the ingestion queue was full",
		}),
		DroppedSyncWrite: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_events_dropped_sync_write_total",
			Help: "Total number of events dropped by a failed or timed-out synchronous write",
		}),
		DroppedShutdown: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_events_dropped_shutdown_total",
			Help: "Total number of events dropped because the final shutdown drain timed out",
		}),
		EventsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_events_persisted_total",
			Help: "Total number of events durably persisted",
		}),
		BatchesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_batches_persisted_total",
			Help: "Total number of batches durably persisted",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_persist_failures_total",
			Help: "Total number of failed batch persistence attempts, including retries",
		}),
		BatchesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_batches_discarded_total",
			Help: "Total number of batches discarded after exhausting the retry budget",
		}),
		BreakerDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_breaker_dropped_total",
			Help: "Total number of batches dropped while the store circuit breaker was open",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fidotel_breaker_state",
			Help: "Current store circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fidotel_queue_depth",
			Help: "Number of events currently waiting in the ingestion queue",
		}),
		EventsReaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_events_reaped_total",
			Help: "Total number of expired events deleted by the retention reaper",
		}),
		ReapFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_reap_failures_total",
			Help: "Total number of failed retention delete passes",
		}),
		RelayPublishFails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fidotel_relay_publish_failures_total",
			Help: "Total number of events that failed to mirror to the relay topic",
		}),
	}
}

// The increment helpers are nil-safe so the recorder can run without a
// Prometheus surface (tests, embedded use).

func (m *Metrics) IncSubmitted() {
	if m != nil {
		m.Submitted.Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

func (m *Metrics) IncDroppedQueueFull() {
	if m != nil {
		m.DroppedQueueFull.Inc()
	}
}

func (m *Metrics) IncDroppedSyncWrite() {
	if m != nil {
		m.DroppedSyncWrite.Inc()
	}
}

func (m *Metrics) AddDroppedShutdown(n int) {
	if m != nil {
		m.DroppedShutdown.Add(float64(n))
	}
}

func (m *Metrics) AddEventsPersisted(n int) {
	if m != nil {
		m.EventsPersisted.Add(float64(n))
	}
}

func (m *Metrics) IncBatchesPersisted() {
	if m != nil {
		m.BatchesPersisted.Inc()
	}
}

func (m *Metrics) IncPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) IncBatchesDiscarded() {
	if m != nil {
		m.BatchesDiscarded.Inc()
	}
}

func (m *Metrics) IncBreakerDropped() {
	if m != nil {
		m.BreakerDropped.Inc()
	}
}

func (m *Metrics) AddEventsReaped(n int64) {
	if m != nil {
		m.EventsReaped.Add(float64(n))
	}
}

func (m *Metrics) IncReapFailures() {
	if m != nil {
		m.ReapFailures.Inc()
	}
}

func (m *Metrics) IncRelayPublishFails() {
	if m != nil {
		m.RelayPublishFails.Inc()
	}
}

func (m *Metrics) SetBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}
