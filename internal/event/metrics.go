package event

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides lightweight bus observability.
// Uses atomic operations for thread-safety; prometheus collectors read the
// same counters.
type Metrics struct {
	// Counters
	eventsPut        atomic.Uint64
	eventsDispatched atomic.Uint64
	handlerFailures  atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64

	queueLen func() int
}

func newMetrics(queueLen func() int) *Metrics {
	return &Metrics{queueLen: queueLen}
}

func (m *Metrics) recordPut() {
	m.eventsPut.Add(1)
}

func (m *Metrics) recordDispatch(latency time.Duration) {
	m.eventsDispatched.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
}

func (m *Metrics) recordHandlerFailure() {
	m.handlerFailures.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsPut        uint64
	EventsDispatched uint64
	HandlerFailures  uint64
	AvgLatencyNs     int64
	QueueLen         int
	Timestamp        time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.eventsDispatched.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		EventsPut:        m.eventsPut.Load(),
		EventsDispatched: count,
		HandlerFailures:  m.handlerFailures.Load(),
		AvgLatencyNs:     avgLatency,
		QueueLen:         m.queueLen(),
		Timestamp:        time.Now(),
	}
}

// Collectors exposes the counters to prometheus.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "eventbus_events_put_total",
			Help: "Total events enqueued on the bus.",
		}, func() float64 { return float64(m.eventsPut.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "eventbus_events_dispatched_total",
			Help: "Total events dispatched to handlers.",
		}, func() float64 { return float64(m.eventsDispatched.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "eventbus_handler_failures_total",
			Help: "Total handler invocations that returned an error or panicked.",
		}, func() float64 { return float64(m.handlerFailures.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "eventbus_queue_length",
			Help: "Events waiting for dispatch.",
		}, func() float64 { return float64(m.queueLen()) }),
	}
}

// Register adds the bus collectors to registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
