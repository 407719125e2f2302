package settlement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for settlement events.
type Metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the settlement collectors against registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_settlements_total",
		Help: "Settlement events partitioned by event type and outcome.",
	}, []string{"event", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_settlement_duration_seconds",
		Help:    "Duration in seconds of settlement events including lock wait.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
	registerer.MustRegister(events, duration)
	return &Metrics{events: events, duration: duration}
}

func (m *Metrics) observe(event Event, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(event), outcome).Inc()
	m.duration.WithLabelValues(string(event)).Observe(time.Since(start).Seconds())
}
