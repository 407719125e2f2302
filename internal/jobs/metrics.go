// Package jobmetrics instruments the background worker.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the worker collectors. A nil *Metrics is valid and records
// nothing, which keeps handlers usable in tests without a registry.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	drifts      *prometheus.CounterVec
	purged      prometheus.Counter
}

// NewMetrics registers the worker collectors on registerer, falling back to
// the default registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_total",
			Help: "Job executions partitioned by job name and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_job_duration_seconds",
			Help:    "Duration in seconds of background job executions.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		drifts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_ledger_drifts_total",
			Help: "Ledger rows whose cached balance disagrees with the append-only log.",
		}, []string{"ledger"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_idempotency_keys_purged_total",
			Help: "Idempotency keys deleted after their retention elapsed.",
		}),
	}
	registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.drifts, m.purged)
	return m
}

// Run measures one execution of a job.
type Run struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts measuring a run of job.
func (m *Metrics) Track(job string) *Run {
	return &Run{metrics: m, job: job, start: time.Now()}
}

// End records the outcome and returns err unchanged so it can be used in a
// deferred assignment.
func (r *Run) End(err error) error {
	if r == nil || r.metrics == nil {
		return err
	}
	m := r.metrics
	m.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	if err != nil {
		m.runs.WithLabelValues(r.job, statusFailure).Inc()
		return err
	}
	m.runs.WithLabelValues(r.job, statusSuccess).Inc()
	m.lastSuccess.WithLabelValues(r.job).SetToCurrentTime()
	return nil
}

// AddDrifts counts ledger rows found out of step with their log.
func (m *Metrics) AddDrifts(ledger string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.drifts.WithLabelValues(ledger).Add(float64(count))
}

// AddPurged counts deleted idempotency keys.
func (m *Metrics) AddPurged(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.purged.Add(float64(count))
}
