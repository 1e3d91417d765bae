package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	SignalsProcessed prometheus.Counter
	HooksMatched     prometheus.Counter
	JobsEnqueued     *prometheus.CounterVec
	DeliveriesSent   *prometheus.CounterVec
	DeliveriesFailed *prometheus.CounterVec
	JobsRetried      prometheus.Counter
	JobsExhausted    prometheus.Counter
	DispatchLatency  *prometheus.HistogramVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signals_processed_total",
			Help: "Total number of signal events consumed by the processor.",
		}),

		HooksMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hooks_matched_total",
			Help: "Total number of hooks whose conditions matched a signal.",
		}),

		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of notification jobs enqueued, by priority.",
		}, []string{"priority"}),

		DeliveriesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_sent_total",
			Help: "Total number of successful channel deliveries.",
		}, []string{"channel"}),

		DeliveriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_failed_total",
			Help: "Total number of failed channel delivery attempts.",
		}, []string{"channel"}),

		JobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobs_retried_total",
			Help: "Total number of jobs rescheduled for retry.",
		}),

		JobsExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobs_exhausted_total",
			Help: "Total number of jobs permanently failed (retries exhausted).",
		}),

		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_seconds",
			Help:    "Per-channel dispatch latency from claim to provider ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
	}

	reg.MustRegister(
		m.SignalsProcessed,
		m.HooksMatched,
		m.JobsEnqueued,
		m.DeliveriesSent,
		m.DeliveriesFailed,
		m.JobsRetried,
		m.JobsExhausted,
		m.DispatchLatency,
	)

	return m
}

// ObserveDispatch records one successful channel delivery and its latency.
func (m *Metrics) ObserveDispatch(channel string, latency time.Duration) {
	m.DeliveriesSent.WithLabelValues(channel).Inc()
	m.DispatchLatency.WithLabelValues(channel).Observe(latency.Seconds())
}
