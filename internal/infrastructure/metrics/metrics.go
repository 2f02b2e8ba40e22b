package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for screening checks.
const (
	OutcomeHit        = "hit"
	OutcomeClear      = "clear"
	OutcomeValidation = "validation_error"
	OutcomeUpstream   = "upstream_error"
	OutcomeInternal   = "internal_error"
)

// Metrics provides observability for screening and audit.
type Metrics struct {
	// Screening checks by outcome
	ChecksTotal *prometheus.CounterVec

	// Whole check latency, retries included
	CheckLatency prometheus.Histogram

	// Single provider attempt latency by HTTP status class
	UpstreamLatency *prometheus.HistogramVec

	UpstreamRetries prometheus.Counter

	AuditWriteFailures prometheus.Counter
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aml_screening_checks_total",
			Help: "Total screening checks by outcome",
		}, []string{"outcome"}),

		CheckLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aml_screening_check_duration_seconds",
			Help:    "Duration of a screening check including provider retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aml_provider_request_duration_seconds",
			Help:    "Duration of a single provider search attempt",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"status"}), // status: "2xx", "4xx", "5xx", "error"

		UpstreamRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "aml_provider_retries_total",
			Help: "Total provider search retries",
		}),

		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aml_audit_write_failures_total",
			Help: "Total audit records that could not be persisted",
		}),
	}
}

// IncrementCheck records a screening outcome.
func (m *Metrics) IncrementCheck(outcome string) {
	if m != nil {
		m.ChecksTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveCheckLatency records the total duration of a check.
func (m *Metrics) ObserveCheckLatency(d time.Duration) {
	if m != nil {
		m.CheckLatency.Observe(d.Seconds())
	}
}

// ObserveUpstreamLatency records one provider attempt.
func (m *Metrics) ObserveUpstreamLatency(status string, d time.Duration) {
	if m != nil {
		m.UpstreamLatency.WithLabelValues(status).Observe(d.Seconds())
	}
}

// IncrementUpstreamRetries counts a provider retry.
func (m *Metrics) IncrementUpstreamRetries() {
	if m != nil {
		m.UpstreamRetries.Inc()
	}
}

// IncrementAuditWriteFailures counts a dropped audit record.
func (m *Metrics) IncrementAuditWriteFailures() {
	if m != nil {
		m.AuditWriteFailures.Inc()
	}
}

// StatusClass buckets an HTTP status code for the latency label.
// Zero means no response was received.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
