package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	OperatorsRegistered prometheus.Counter
	StatusesInitialized prometheus.Counter
	StatusUpdates       prometheus.Counter
	FeedbackUpserts     prometheus.Counter
	LogsAppended        prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseview_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		OperatorsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseview_operators_registered_total",
			Help: "Total number of operators registered",
		}),
		StatusesInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseview_case_statuses_initialized_total",
			Help: "Total number of case status rows created lazily",
		}),
		StatusUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseview_case_status_updates_total",
			Help: "Total number of case status updates",
		}),
		FeedbackUpserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseview_aspect_feedback_upserts_total",
			Help: "Total number of aspect feedback upserts",
		}),
		LogsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseview_case_logs_appended_total",
			Help: "Total number of case log entries appended",
		}),
	}
}

// ObserveHTTPRequest records one request's latency. Nil-safe so tests can
// pass a nil Metrics.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// IncrementOperatorsRegistered increments the operators created counter by 1.
func (m *Metrics) IncrementOperatorsRegistered() {
	if m == nil {
		return
	}
	m.OperatorsRegistered.Inc()
}

// IncrementStatusesInitialized increments the lazy status creation counter by 1.
func (m *Metrics) IncrementStatusesInitialized() {
	if m == nil {
		return
	}
	m.StatusesInitialized.Inc()
}

// IncrementStatusUpdates increments the status update counter by 1.
func (m *Metrics) IncrementStatusUpdates() {
	if m == nil {
		return
	}
	m.StatusUpdates.Inc()
}

// IncrementFeedbackUpserts increments the feedback upsert counter by 1.
func (m *Metrics) IncrementFeedbackUpserts() {
	if m == nil {
		return
	}
	m.FeedbackUpserts.Inc()
}

// IncrementLogsAppended increments the log append counter by 1.
func (m *Metrics) IncrementLogsAppended() {
	if m == nil {
		return
	}
	m.LogsAppended.Inc()
}
