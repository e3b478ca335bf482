package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	scoringPasses prometheus.Counter
	tasksScored   prometheus.Counter

	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsAborted   prometheus.Counter
	sessionsExpired   prometheus.Counter

	notificationsFired *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on a private
// registry, so tests can build as many instances as they like
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		scoringPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gravity_scoring_passes_total",
			Help: "Total ranked-view computations.",
		}),
		tasksScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gravity_tasks_scored_total",
			Help: "Total individual task scores computed.",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focus_sessions_started_total",
			Help: "Total focus sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focus_sessions_completed_total",
			Help: "Total focus sessions completed successfully.",
		}),
		sessionsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focus_sessions_aborted_total",
			Help: "Total focus sessions aborted.",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focus_sessions_expired_total",
			Help: "Total focus sessions completed by timeout.",
		}),
		notificationsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deadline_notifications_fired_total",
			Help: "Total deadline notifications fired by threshold.",
		}, []string{"threshold"}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.scoringPasses,
		m.tasksScored,
		m.sessionsStarted,
		m.sessionsCompleted,
		m.sessionsAborted,
		m.sessionsExpired,
		m.notificationsFired,
	)
	return m
}

// Handler serves the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one handled request
func (m *Metrics) ObserveHTTP(route, status string, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ScoringPass records one ranked-view computation over n tasks
func (m *Metrics) ScoringPass(n int) {
	m.scoringPasses.Inc()
	m.tasksScored.Add(float64(n))
}

// SessionStarted records a new focus session
func (m *Metrics) SessionStarted() { m.sessionsStarted.Inc() }

// SessionFinished records a terminal transition
func (m *Metrics) SessionFinished(completed, timedOut bool) {
	switch {
	case timedOut:
		m.sessionsExpired.Inc()
	case completed:
		m.sessionsCompleted.Inc()
	default:
		m.sessionsAborted.Inc()
	}
}

// NotificationFired records one emitted deadline alert
func (m *Metrics) NotificationFired(threshold string) {
	m.notificationsFired.WithLabelValues(threshold).Inc()
}
