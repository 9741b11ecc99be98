// Package metrics exposes Prometheus collectors for the template service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scorecard"

// Publish outcomes.
const (
	OutcomePublished = "published"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	publishes       *prometheus.CounterVec
	publishRetries  prometheus.Counter
	auditFailures   prometheus.Counter
	archiveFailures *prometheus.CounterVec
	evaluations     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"outcome"}),
		publishRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_retries_total",
			Help:      "Publish transactions retried after a version number conflict.",
		}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit entries that could not be persisted.",
		}),
		archiveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Published snapshots that could not be archived.",
		}, []string{"driver"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Score evaluations by scoring method and result.",
		}, []string{"method", "passed"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		m.publishes,
		m.publishRetries,
		m.auditFailures,
		m.archiveFailures,
		m.evaluations,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Nil receivers are no-ops so callers can leave metrics unset.

func (m *Metrics) Publish(outcome string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PublishRetry() {
	if m == nil {
		return
	}
	m.publishRetries.Inc()
}

func (m *Metrics) AuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *Metrics) ArchiveFailure(driver string) {
	if m == nil {
		return
	}
	m.archiveFailures.WithLabelValues(driver).Inc()
}

func (m *Metrics) Evaluation(method string, passed bool) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(method, strconv.FormatBool(passed)).Inc()
}

// ObserveHTTP records one finished request. route is the chi route pattern.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
