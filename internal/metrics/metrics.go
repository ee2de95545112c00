package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes relay metrics.
type Metrics interface {
	HTTPHandler() http.Handler
	RecordOutcome(outcome string)
	ObserveUpstreamLatency(d time.Duration)
}

// Request outcomes recorded per handled chat request.
const (
	OutcomeOK            = "ok"
	OutcomeBadRequest    = "bad_request"
	OutcomeBlocked       = "blocked"
	OutcomeUnconfigured  = "unconfigured"
	OutcomeUpstreamError = "upstream_error"
	OutcomeInternalError = "internal_error"
)

// PromMetrics implements Metrics on a dedicated Prometheus registry.
type PromMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
}

func NewPromMetrics() *PromMetrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_chat_requests_total",
		Help: "Chat requests handled, labeled by outcome.",
	}, []string{"outcome"})

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_upstream_latency_seconds",
		Help:    "Latency of upstream provider calls.",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(requests, latency)

	return &PromMetrics{
		registry: registry,
		requests: requests,
		latency:  latency,
	}
}

func (m *PromMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PromMetrics) RecordOutcome(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *PromMetrics) ObserveUpstreamLatency(d time.Duration) {
	m.latency.Observe(d.Seconds())
}

// NoopMetrics is a placeholder metrics implementation for tests.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (m *NoopMetrics) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (m *NoopMetrics) RecordOutcome(outcome string) {}

func (m *NoopMetrics) ObserveUpstreamLatency(d time.Duration) {}
