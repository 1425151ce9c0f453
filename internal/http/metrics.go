package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	outcomeSuccess  = "success"
	outcomePartial  = "partial"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

type metrics struct {
	registry     *prometheus.Registry
	authRequests *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		registry: registry,
		authRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_auth_requests_total",
			Help: "Authentication requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	registry.MustRegister(m.authRequests, m.duration)
	return m
}

func (m *metrics) auth(operation, outcome string) {
	m.authRequests.WithLabelValues(operation, outcome).Inc()
}

func (m *metrics) observeRequest(method, route string, status int, latency time.Duration) {
	m.duration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
