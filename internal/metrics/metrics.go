// Package metrics exposes workflow counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry and the collectors the API records into.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	transitions     *prometheus.CounterVec
	released        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_workflow_transitions_total",
		Help: "Workflow transitions committed, by entity, action and resulting status.",
	}, []string{"entity", "action", "status"})
	released := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_released_quantity_total",
		Help: "Item quantity released against orders.",
	}, []string{"outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_notifications_total",
		Help: "Notifications handed to the queue, by result.",
	}, []string{"result"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "procurement_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	registry.MustRegister(
		transitions, released, notifications, requests, duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		transitions:     transitions,
		released:        released,
		notifications:   notifications,
		requestsTotal:   requests,
		requestDuration: duration,
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTransition(entity, action, status string) {
	m.transitions.WithLabelValues(entity, action, status).Inc()
}

// ObserveRelease counts released units on success and rejected units when a batch fails
func (m *Metrics) ObserveRelease(quantity int, ok bool) {
	outcome := "released"
	if !ok {
		outcome = "rejected"
	}
	m.released.WithLabelValues(outcome).Add(float64(quantity))
}

func (m *Metrics) ObserveNotification(err error) {
	result := "queued"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// GinMiddleware records request counts and latency per matched route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
