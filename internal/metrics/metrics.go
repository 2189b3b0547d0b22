// Package metrics exposes the prometheus collectors of a bridge instance.
// A nil *Metrics is valid and records nothing.
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

// Notification results
const (
	NotificationSent    = "sent"
	NotificationSkipped = "skipped"
	NotificationFailed  = "failed"
)

type Metrics struct {
	registry      *prometheus.Registry
	side          string
	actions       *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	dispatch      *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the bridge collectors on a private registry
func New(side string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		side:     side,
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_actions_total",
				Help: "Terminal action outcomes",
			},
			[]string{"side", "action", "state"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_decisions_total",
				Help: "Decision provider answers",
			},
			[]string{"side", "action", "result"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_ledger_notifications_total",
				Help: "Ledger notifications by result",
			},
			[]string{"side", "action", "result"},
		),
		dispatch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_ledger_dispatch_duration_seconds",
				Help:    "Duration of ledger dispatch calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"side", "result"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.actions, m.decisions, m.notifications, m.dispatch, m.requests, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveAction(action, state string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(m.side, action, state).Inc()
}

func (m *Metrics) ObserveDecision(action string, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.decisions.WithLabelValues(m.side, action, result).Inc()
}

func (m *Metrics) ObserveNotification(action, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(m.side, action, result).Inc()
}

func (m *Metrics) ObserveDispatch(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dispatch.WithLabelValues(m.side, result).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware counts requests by matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
