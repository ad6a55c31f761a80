// Package metrics exports trigger and alert counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safetour/internal/domain"
)

const namespace = "sentinel"

// Metrics is an EventSink that counts controller events. It owns its registry
// so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	triggersTotal       prometheus.Counter
	alertsTotal         *prometheus.CounterVec
	alertLatency        prometheus.Histogram
	errorsTotal         *prometheus.CounterVec
	stateTransitions    *prometheus.CounterVec
	armed               prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		triggersTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_detected_total",
			Help:      "Trigger words detected while armed.",
		}),
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Finished triggers by outcome.",
		}, []string{"outcome", "silent"}),
		alertLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_completion_seconds",
			Help:      "Time from trigger detection to the alert outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 7.5, 10, 15, 30, 60},
		}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Session errors by code.",
		}, []string{"code"}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Session state transitions by state and reason.",
		}, []string{"state", "reason"}),
		armed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "armed",
			Help:      "1 while the session is listening for trigger words.",
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	m.stateTransitions.WithLabelValues(string(state), string(reason)).Inc()
	switch state {
	case domain.SessionStateArmed:
		m.armed.Set(1)
	case domain.SessionStateTriggered:
		m.armed.Set(0)
		m.triggersTotal.Inc()
	case domain.SessionStateIdle:
		m.armed.Set(0)
	}
	if reason == domain.SessionReasonListeningStopped {
		m.armed.Set(0)
	}
}

func (m *Metrics) PartialTranscript(string) {}

func (m *Metrics) CountdownChanged(domain.CountdownState) {}

func (m *Metrics) AlertDispatched(record domain.TriggerRecord) {
	m.alertsTotal.WithLabelValues(string(record.Outcome), strconv.FormatBool(record.SilentMode)).Inc()
	if !record.TriggeredAt.IsZero() && record.CompletedAt.After(record.TriggeredAt) {
		m.alertLatency.Observe(record.CompletedAt.Sub(record.TriggeredAt).Seconds())
	}
}

func (m *Metrics) SessionError(code domain.ErrorCode, _ string) {
	m.errorsTotal.WithLabelValues(string(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
