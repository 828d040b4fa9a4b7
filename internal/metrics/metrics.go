package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tap2go"

type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	withdrawals   *prometheus.CounterVec
	statements    *prometheus.CounterVec
	botUpdates    *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	alertsQueued  *prometheus.CounterVec
	eventsEmitted *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		withdrawals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_operations_total",
			Help:      "Withdrawal submissions and decisions by outcome",
		}, []string{"operation", "result"}),
		statements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_generated_total",
			Help:      "Statement generation attempts by outcome",
		}, []string{"result"}),
		botUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_updates_total",
			Help:      "Chat bot updates by kind and outcome",
		}, []string{"kind", "result"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_cache_lookups_total",
			Help:      "Link cache lookups by result",
		}, []string{"result"}),
		alertsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_enqueued_total",
			Help:      "Email alerts handed to the task queue",
		}, []string{"type", "result"}),
		eventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published by topic",
		}, []string{"topic", "result"}),
	}
}

// Nop returns a Metrics registered on a private registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) Withdrawal(operation string, err error) {
	m.withdrawals.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) Statement(err error) {
	m.statements.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) BotUpdate(kind string, err error) {
	m.botUpdates.WithLabelValues(kind, result(err)).Inc()
}

// CacheLookup records hit, miss or error.
func (m *Metrics) CacheLookup(outcome string) {
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AlertQueued(taskType string, err error) {
	m.alertsQueued.WithLabelValues(taskType, result(err)).Inc()
}

func (m *Metrics) EventPublished(topic string, err error) {
	m.eventsEmitted.WithLabelValues(topic, result(err)).Inc()
}

// Middleware records request counts and latency keyed by the route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
