// Package metrics exposes the Prometheus instruments of the portal and the loyalty API.
// Every recording method is safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the rewards services.
type Metrics struct {
	// Portal login attempts by requested role and outcome.
	LoginAttempts *prometheus.CounterVec
	// Route guard decisions by kind.
	GuardDecisions *prometheus.CounterVec
	// Loyalty API logins by role and outcome.
	BackendLogins *prometheus.CounterVec

	RequestDuration *prometheus.HistogramVec
	QueryDuration   *prometheus.HistogramVec
}

// New creates a Metrics instance with every instrument registered on registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_login_attempts_total",
				Help: "Portal login attempts by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_guard_decisions_total",
				Help: "Route guard decisions by kind",
			},
			[]string{"decision"},
		),
		BackendLogins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_api_logins_total",
				Help: "Loyalty API login requests by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewards_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewards_db_query_duration_seconds",
				Help:    "Database statement duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"op"},
		),
	}
}

// NewRegistry creates a registry carrying the rewards metrics plus Go and process collectors.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

// Handler returns the /metrics endpoint for a registry.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordLogin counts one portal login attempt.
func (m *Metrics) RecordLogin(role, outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(labelOrNone(role), outcome).Inc()
}

// RecordBackendLogin counts one loyalty API login.
func (m *Metrics) RecordBackendLogin(role, outcome string) {
	if m == nil {
		return
	}
	m.BackendLogins.WithLabelValues(labelOrNone(role), outcome).Inc()
}

// RecordDecision counts one route guard decision.
func (m *Metrics) RecordDecision(kind string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(kind).Inc()
}

// ObserveRequest records the duration of one HTTP request.
// route is the matched pattern, never the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveQuery records the duration of one database statement.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

func labelOrNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
