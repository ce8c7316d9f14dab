// Package metrics exposes Prometheus collectors for active-time tracking and
// activation attempts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the daemon's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveMs           prometheus.Gauge
	AccumulatedMs      prometheus.Gauge
	Activated          prometheus.Gauge
	SessionsTotal      prometheus.Counter
	ActivationAttempts *prometheus.CounterVec
	PersistErrors      prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry along
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		// Usage metrics
		ActiveMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warranty_active_ms",
			Help: "Total display-on time including the open session, in milliseconds",
		}),
		AccumulatedMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warranty_accumulated_ms",
			Help: "Display-on time folded from closed sessions, in milliseconds",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warranty_sessions_total",
			Help: "Display sessions closed since start",
		}),

		// Activation metrics
		Activated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warranty_activated",
			Help: "1 once activation has been confirmed by the endpoint",
		}),
		ActivationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warranty_activation_attempts_total",
			Help: "Activation submissions by result",
		}, []string{"result"}),

		// Storage metrics
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warranty_persist_errors_total",
			Help: "Counter store writes that failed after retries",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ActiveMs,
		m.AccumulatedMs,
		m.Activated,
		m.SessionsTotal,
		m.ActivationAttempts,
		m.PersistErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveUsage sets the usage gauges.
func (m *Metrics) ObserveUsage(accumulatedMs, totalMs int64) {
	if m == nil {
		return
	}
	m.AccumulatedMs.Set(float64(accumulatedMs))
	m.ActiveMs.Set(float64(totalMs))
}

// SessionClosed counts a folded session.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
}

// Attempt counts an activation attempt.
func (m *Metrics) Attempt(success bool) {
	if m == nil {
		return
	}
	if success {
		m.ActivationAttempts.WithLabelValues(ResultSuccess).Inc()
		m.Activated.Set(1)
		return
	}
	m.ActivationAttempts.WithLabelValues(ResultFailure).Inc()
}

// SetActivated sets the activated gauge.
func (m *Metrics) SetActivated(activated bool) {
	if m == nil {
		return
	}
	if activated {
		m.Activated.Set(1)
	} else {
		m.Activated.Set(0)
	}
}

// PersistError counts a failed store write.
func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.PersistErrors.Inc()
}
