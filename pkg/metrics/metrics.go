// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdziat/funcgate/pkg/core"
)

const namespace = "funcgate"

// unknownFunction labels calls to names that did not resolve, keeping label
// cardinality bounded by the registry.
const unknownFunction = "_unknown"

// Metrics holds the gateway collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	calls       *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	rateLimited prometheus.Counter
	timeouts    prometheus.Counter
}

// New creates Metrics with Go runtime and process collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Function calls by function and outcome.",
		}, []string{"function", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positional_fallbacks_total",
			Help:      "Named calls that were rebound positionally.",
		}, []string{"function"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Time from call receipt to envelope.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_in_flight",
			Help:      "Calls currently executing.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_timeouts_total",
			Help:      "Calls whose response was abandoned after the call timeout.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.calls,
		m.fallbacks,
		m.duration,
		m.inFlight,
		m.rateLimited,
		m.timeouts,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCall records a finished call. It has the signature of a gateway
// OnCallFinish hook.
func (m *Metrics) ObserveCall(_ context.Context, e core.Event) {
	switch ev := e.(type) {
	case *core.CallCompleted:
		m.observe(ev.Call.Function, core.OutcomeOK, ev.Fallback, ev.Duration.Seconds())
	case *core.CallFailed:
		fn := ev.Call.Function
		if ev.Outcome == core.OutcomeNotFound {
			fn = unknownFunction
		}
		m.observe(fn, ev.Outcome, ev.Fallback, ev.Duration.Seconds())
	}
}

func (m *Metrics) observe(function string, outcome core.Outcome, fallback bool, seconds float64) {
	m.calls.WithLabelValues(function, string(outcome)).Inc()
	m.duration.WithLabelValues(function).Observe(seconds)
	if fallback {
		m.fallbacks.WithLabelValues(function).Inc()
	}
}

// CallStarted marks a call as in flight. The returned func marks it done.
func (m *Metrics) CallStarted() (done func()) {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// TimedOut counts a call abandoned after the call timeout.
func (m *Metrics) TimedOut() {
	m.timeouts.Inc()
}
