package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors on a private registry.
// It satisfies dice.Observer.
type Metrics struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	latency     prometheus.Histogram
	calls       *prometheus.CounterVec
	callLatency *prometheus.SummaryVec
}

// NewMetrics creates and registers the odds collectors.
//
// Postcondition: Returns a Metrics whose Handler exposes every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "odds_evaluations_total",
				Help: "Number of dice expression evaluations.",
			},
			[]string{"outcome"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "odds_evaluation_seconds",
				Help:    "Dice expression evaluation latency (seconds).",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "odds_grpc_server_calls_total",
				Help: "Number of gRPC calls.",
			},
			[]string{"call", "code"},
		),
		callLatency: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "odds_grpc_server_latency_seconds",
				Help: "gRPC call latency (seconds).",
			},
			[]string{"call"},
		),
	}
	m.registry.MustRegister(m.evaluations, m.latency, m.calls, m.callLatency)
	return m
}

// ObserveEvaluation records one evaluation.
func (m *Metrics) ObserveEvaluation(elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.evaluations.With(prometheus.Labels{"outcome": outcome}).Inc()
	m.latency.Observe(elapsed.Seconds())
}

// ObserveCall records one gRPC call with its status code name.
func (m *Metrics) ObserveCall(method, code string, elapsed time.Duration) {
	m.calls.With(prometheus.Labels{"call": method, "code": code}).Inc()
	m.callLatency.With(prometheus.Labels{"call": method}).Observe(elapsed.Seconds())
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving m in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
