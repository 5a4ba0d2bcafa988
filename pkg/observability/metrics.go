// Package observability exposes the engine's Prometheus metrics. A single
// Metrics value is shared by the agent, selector, and execution session;
// serving them is the host's job (see internal/adapters/http).
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's instrument set.
type Metrics struct {
	Turns             prometheus.Counter
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	SelectorFallbacks prometheus.Counter
	SelectedTools     prometheus.Histogram
	ModelCalls        *prometheus.CounterVec
	ModelLatency      *prometheus.HistogramVec
	ReflectionRounds  prometheus.Counter
}

// New creates the instrument set and registers it on the given registerer.
// Pass prometheus.DefaultRegisterer for the usual process-global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_turns_total",
			Help: "Total number of agent turns executed",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_executions_total",
			Help: "Total number of snippet executions by outcome",
		}, []string{"kind"}),
		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "canopy_execution_duration_seconds",
			Help: "Duration of snippet executions",
		}),
		SelectorFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_selector_fallbacks_total",
			Help: "Times the relevance selector failed open to the full catalog",
		}),
		SelectedTools: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "canopy_selected_tools",
			Help:    "Number of tools selected per turn",
			Buckets: prometheus.LinearBuckets(0, 5, 8),
		}),
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_model_calls_total",
			Help: "Total model invocations by role",
		}, []string{"role"}),
		ModelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "canopy_model_latency_seconds",
			Help: "Latency of model invocations by role",
		}, []string{"role"}),
		ReflectionRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_reflection_rounds_total",
			Help: "Total reflection revisions requested",
		}),
	}

	reg.MustRegister(
		m.Turns, m.Executions, m.ExecutionDuration,
		m.SelectorFallbacks, m.SelectedTools,
		m.ModelCalls, m.ModelLatency, m.ReflectionRounds,
	)
	return m
}

// NewNop creates an unregistered instrument set, useful default for
// library callers that did not opt into metrics.
func NewNop() *Metrics {
	reg := prometheus.NewRegistry()
	return New(reg)
}

// ObserveExecution records one execution outcome.
func (m *Metrics) ObserveExecution(kind string, elapsed time.Duration) {
	m.Executions.WithLabelValues(kind).Inc()
	m.ExecutionDuration.Observe(elapsed.Seconds())
}

// ObserveModelCall records one model invocation.
func (m *Metrics) ObserveModelCall(role string, elapsed time.Duration) {
	m.ModelCalls.WithLabelValues(role).Inc()
	m.ModelLatency.WithLabelValues(role).Observe(elapsed.Seconds())
}
