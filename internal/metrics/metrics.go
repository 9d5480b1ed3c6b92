package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vshop/insights/internal/llm"
)

const namespace = "insights"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Outcomes           *prometheus.CounterVec
	ModelCalls         *prometheus.CounterVec
	ModelCallDuration  *prometheus.HistogramVec
	RateLimitDecisions *prometheus.CounterVec
	InFlight           prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_outcomes_total",
				Help:      "Insight generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		ModelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_calls_total",
				Help:      "Outbound model calls by provider and result",
			},
			[]string{"provider", "result"},
		),
		ModelCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_call_duration_seconds",
				Help:      "Duration of outbound model calls in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 7.5, 10},
			},
			[]string{"provider"},
		),
		RateLimitDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_decisions_total",
				Help:      "Admission decisions made by the rate limiter",
			},
			[]string{"decision"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "generations_in_flight",
				Help:      "Insight generations currently running",
			},
		),
	}
}

func (m *Metrics) ObserveModelCall(provider string, kind llm.ErrorKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ModelCalls.WithLabelValues(provider, string(kind)).Inc()
	m.ModelCallDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRateLimit(allowed bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.RateLimitDecisions.WithLabelValues(decision).Inc()
}

// Track marks a generation as running until the returned func is called.
func (m *Metrics) Track() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
