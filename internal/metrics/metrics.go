// Package metrics provides Prometheus metrics for the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	ToneViolationsTotal *prometheus.CounterVec
	SnapshotsTotal      *prometheus.CounterVec
	SuggestionsTotal    *prometheus.CounterVec
	ResponsesTotal      *prometheus.CounterVec
	BreakerState        *prometheus.GaugeVec
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec

	registry *prometheus.Registry
}

// Generation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRepaired = "repaired"
	OutcomeFallback = "fallback"
)

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_generations_total",
				Help: "Copy generation attempts by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_generation_duration_seconds",
				Help:    "End-to-end copy generation latency by type.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		ToneViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_tone_violations_total",
				Help: "Tone violations detected in generated copy by kind.",
			},
			[]string{"kind"},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_state_snapshots_total",
				Help: "Computed state snapshots by primary state.",
			},
			[]string{"state"},
		),
		SuggestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_suggestions_total",
				Help: "Generated suggestions by type.",
			},
			[]string{"type"},
		),
		ResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_suggestion_responses_total",
				Help: "Recorded suggestion responses by kind.",
			},
			[]string{"response"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_breaker_state",
				Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
			},
			[]string{"name"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_http_requests_total",
				Help: "HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_http_request_duration_seconds",
				Help:    "HTTP request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		registry: reg,
	}

	reg.MustRegister(m.GenerationsTotal)
	reg.MustRegister(m.GenerationDuration)
	reg.MustRegister(m.ToneViolationsTotal)
	reg.MustRegister(m.SnapshotsTotal)
	reg.MustRegister(m.SuggestionsTotal)
	reg.MustRegister(m.ResponsesTotal)
	reg.MustRegister(m.BreakerState)
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration records one generation attempt and its latency.
func (m *Metrics) RecordGeneration(genType, outcome string, seconds float64) {
	m.GenerationsTotal.WithLabelValues(genType, outcome).Inc()
	m.GenerationDuration.WithLabelValues(genType).Observe(seconds)
}

// RecordToneViolation counts a detected tone violation.
func (m *Metrics) RecordToneViolation(kind string) {
	m.ToneViolationsTotal.WithLabelValues(kind).Inc()
}

// RecordSnapshot counts a computed snapshot.
func (m *Metrics) RecordSnapshot(state string) {
	m.SnapshotsTotal.WithLabelValues(state).Inc()
}

// RecordSuggestion counts a generated suggestion.
func (m *Metrics) RecordSuggestion(suggestionType string) {
	m.SuggestionsTotal.WithLabelValues(suggestionType).Inc()
}

// RecordResponse counts a recorded suggestion response.
func (m *Metrics) RecordResponse(response string) {
	m.ResponsesTotal.WithLabelValues(response).Inc()
}

// SetBreakerState exports a breaker's state as a gauge.
func (m *Metrics) SetBreakerState(name string, state float64) {
	m.BreakerState.WithLabelValues(name).Set(state)
}

// RecordRequest records one HTTP request.
func (m *Metrics) RecordRequest(method, route, status string, seconds float64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}
