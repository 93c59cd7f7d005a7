// Package metrics exposes Prometheus instruments for generator calls, checker
// runs and refinement loops.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/snow-ghost/patrefine/core"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// Generator metrics
	RequestsTotal     *prometheus.CounterVec
	LatencyHistogram  *prometheus.HistogramVec
	TokensInputTotal  *prometheus.CounterVec
	TokensOutputTotal *prometheus.CounterVec

	// Checker metrics
	CheckerRunsTotal    *prometheus.CounterVec
	CheckerLatency      *prometheus.HistogramVec
	VerificationsTotal  *prometheus.CounterVec
	MismatchesHistogram *prometheus.HistogramVec

	// Loop metrics
	GenerationAttemptsTotal *prometheus.CounterVec
	RefineRoundsTotal       prometheus.Counter
	RunsTotal               *prometheus.CounterVec
	RunDuration             prometheus.Histogram
}

// NewPrometheusMetrics registers the instruments with reg. A nil reg uses the
// default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patrefine_llm_requests_total",
				Help: "Total number of generator requests",
			},
			[]string{"provider", "model", "status"},
		),
		LatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patrefine_llm_latency_seconds",
				Help:    "Generator request latency in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"provider", "model"},
		),
		TokensInputTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patrefine_llm_tokens_input_total",
				Help: "Total number of prompt tokens sent",
			},
			[]string{"provider", "model"},
		),
		TokensOutputTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patrefine_llm_tokens_output_total",
				Help: "Total number of completion tokens received",
			},
			[]string{"provider", "model"},
		),

		CheckerRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patrefine_checker_runs_total",
				Help: "Total number of model checker invocations",
			},
			[]string{"engine", "status"},
		),
		CheckerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patrefine_checker_latency_seconds",
				Help:    "Model checker run time in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"engine"},
		),
		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patrefine_verifications_total",
				Help: "Verification passes by outcome",
			},
			[]string{"phase", "outcome"},
		),
		MismatchesHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patrefine_mismatches",
				Help:    "Mismatched assertions per verified pass",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
			[]string{"phase"},
		),

		GenerationAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patrefine_generation_attempts_total",
				Help: "Generator attempts by phase",
			},
			[]string{"phase"},
		),
		RefineRoundsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "patrefine_refine_rounds_total",
				Help: "Refinement rounds started",
			},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patrefine_runs_total",
				Help: "Finished runs by terminal status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "patrefine_run_duration_seconds",
				Help:    "Wall time of a whole run",
				Buckets: prometheus.ExponentialBuckets(10, 2, 10),
			},
		),
	}
}

// RecordRequest records a generator request and its latency.
func (m *PrometheusMetrics) RecordRequest(provider, model, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LatencyHistogram.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records token metrics
func (m *PrometheusMetrics) RecordTokens(provider, model string, inputTokens, outputTokens int) {
	if inputTokens > 0 {
		m.TokensInputTotal.WithLabelValues(provider, model).Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.TokensOutputTotal.WithLabelValues(provider, model).Add(float64(outputTokens))
	}
}

// ObserveCheck records one checker invocation.
func (m *PrometheusMetrics) ObserveCheck(mode core.EngineMode, d time.Duration, err error) {
	status := "ok"
	switch {
	case errors.Is(err, core.ErrCheckerTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	m.CheckerRunsTotal.WithLabelValues(mode.String(), status).Inc()
	m.CheckerLatency.WithLabelValues(mode.String()).Observe(d.Seconds())
}

// RecordVerification records one split+verify+classify pass.
func (m *PrometheusMetrics) RecordVerification(phase core.Phase, o core.VerifyOutcome) {
	m.VerificationsTotal.WithLabelValues(string(phase), string(o.Kind())).Inc()
	if v, ok := o.(core.Verified); ok {
		m.MismatchesHistogram.WithLabelValues(string(phase)).Observe(float64(len(v.Mismatches)))
	}
}

// RecordAttempt records one generator attempt of the loop.
func (m *PrometheusMetrics) RecordAttempt(phase core.Phase) {
	m.GenerationAttemptsTotal.WithLabelValues(string(phase)).Inc()
}

// RecordRound records the start of a refinement round.
func (m *PrometheusMetrics) RecordRound() {
	m.RefineRoundsTotal.Inc()
}

// RecordRun records a finished run.
func (m *PrometheusMetrics) RecordRun(status core.RunStatus, d time.Duration) {
	m.RunsTotal.WithLabelValues(string(status)).Inc()
	m.RunDuration.Observe(d.Seconds())
}
