// Package metrics exposes Prometheus metrics for the provider access layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/parks-context/internal/resilience"
)

// OutcomeOK labels successful attempts, calls and branches; failures are
// labelled with their error kind.
const OutcomeOK = "ok"

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// UpstreamAttempts counts every upstream attempt by provider and outcome
	UpstreamAttempts *prometheus.CounterVec
	// UpstreamCallDuration measures logical provider calls, retries included
	UpstreamCallDuration *prometheus.HistogramVec
	// RateLimiterWait measures time spent waiting for a token
	RateLimiterWait *prometheus.HistogramVec
	// RateLimiterTokens is the last sampled token count per provider
	RateLimiterTokens *prometheus.GaugeVec
	// ContextBranchResults counts aggregation branch outcomes
	ContextBranchResults *prometheus.CounterVec
}

var (
	_ resilience.Observer = (*Metrics)(nil)
)

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		UpstreamAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_attempts_total",
				Help: "Total number of upstream HTTP attempts",
			},
			[]string{"provider", "outcome"},
		),
		UpstreamCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_call_duration_seconds",
				Help:    "Duration of provider calls including retries in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"provider"},
		),
		RateLimiterWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratelimiter_wait_seconds",
				Help:    "Time spent waiting for a rate limiter token in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"provider"},
		),
		RateLimiterTokens: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratelimiter_available_tokens",
				Help: "Tokens currently available in the provider's rate limiter",
			},
			[]string{"provider"},
		),
		ContextBranchResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "context_branch_results_total",
				Help: "Total number of park context branch results",
			},
			[]string{"branch", "outcome"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err *resilience.Error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(err.Kind)
}

func (m *Metrics) ObserveAttempt(provider string, _ int, _ time.Duration, err *resilience.Error) {
	m.UpstreamAttempts.WithLabelValues(provider, outcome(err)).Inc()
}

func (m *Metrics) ObserveThrottle(provider string, waited time.Duration, _ *resilience.Error) {
	m.RateLimiterWait.WithLabelValues(provider).Observe(waited.Seconds())
}

func (m *Metrics) ObserveCall(provider string, elapsed time.Duration, _ *resilience.Error) {
	m.UpstreamCallDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveBranch records one aggregation branch outcome.
func (m *Metrics) ObserveBranch(branch string, err *resilience.Error) {
	m.ContextBranchResults.WithLabelValues(branch, outcome(err)).Inc()
}

// SetAvailableTokens publishes a rate limiter snapshot.
func (m *Metrics) SetAvailableTokens(provider string, tokens float64) {
	m.RateLimiterTokens.WithLabelValues(provider).Set(tokens)
}
