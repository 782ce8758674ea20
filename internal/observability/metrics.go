package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream provider calls by outcome. Watch for: error vs success ratio per provider.
	ProviderCallsTotal *prometheus.CounterVec

	// Upstream latency per attempt. Watch for: p95 approaching the 30s provider timeout.
	ProviderDuration *prometheus.HistogramVec

	// Retry attempts per provider. Watch for: high retries = unstable upstream.
	ProviderRetriesTotal *prometheus.CounterVec

	// Provider failures by error category (timeout, network, upstream_5xx, parsing...).
	ProviderErrorsTotal *prometheus.CounterVec

	// Circuit state per upstream: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Snapshot cache outcomes by source (hit, refresh, coalesced, stale, store).
	SnapshotRequestsTotal *prometheus.CounterVec

	// Age of the snapshot last served. Watch for: sustained growth past the TTL (refresh failing).
	SnapshotAgeSeconds prometheus.Gauge

	// Snapshots served stale after a failed refresh.
	SnapshotStaleTotal prometheus.Counter

	// Per-area assessments by level and provenance. Watch for: provenance shifting to FALLBACK.
	AssessmentsTotal *prometheus.CounterVec

	// Latest score per area. Area IDs come from the static catalog so cardinality is bounded.
	AreaRiskScore *prometheus.GaugeVec

	// Latest global alert tier: 0 NORMAL, 1 ATENCAO, 2 ALERTA, 3 EMERGENCIA.
	GlobalAlertLevel prometheus.Gauge

	// Time to compute a full assessment run, including snapshot fetch on miss.
	AssessmentRunDuration prometheus.Histogram

	// History events emitted per sink and outcome.
	HistoryEventsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of upstream provider calls",
		},
		[]string{"provider", "status"},
	)
	ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerDurationSeconds",
			Help:    "Upstream provider latency in seconds (per attempt)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "status"},
	)
	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerRetriesTotal",
			Help: "Total number of retry attempts for upstream provider calls",
		},
		[]string{"provider"},
	)
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerErrorsTotal",
			Help: "Upstream provider failures by error category",
		},
		[]string{"provider", "category"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per component (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	SnapshotRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotRequestsTotal",
			Help: "Snapshot cache lookups by source (hit, refresh, coalesced, stale, store)",
		},
		[]string{"source"},
	)
	SnapshotAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshotAgeSeconds",
			Help: "Age in seconds of the snapshot most recently served",
		},
	)
	SnapshotStaleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotStaleTotal",
			Help: "Total number of stale snapshots served after a failed refresh",
		},
	)
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessmentsTotal",
			Help: "Per-area risk assessments by level and provenance",
		},
		[]string{"level", "provenance"},
	)
	AreaRiskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "areaRiskScore",
			Help: "Most recent flood-risk score per area",
		},
		[]string{"area"},
	)
	GlobalAlertLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "globalAlertLevel",
			Help: "Most recent global alert tier (0 NORMAL, 1 ATENCAO, 2 ALERTA, 3 EMERGENCIA)",
		},
	)
	AssessmentRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessmentRunDurationSeconds",
			Help:    "Latency of a full assessment run in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30, 60},
		},
	)
	HistoryEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "historyEventsTotal",
			Help: "Assessment history events emitted per sink and outcome",
		},
		[]string{"sink", "status"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderCallsTotal, ProviderDuration, ProviderRetriesTotal, ProviderErrorsTotal,
		CircuitBreakerState,
		SnapshotRequestsTotal, SnapshotAgeSeconds, SnapshotStaleTotal,
		AssessmentsTotal, AreaRiskScore, GlobalAlertLevel, AssessmentRunDuration,
		HistoryEventsTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterGaugeFunc exposes a computed value on the service registry.
// Registering the same name twice panics; call once at startup.
func RegisterGaugeFunc(name, help string, fn func() float64) {
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
