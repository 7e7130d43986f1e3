// Package metrics exposes Prometheus collectors for grammar checks.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

const namespace = "grammar_sentinel"

// Check outcomes
const (
	OutcomeOK           = "ok"
	OutcomeCached       = "cached"
	OutcomeStale        = "stale"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// Metrics holds every collector the service reports
type Metrics struct {
	registry *prometheus.Registry

	checks       *prometheus.CounterVec
	highlights   prometheus.Counter
	skipped      *prometheus.CounterVec
	upstream     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	wsClients    prometheus.Gauge
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Grammar checks by outcome",
			},
			[]string{"outcome"},
		),
		highlights: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "highlights_total",
			Help:      "Highlighted segments produced by the overlay engine",
		}),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_annotations_total",
				Help:      "Annotations that could not be placed, by reason",
			},
			[]string{"reason"},
		),
		upstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Latency of grammar service calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by result",
			},
			[]string{"result"},
		),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected preview clients",
		}),
	}

	m.registry.MustRegister(
		m.checks,
		m.highlights,
		m.skipped,
		m.upstream,
		m.cacheLookups,
		m.wsClients,
		prometheus.NewGoCollector(),
	)
	return m
}

// ObserveCheck records the outcome of one check
func (m *Metrics) ObserveCheck(outcome string) {
	m.checks.WithLabelValues(outcome).Inc()
}

// ObserveOverlay records what the engine did with a result
func (m *Metrics) ObserveOverlay(res overlay.Result) {
	m.highlights.Add(float64(res.Highlights()))
	for _, s := range res.Skipped {
		m.skipped.WithLabelValues(string(s.Reason)).Inc()
	}
}

// ObserveUpstream matches the client observer signature
func (m *Metrics) ObserveUpstream(endpoint string, status int, d time.Duration) {
	m.upstream.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveCache records a cache hit or miss
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// SetClients sets the connected websocket client gauge
func (m *Metrics) SetClients(n int) {
	m.wsClients.Set(float64(n))
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
