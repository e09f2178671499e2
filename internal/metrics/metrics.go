// Package metrics exposes Prometheus counters for provider lookups, cache
// behaviour and substituted defaults. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "b3-tracker/internal/errors"
)

const namespace = "b3tracker"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry         *prometheus.Registry
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	defaultsApplied  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "External provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "External provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		defaultsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defaults_applied_total",
			Help:      "Values replaced by a default, by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.providerRequests,
		m.providerLatency,
		m.cacheLookups,
		m.defaultsApplied,
		m.httpRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveProvider records one provider call started at start.
func (m *Metrics) ObserveProvider(provider string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	m.providerRequests.WithLabelValues(provider, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.Is(err, apperrors.ErrTickerNotFound):
		return "not_found"
	case apperrors.Is(err, apperrors.ErrRateLimited):
		return "rate_limited"
	case apperrors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// CacheLookup records a hit or miss on the named cache.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordWarnings counts substituted defaults by kind.
func (m *Metrics) RecordWarnings(warnings []apperrors.Warning) {
	if m == nil {
		return
	}
	for _, w := range warnings {
		m.defaultsApplied.WithLabelValues(string(w.Kind)).Inc()
	}
}

// ObserveHTTP records one API response.
func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
