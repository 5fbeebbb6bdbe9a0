// Package metrics exposes Prometheus collectors for the shelfscan service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Catalog lookup outcomes.
const (
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
	OutcomeUnavailable = "unavailable"
)

var (
	catalogLookupsTotal          *prometheus.CounterVec
	catalogLookupDurationSeconds *prometheus.HistogramVec
	batchesTotal                 *prometheus.CounterVec
	candidatesTotal              *prometheus.CounterVec
	reenrichUpdatesTotal         prometheus.Counter
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec
	rateLimitDelaySeconds        *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		catalogLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfscan_catalog_lookups_total",
				Help: "Total catalog lookups, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		catalogLookupDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelfscan_catalog_lookup_duration_seconds",
				Help:    "Histogram of catalog lookup latencies including retries.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		)

		batchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfscan_batches_total",
				Help: "Total ingestion batches, labeled by final state.",
			},
			[]string{"state"},
		)

		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfscan_candidates_total",
				Help: "Total candidates processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		reenrichUpdatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shelfscan_reenrich_updates_total",
				Help: "Total records backfilled by the re-enrichment sweep.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelfscan_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations before catalog requests.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveCatalogLookup records one provider lookup and its latency.
func ObserveCatalogLookup(provider, outcome string, duration time.Duration) {
	Init()
	catalogLookupsTotal.WithLabelValues(provider, outcome).Inc()
	catalogLookupDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveBatch increments the batch counter for the given final state.
func ObserveBatch(state string) {
	Init()
	batchesTotal.WithLabelValues(state).Inc()
}

// ObserveCandidate increments the candidate counter for the given outcome.
func ObserveCandidate(outcome string) {
	Init()
	candidatesTotal.WithLabelValues(outcome).Inc()
}

// ObserveReenrichUpdates adds n backfilled records.
func ObserveReenrichUpdates(n int) {
	Init()
	if n > 0 {
		reenrichUpdatesTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}
