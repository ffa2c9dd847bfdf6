// Package metrics holds the Prometheus collectors exported at GET /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPRequests counts handled requests by method, route pattern and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shelf_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks request latency by route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "shelf_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// PersistOps counts persistence operations by backend kind, operation and result.
var PersistOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shelf_persist_operations_total",
	Help: "Persistence operations by backend, operation and result.",
}, []string{"backend", "op", "result"})

// PersistDuration tracks the latency of one persistence operation.
var PersistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "shelf_persist_duration_seconds",
	Help:    "Persistence operation latency in seconds.",
	Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
}, []string{"backend", "op"})

// CDNRewrites counts rewriter calls split by cache hit or miss.
var CDNRewrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shelf_cdn_rewrites_total",
	Help: "CDN URL rewrites by cache outcome.",
}, []string{"cache"})

// CDNCacheSize is the number of cached URL rewrites.
var CDNCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "shelf_cdn_cache_entries",
	Help: "Number of cached CDN URL rewrites.",
})

// CatalogItems is the number of records per section after the last mutation.
var CatalogItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "shelf_catalog_items",
	Help: "Number of catalog records by section.",
}, []string{"section"})

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePersist records one persistence operation.
func ObservePersist(backend, op string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PersistOps.WithLabelValues(backend, op, result).Inc()
	PersistDuration.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

// SetCatalogCounts updates the per-section gauges.
func SetCatalogCounts(movies, series, episodes int) {
	CatalogItems.WithLabelValues("movies").Set(float64(movies))
	CatalogItems.WithLabelValues("series").Set(float64(series))
	CatalogItems.WithLabelValues("episodes").Set(float64(episodes))
}
