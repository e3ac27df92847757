// Package metrics exposes the Prometheus collectors of the editor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fencedraw_http_requests_total",
		Help: "Total HTTP requests by method and status",
	}, []string{"method", "status"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fencedraw_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CommitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fencedraw_commits_total",
		Help: "Total layer commits into the feature collection",
	})
	RebuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fencedraw_rebuilds_total",
		Help: "Total layer rebuilds from the feature collection",
	})
	LiveLayers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fencedraw_live_layers",
		Help: "Number of live layers after the last reconciliation",
	})
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fencedraw_fetch_total",
		Help: "Data service requests by operation and status",
	}, []string{"op", "status"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fencedraw_cache_hits_total",
		Help: "Total data service cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fencedraw_cache_misses_total",
		Help: "Total data service cache misses",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(RebuildsTotal)
	prometheus.MustRegister(LiveLayers)
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler serves the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
