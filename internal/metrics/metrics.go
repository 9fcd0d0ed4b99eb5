// Package metrics holds the Prometheus instruments shared by the HTTP
// surface, the upstream client, the grouping pass and the stores.
//
//	animewave_http_requests_total               counter   method, route, status
//	animewave_http_request_duration_seconds     histogram method, route
//	animewave_upstream_requests_total           counter   endpoint, outcome
//	animewave_upstream_request_duration_seconds histogram endpoint
//	animewave_grouping_collapse_ratio           histogram endpoint
//	animewave_store_operations_total            counter   store, op, outcome
//	animewave_feed_connections                  gauge
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animewave_http_requests_total",
		Help: "Total HTTP requests handled.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animewave_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animewave_upstream_requests_total",
		Help: "Calls made to the catalog provider.",
	}, []string{"endpoint", "outcome"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animewave_upstream_request_duration_seconds",
		Help:    "Catalog provider round-trip time in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	// GroupingCollapse is raw rows divided by canonical items for one call.
	// It is the number the over-fetch multipliers are tuned against.
	GroupingCollapse = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animewave_grouping_collapse_ratio",
		Help:    "Raw upstream rows per canonical item after grouping.",
		Buckets: []float64{1, 1.5, 2, 2.5, 3, 4, 5, 7.5, 10},
	}, []string{"endpoint"})

	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animewave_store_operations_total",
		Help: "User-state store operations.",
	}, []string{"store", "op", "outcome"})

	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animewave_feed_connections",
		Help: "Open websocket change-feed connections.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request counts and latency labelled by the matched
// route template, never the raw path.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func ObserveUpstream(endpoint string, start time.Time, err error) {
	UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	UpstreamRequests.WithLabelValues(endpoint, outcome(err)).Inc()
}

func ObserveGrouping(endpoint string, raw, grouped int) {
	if grouped == 0 {
		return
	}
	GroupingCollapse.WithLabelValues(endpoint).Observe(float64(raw) / float64(grouped))
}

func ObserveStore(store, op string, err error) {
	StoreOperations.WithLabelValues(store, op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
