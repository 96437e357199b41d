package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestLatencyMs) }

var httpRequestLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "scout_http_request_latency_ms",
		Help:    "API request latency in milliseconds, by route and status.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	},
	[]string{"method", "route", "status"},
)

// ObserveHTTP records one request. route is the matched pattern, not the raw
// path, to keep cardinality bounded.
func ObserveHTTP(method, route string, status int, start time.Time) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestLatencyMs.WithLabelValues(method, route, strconv.Itoa(status)).Observe(sinceMs(start))
}
