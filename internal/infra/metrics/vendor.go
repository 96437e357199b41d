package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(vendorCallLatencyMs) }

var vendorCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "scout_vendor_call_latency_ms",
		Help:    "Vendor API call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
	[]string{"endpoint", "success"},
)

// ObserveVendorCall records one call started at start.
func ObserveVendorCall(endpoint string, start time.Time, success bool) {
	vendorCallLatencyMs.WithLabelValues(norm(endpoint), boolLabel(success)).Observe(sinceMs(start))
}
