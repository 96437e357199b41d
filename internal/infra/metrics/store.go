package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storeErrorsTotal, storePoolStats) }

var (
	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_store_errors_total",
			Help: "Durable store failures by operation.",
		},
		[]string{"op"}, // get, set, delete, decode
	)

	storePoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scout_store_pool_stats",
			Help: "Current state of the postgres connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)
)

func IncStoreError(op string) {
	storeErrorsTotal.WithLabelValues(norm(op)).Inc()
}

func SetStorePoolStats(total, idle, inUse int32) {
	storePoolStats.WithLabelValues("total").Set(float64(total))
	storePoolStats.WithLabelValues("idle").Set(float64(idle))
	storePoolStats.WithLabelValues("in_use").Set(float64(inUse))
}
