package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(notificationsTotal, hubClients)
}

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_notifications_total",
			Help: "Outbound job notifications, by channel and result.",
		},
		[]string{"channel", "result"}, // telegram|hub, sent|dropped|error
	)

	hubClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_hub_clients",
			Help: "Connected websocket clients.",
		},
	)
)

func IncNotification(channel, result string) {
	notificationsTotal.WithLabelValues(norm(channel), norm(result)).Inc()
}

func SetHubClients(n int) {
	hubClients.Set(float64(n))
}
