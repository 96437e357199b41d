package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatExchangesTotal) }

var chatExchangesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scout_chat_exchanges_total",
		Help: "Chat exchanges by terminal outcome.",
	},
	[]string{"outcome"}, // answered, no_answer, dispatch_failed, stream_failed, cancelled, rejected
)

func IncChatExchange(outcome string) {
	chatExchangesTotal.WithLabelValues(norm(outcome)).Inc()
}
