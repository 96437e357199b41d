package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(pulseGenerationsTotal) }

var pulseGenerationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scout_pulse_generations_total",
		Help: "Portfolio Pulse generation attempts by result.",
	},
	[]string{"result"}, // dispatched, gated, in_progress, failed
)

func IncPulseGeneration(result string) {
	pulseGenerationsTotal.WithLabelValues(norm(result)).Inc()
}
