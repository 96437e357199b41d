package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(buildInfo, startTime) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scout_build_info",
			Help: "Always 1; labels carry the scout version, commit and Go runtime.",
		},
		[]string{"version", "commit", "go_version"},
	)
	startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_start_time_seconds",
			Help: "Unix time the process recorded its build info.",
		},
	)
)

// SetBuildInfo publishes the binary's identity. Empty values read "unknown".
func SetBuildInfo(version, commit string) {
	if version == "" {
		version = "unknown"
	}
	if commit == "" {
		commit = "unknown"
	}
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
	startTime.Set(float64(time.Now().Unix()))
}
