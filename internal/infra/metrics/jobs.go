package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsStartedTotal,
		jobsFinishedTotal,
		activeJobs,
		runPollsTotal,
		passiveChecksTotal,
	)
}

var (
	jobsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_jobs_started_total",
			Help: "Generation jobs accepted by the vendor, by kind.",
		},
		[]string{"kind"}, // research, follow_up, white_label
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_jobs_finished_total",
			Help: "Jobs removed from the active set, by detection source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_active_jobs",
			Help: "Jobs currently generating.",
		},
	)

	runPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_run_polls_total",
			Help: "Run status polls, by resulting bucket.",
		},
		[]string{"bucket"}, // complete, failed, in_progress, error
	)

	passiveChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_passive_checks_total",
			Help: "Document count checks, by result.",
		},
		[]string{"result"}, // unchanged, delta, error
	)
)

func IncJobStarted(kind string) {
	jobsStartedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobFinished(source, outcome string) {
	jobsFinishedTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
}

func SetActiveJobs(n int) {
	activeJobs.Set(float64(n))
}

func IncRunPoll(bucket string) {
	runPollsTotal.WithLabelValues(norm(bucket)).Inc()
}

func IncPassiveCheck(result string) {
	passiveChecksTotal.WithLabelValues(norm(result)).Inc()
}
