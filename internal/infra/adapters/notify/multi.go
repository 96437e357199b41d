package notify

import (
	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
)

var (
	_ adapter.JobNotifier = (*MultiNotifier)(nil)
	_ adapter.JobNotifier = (*LogNotifier)(nil)
)

// MultiNotifier forwards every update to each target in order. Nil targets
// are skipped.
type MultiNotifier struct {
	targets []adapter.JobNotifier
}

func NewMultiNotifier(targets ...adapter.JobNotifier) *MultiNotifier {
	kept := make([]adapter.JobNotifier, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &MultiNotifier{targets: kept}
}

func (m *MultiNotifier) ActiveJobsChanged(n int) {
	for _, t := range m.targets {
		t.ActiveJobsChanged(n)
	}
}

func (m *MultiNotifier) JobFinished(job model.Job, ev model.CompletionEvent) {
	for _, t := range m.targets {
		t.JobFinished(job, ev)
	}
}

// LogNotifier records indicator changes at debug level.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "job_indicator").Logger()
	return &LogNotifier{log: &l}
}

func (l *LogNotifier) ActiveJobsChanged(n int) {
	l.log.Debug().Int("active", n).Msg("indicator updated")
}

func (l *LogNotifier) JobFinished(job model.Job, ev model.CompletionEvent) {
	l.log.Debug().Str("job_id", job.ID).Str("kind", string(job.Kind)).Str("outcome", string(ev.Outcome)).Msg("job left the indicator")
}
