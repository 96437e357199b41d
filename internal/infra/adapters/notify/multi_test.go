package notify_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/adapters/notify"
)

type stubNotifier struct {
	counts   []int
	finished []string
}

func (s *stubNotifier) ActiveJobsChanged(n int) { s.counts = append(s.counts, n) }

func (s *stubNotifier) JobFinished(job model.Job, ev model.CompletionEvent) {
	s.finished = append(s.finished, job.ID)
}

func TestMultiNotifier_FansOutAndSkipsNil(t *testing.T) {
	a, b := &stubNotifier{}, &stubNotifier{}
	l := zerolog.Nop()
	m := notify.NewMultiNotifier(a, nil, b, notify.NewLogNotifier(&l))

	m.ActiveJobsChanged(2)
	m.JobFinished(model.Job{ID: "j1"}, model.CompletionEvent{Outcome: model.OutcomeCompleted})

	for name, s := range map[string]*stubNotifier{"a": a, "b": b} {
		if len(s.counts) != 1 || s.counts[0] != 2 || len(s.finished) != 1 || s.finished[0] != "j1" {
			t.Fatalf("%s: counts=%v finished=%v", name, s.counts, s.finished)
		}
	}
}
