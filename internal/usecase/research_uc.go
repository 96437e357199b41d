// File: internal/usecase/research_uc.go
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

// Compile-time checks
var (
	_ ResearchUseCase = (*researchUC)(nil)
	_ CompletionSink  = (*researchUC)(nil)
)

type ResearchUseCase interface {
	StartJob(ctx context.Context, p model.JobParams) (model.Job, error)
	StartWhiteLabel(ctx context.Context, p model.JobParams) (model.Job, error)
	RestoreOnStartup(ctx context.Context) int
	CompleteJob(jobID string) bool
	Complete(ev model.CompletionEvent) bool
	AttachRun(jobID string, ref model.RunRef) error
	ActiveJobs() []model.Job
}

// Interactions names the vendor interactions used for generation.
type Interactions struct {
	Research   string
	WhiteLabel string
}

// researchUC owns the active job set and is the only writer of the job store.
type researchUC struct {
	runs     adapter.RunAPI
	store    repository.JobStore
	history  repository.HistoryLog
	watcher  CompletionWatcher
	notifier adapter.JobNotifier
	inter    Interactions
	log      *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	active  []*model.Job
	restore sync.Once
}

func NewResearchUseCase(
	runs adapter.RunAPI,
	store repository.JobStore,
	history repository.HistoryLog,
	watcher CompletionWatcher,
	notifier adapter.JobNotifier,
	inter Interactions,
	logger *zerolog.Logger,
) *researchUC {
	if notifier == nil {
		notifier = adapter.NopJobNotifier{}
	}
	l := logger.With().Str("component", "research_uc").Logger()
	return &researchUC{
		runs:     runs,
		store:    store,
		history:  history,
		watcher:  watcher,
		notifier: notifier,
		inter:    inter,
		log:      &l,
		now:      time.Now,
	}
}

func validateResearch(p model.JobParams) error {
	if p.IsFollowUp() {
		if strings.TrimSpace(p.Context) == "" {
			return fmt.Errorf("%w: follow-up needs context", domain.ErrInvalidArgument)
		}
		return nil
	}
	if p.Capability == "" || p.Framework == "" {
		return fmt.Errorf("%w: capability and framework are required", domain.ErrInvalidArgument)
	}
	return nil
}

// StartJob dispatches a research run and tracks it. No job exists when the
// dispatch fails.
func (u *researchUC) StartJob(ctx context.Context, p model.JobParams) (model.Job, error) {
	if err := validateResearch(p); err != nil {
		return model.Job{}, err
	}
	kind := model.JobKindResearch
	if p.IsFollowUp() {
		kind = model.JobKindFollowUp
	}

	ref, err := u.runs.ExecuteAsync(ctx, adapter.ExecuteRequest{
		Interaction: u.inter.Research,
		Data:        map[string]any{"Task": BuildResearchPrompt(p)},
	})
	if err != nil {
		return model.Job{}, u.dispatchFailed(kind, err)
	}

	job := u.track(ctx, kind, p, ref)
	if err := u.history.Append(ctx, model.NewHistoryEntry(p, job.CreatedAt)); err != nil {
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to append research history")
	}
	return job, nil
}

// StartWhiteLabel dispatches a synthesis of existing documents.
func (u *researchUC) StartWhiteLabel(ctx context.Context, p model.JobParams) (model.Job, error) {
	if len(p.DocumentIDs) == 0 || strings.TrimSpace(p.Justification) == "" {
		return model.Job{}, fmt.Errorf("%w: documents and justification are required", domain.ErrInvalidArgument)
	}
	data := BuildWhiteLabelData(p)
	ref, err := u.runs.ExecuteAsync(ctx, adapter.ExecuteRequest{Interaction: u.inter.WhiteLabel, Data: data})
	if err != nil {
		return model.Job{}, u.dispatchFailed(model.JobKindWhiteLabel, err)
	}
	p.Capability = "White Label"
	p.Framework = "Document Synthesis"
	p.Length, _ = data["length"].(string)
	return u.track(ctx, model.JobKindWhiteLabel, p, ref), nil
}

func (u *researchUC) dispatchFailed(kind model.JobKind, err error) error {
	metrics.IncJobStarted(string(kind) + "_failed")
	u.log.Error().Err(err).Str("kind", string(kind)).Msg("dispatch failed")
	return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
}

func (u *researchUC) track(ctx context.Context, kind model.JobKind, p model.JobParams, ref model.RunRef) model.Job {
	if !ref.Valid() {
		ref = model.RunRef{}
	}
	job := model.NewJob(kind, p, ref, u.now())

	u.mu.Lock()
	u.active = append(u.active, job)
	n := u.persistLocked(ctx)
	u.mu.Unlock()

	metrics.IncJobStarted(string(kind))
	u.log.Info().
		Str("job_id", job.ID).
		Str("kind", string(kind)).
		Bool("has_run", job.HasRun()).
		Int("active", n).
		Msg("job started")
	u.watcher.Watch(*job)
	return *job
}

// persistLocked saves the set and refreshes the indicator. Callers hold u.mu.
func (u *researchUC) persistLocked(ctx context.Context) int {
	u.store.Save(ctx, u.active)
	n := len(u.active)
	metrics.SetActiveJobs(n)
	u.notifier.ActiveJobsChanged(n)
	return n
}

// RestoreOnStartup reloads unexpired jobs once per process and schedules
// detection for each survivor.
func (u *researchUC) RestoreOnStartup(ctx context.Context) int {
	restored := 0
	u.restore.Do(func() {
		jobs := u.store.Load(ctx)
		u.mu.Lock()
		known := make(map[string]bool, len(u.active))
		for _, j := range u.active {
			known[j.ID] = true
		}
		for _, j := range jobs {
			if !known[j.ID] {
				u.active = append(u.active, j)
				restored++
			}
		}
		n := u.persistLocked(ctx)
		u.mu.Unlock()

		for _, j := range jobs {
			if !known[j.ID] {
				u.watcher.Watch(*j)
			}
		}
		u.log.Info().Int("restored", restored).Int("active", n).Msg("jobs restored")
	})
	return restored
}

// CompleteJob removes a job on request, outside any detection strategy.
func (u *researchUC) CompleteJob(jobID string) bool {
	return u.Complete(model.CompletionEvent{
		JobID:   jobID,
		Source:  model.SourceManual,
		Outcome: model.OutcomeCompleted,
		At:      u.now(),
	})
}

// Complete applies a completion event. Only the first event for a job has an
// effect; later ones report false.
func (u *researchUC) Complete(ev model.CompletionEvent) bool {
	u.mu.Lock()
	idx := -1
	for i, j := range u.active {
		if j.ID == ev.JobID {
			idx = i
			break
		}
	}
	if idx < 0 {
		u.mu.Unlock()
		return false
	}
	job := *u.active[idx]
	u.active = append(u.active[:idx], u.active[idx+1:]...)
	n := u.persistLocked(context.Background())
	u.mu.Unlock()

	u.watcher.Forget(job.ID)
	if ev.At.IsZero() {
		ev.At = u.now()
	}
	metrics.IncJobFinished(string(ev.Source), string(ev.Outcome))

	e := u.log.Info()
	if ev.Outcome == model.OutcomeExpired {
		e = u.log.Warn()
	}
	e.Str("job_id", job.ID).
		Str("source", string(ev.Source)).
		Str("outcome", string(ev.Outcome)).
		Dur("age", job.Age(ev.At)).
		Int("active", n).
		Msg("job finished")

	u.notifier.JobFinished(job, ev)
	return true
}

// AttachRun records identifiers that arrived after the job was created and
// starts status polling for it.
func (u *researchUC) AttachRun(jobID string, ref model.RunRef) error {
	if !ref.Valid() {
		return domain.ErrMissingRun
	}
	u.mu.Lock()
	var job *model.Job
	for _, j := range u.active {
		if j.ID == jobID {
			job = j
			break
		}
	}
	if job == nil {
		u.mu.Unlock()
		return domain.ErrNotFound
	}
	if job.HasRun() {
		u.mu.Unlock()
		return nil
	}
	job.Run = ref
	snapshot := *job
	u.persistLocked(context.Background())
	u.mu.Unlock()

	u.watcher.Forget(jobID)
	u.watcher.Watch(snapshot)
	return nil
}

// ActiveJobs returns a copy of the active set, oldest first.
func (u *researchUC) ActiveJobs() []model.Job {
	u.mu.Lock()
	out := make([]model.Job, 0, len(u.active))
	for _, j := range u.active {
		out = append(out, *j)
	}
	u.mu.Unlock()
	sort.SliceStable(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}
