// File: internal/usecase/detector.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/usecase"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/logging"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var _ CompletionWatcher = (*Detector)(nil)

// CompletionWatcher schedules and cancels completion detection for a job.
type CompletionWatcher interface {
	Watch(job model.Job)
	Forget(jobID string)
}

// CompletionSink consumes completion events. Complete must be idempotent.
type CompletionSink interface {
	Complete(ev model.CompletionEvent) bool
	ActiveJobs() []model.Job
}

type DetectorConfig struct {
	PollInterval    time.Duration
	PassiveInterval time.Duration
	Ceiling         time.Duration
}

type watch struct {
	cancel context.CancelFunc
	timer  *time.Timer
}

// Detector runs two producers against one sink: a status poller per job with
// a run reference, and one shared passive watcher comparing the document
// count before and after each refresh. Every job also gets a ceiling timer.
type Detector struct {
	runs adapter.RunAPI
	lib  usecase.DocumentLibrary
	cfg  DetectorConfig
	log  *zerolog.Logger
	now  func() time.Time

	// refreshMu keeps a before/after count pair from interleaving with another
	// refresh and guards the baseline.
	refreshMu sync.Mutex
	seen      int
	seenSet   bool

	mu      sync.Mutex
	ctx     context.Context
	stop    context.CancelFunc
	sink    CompletionSink
	pending []model.Job
	watches map[string]*watch
	wg      sync.WaitGroup
}

func NewDetector(runs adapter.RunAPI, lib usecase.DocumentLibrary, cfg DetectorConfig, logger *zerolog.Logger) *Detector {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.PassiveInterval <= 0 {
		cfg.PassiveInterval = cfg.PollInterval
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = 30 * time.Minute
	}
	l := logger.With().Str("component", "completion_detector").Logger()
	return &Detector{
		runs:    runs,
		lib:     lib,
		cfg:     cfg,
		log:     &l,
		now:     time.Now,
		watches: make(map[string]*watch),
	}
}

// Start binds the sink and launches the passive watcher. Jobs watched before
// Start are scheduled here.
func (d *Detector) Start(ctx context.Context, sink CompletionSink) {
	d.mu.Lock()
	if d.ctx != nil {
		d.mu.Unlock()
		return
	}
	d.ctx, d.stop = context.WithCancel(ctx)
	d.sink = sink
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	d.wg.Add(1)
	go d.passiveLoop()
	for _, j := range pending {
		d.Watch(j)
	}
}

// Stop cancels every poller and timer and waits for the goroutines to exit.
func (d *Detector) Stop() {
	d.mu.Lock()
	if d.stop != nil {
		d.stop()
	}
	for id, w := range d.watches {
		w.timer.Stop()
		w.cancel()
		delete(d.watches, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Watch arms the ceiling timer and, when the job has a run reference, a status
// poller. Watching the same job twice is a no-op.
func (d *Detector) Watch(job model.Job) {
	d.refreshMu.Lock()
	if !d.seenSet {
		d.seen, d.seenSet = d.lib.Count(), true
	}
	d.refreshMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		d.pending = append(d.pending, job)
		return
	}
	if _, ok := d.watches[job.ID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(d.ctx)
	remaining := job.Deadline(d.cfg.Ceiling).Sub(d.now())
	if remaining < 0 {
		remaining = 0
	}
	w := &watch{cancel: cancel}
	w.timer = time.AfterFunc(remaining, func() {
		d.emit(job, model.SourceExpiry, model.OutcomeExpired)
	})
	d.watches[job.ID] = w

	if job.HasRun() {
		d.wg.Add(1)
		go d.poll(ctx, job)
	}
}

// Forget stops detection for a job.
func (d *Detector) Forget(jobID string) {
	d.mu.Lock()
	w, ok := d.watches[jobID]
	delete(d.watches, jobID)
	d.mu.Unlock()
	if ok {
		w.timer.Stop()
		w.cancel()
	}
}

func (d *Detector) emit(job model.Job, src model.CompletionSource, out model.CompletionOutcome) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink == nil {
		return
	}
	sink.Complete(model.CompletionEvent{JobID: job.ID, Source: src, Outcome: out, At: d.now()})
}

func (d *Detector) poll(ctx context.Context, job model.Job) {
	defer d.wg.Done()
	l := logging.With(logging.WithJobID(ctx, job.ID), d.log)
	t := time.NewTicker(d.cfg.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		status, err := d.runs.RunStatus(ctx, job.Run)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncRunPoll("error")
			l.Debug().Err(err).Msg("status poll failed; still in progress")
			continue
		}
		bucket := model.ClassifyRunStatus(status)
		metrics.IncRunPoll(bucket.String())
		l.Trace().Str("status", status).Str("bucket", bucket.String()).Msg("status polled")

		switch bucket {
		case model.RunComplete:
			d.refresh(ctx)
			d.emit(job, model.SourcePoll, model.OutcomeCompleted)
			return
		case model.RunFailed:
			d.emit(job, model.SourcePoll, model.OutcomeFailed)
			return
		}
	}
}

func (d *Detector) refresh(ctx context.Context) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()
	n, err := d.lib.Refresh(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("document refresh failed")
		return
	}
	d.seen, d.seenSet = n, true
}

func (d *Detector) passiveLoop() {
	defer d.wg.Done()
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()

	t := time.NewTicker(d.cfg.PassiveInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.CheckPassive(ctx)
		}
	}
}

// eligible returns every active job, oldest first. Jobs with a run reference
// are included: a document count cannot say which run produced it.
func (d *Detector) eligible() []model.Job {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.ActiveJobs()
}

// CheckPassive runs one passive pass: refresh the library and complete one
// active job per net-new document, oldest first. Net-new is measured against
// the count this detector last observed, so refreshes made elsewhere do not
// absorb the delta. It returns the number of completions it emitted.
func (d *Detector) CheckPassive(ctx context.Context) int {
	jobs := d.eligible()
	if len(jobs) == 0 {
		d.refreshMu.Lock()
		d.seenSet = false
		d.refreshMu.Unlock()
		metrics.IncPassiveCheck("idle")
		return 0
	}

	d.refreshMu.Lock()
	before := d.seen
	if !d.seenSet {
		before = d.lib.Count()
	}
	after, err := d.lib.Refresh(ctx)
	if err == nil {
		d.seen, d.seenSet = after, true
	}
	d.refreshMu.Unlock()
	if err != nil {
		metrics.IncPassiveCheck("error")
		d.log.Debug().Err(err).Msg("passive refresh failed")
		return 0
	}

	delta := after - before
	if delta <= 0 {
		metrics.IncPassiveCheck("unchanged")
		return 0
	}
	metrics.IncPassiveCheck("delta")
	if delta > len(jobs) {
		delta = len(jobs)
	}
	d.log.Info().Int("new_documents", after-before).Int("completing", delta).Msg("passive detection")
	for _, j := range jobs[:delta] {
		d.emit(j, model.SourcePassive, model.OutcomeCompleted)
	}
	return delta
}
