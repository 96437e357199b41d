package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
)

// Func is one scheduled unit of work.
type Func func(ctx context.Context) error

type entry struct {
	name string
	spec string
	fn   Func
	id   cron.EntryID
}

// Scheduler runs named functions on cron schedules. Each run gets a bounded
// context derived from the one passed to Start.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	log     *zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewScheduler constructs a scheduler. If timeout <= 0 each run is limited to
// ten minutes.
func NewScheduler(timeout time.Duration, logger *zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	l := logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
		log:     &l,
		entries: make(map[string]*entry),
	}
}

// Add registers fn under name; spec is a standard five field cron expression.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: job %q already scheduled", domain.ErrInvalidArgument, name)
	}
	e := &entry{name: name, spec: spec, fn: fn}
	id, err := s.cron.AddFunc(spec, func() { s.run(e) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	e.id = id
	s.entries[name] = e
	return nil
}

// Start begins firing schedules. Calling Start twice has no effect.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(parent)
	n := len(s.entries)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Int("jobs", n).Msg("scheduler started")
}

// RunNow runs a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %q", domain.ErrNotFound, name)
	}
	return s.run(e)
}

// Next returns the next fire time of a job, or zero when unknown or stopped.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(e.id).Next
}

func (s *Scheduler) run(e *entry) error {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	s.running.Add(1)
	defer s.running.Done()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()
	start := time.Now()
	err := e.fn(ctx)
	l := s.log.With().Str("job", e.name).Dur("took", time.Since(start)).Logger()
	switch {
	case err == nil:
		l.Info().Msg("scheduled job finished")
	case errors.Is(err, domain.ErrGenerationGated), errors.Is(err, domain.ErrGenerationInProgress):
		l.Info().Err(err).Msg("scheduled job skipped")
	default:
		l.Error().Err(err).Msg("scheduled job failed")
	}
	return err
}

// Stop halts the schedules and waits for running jobs. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	<-s.cron.Stop().Done()
	cancel()
	s.running.Wait()
	s.log.Info().Msg("scheduler stopped")
}
