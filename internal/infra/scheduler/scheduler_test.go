package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
)

func TestScheduler_AddRejectsBadSpecAndDuplicates(t *testing.T) {
	l := zerolog.Nop()
	s := NewScheduler(time.Second, &l)
	if err := s.Add("pulse", "not a cron", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if err := s.Add("pulse", "30 9 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("pulse", "0 10 * * *", func(context.Context) error { return nil }); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestScheduler_RunNowBoundsTheContext(t *testing.T) {
	l := zerolog.Nop()
	s := NewScheduler(20*time.Millisecond, &l)
	var deadline time.Time
	s.Add("pulse", "30 9 * * *", func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return domain.ErrGenerationGated
	})
	s.Start(context.Background())
	defer s.Stop()

	if err := s.RunNow("pulse"); !errors.Is(err, domain.ErrGenerationGated) {
		t.Fatalf("expected the job error, got %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > 20*time.Millisecond {
		t.Fatalf("run context must carry the timeout, got %v", deadline)
	}
	if s.Next("pulse").IsZero() {
		t.Fatal("started schedule must report its next run")
	}
	if err := s.RunNow("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduler_StopIsIdempotentAndBlocksRuns(t *testing.T) {
	l := zerolog.Nop()
	s := NewScheduler(time.Second, &l)
	ran := 0
	s.Add("pulse", "@daily", func(context.Context) error { ran++; return nil })
	s.Stop()
	s.Start(context.Background())
	s.Stop()
	s.Stop()
	if err := s.RunNow("pulse"); !errors.Is(err, context.Canceled) || ran != 0 {
		t.Fatalf("runs after stop must not execute: err=%v ran=%d", err, ran)
	}
}
