package vertesia

import (
	"context"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.RunAPI = (*limitedRuns)(nil)

type limitedRuns struct {
	inner adapter.RunAPI
	sem   chan struct{}
}

// NewLimitedRuns bounds concurrent dispatch and status calls. Streams are
// not counted once opened.
func NewLimitedRuns(inner adapter.RunAPI, maxConcurrent int) adapter.RunAPI {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedRuns{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedRuns) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedRuns) release() { <-l.sem }

func (l *limitedRuns) ExecuteAsync(ctx context.Context, req adapter.ExecuteRequest) (model.RunRef, error) {
	if err := l.acquire(ctx); err != nil {
		return model.RunRef{}, err
	}
	defer l.release()
	return l.inner.ExecuteAsync(ctx, req)
}

func (l *limitedRuns) RunStatus(ctx context.Context, ref model.RunRef) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.RunStatus(ctx, ref)
}

func (l *limitedRuns) StreamRun(ctx context.Context, ref model.RunRef, since time.Time) (adapter.EventStream, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.StreamRun(ctx, ref, since)
}
