// File: internal/domain/ports/repository/state.go
package repository

import (
	"context"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
)

// JobStore keeps the active job set across restarts. Save never fails the
// caller; Load never returns expired or unreadable records.
type JobStore interface {
	Save(ctx context.Context, jobs []*model.Job)
	Load(ctx context.Context) []*model.Job
	Clear(ctx context.Context)
}

// HistoryLog is the append-only research submission log.
type HistoryLog interface {
	Append(ctx context.Context, e model.HistoryEntry) error
	List(ctx context.Context) ([]model.HistoryEntry, error)
}

// ChatHistoryRepository stores saved chat sessions, newest first.
type ChatHistoryRepository interface {
	List(ctx context.Context) ([]*model.ChatSession, error)
	Get(ctx context.Context, id string) (*model.ChatSession, error)
	Save(ctx context.Context, s *model.ChatSession) error
	ToggleStar(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// PulseStateRepository tracks digest generation and watchlist upload times.
type PulseStateRepository interface {
	LastGeneration(ctx context.Context) (time.Time, error)
	SetLastGeneration(ctx context.Context, t time.Time) error
	ClearLastGeneration(ctx context.Context) error
	Uploads(ctx context.Context) ([]time.Time, error)
	SetUploads(ctx context.Context, ts []time.Time) error
}
