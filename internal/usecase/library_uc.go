package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/usecase"
)

var _ usecase.DocumentCatalog = (*LibraryUC)(nil)

const libraryPageSize = 1000

// LibraryUC caches the document list. A failed refresh keeps the previous
// list so that the passive count comparison never sees a spurious drop.
type LibraryUC struct {
	objects adapter.ObjectStore
	log     *zerolog.Logger
	now     func() time.Time

	mu   sync.RWMutex
	docs []model.Document
}

func NewLibraryUseCase(objects adapter.ObjectStore, logger *zerolog.Logger) *LibraryUC {
	l := logger.With().Str("component", "library_uc").Logger()
	return &LibraryUC{objects: objects, log: &l, now: time.Now}
}

// Refresh reloads the list and returns the new count.
func (l *LibraryUC) Refresh(ctx context.Context) (int, error) {
	objs, err := l.objects.ListObjects(ctx, libraryPageSize)
	if err != nil {
		return l.Count(), fmt.Errorf("list documents: %w", err)
	}
	now := l.now()
	docs := make([]model.Document, 0, len(objs))
	for _, o := range objs {
		docs = append(docs, model.DocumentFromObject(o, now))
	}
	model.SortNewestFirst(docs)

	l.mu.Lock()
	l.docs = docs
	l.mu.Unlock()
	l.log.Debug().Int("documents", len(docs)).Msg("library refreshed")
	return len(docs), nil
}

func (l *LibraryUC) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}

// Documents returns a copy, newest first.
func (l *LibraryUC) Documents() []model.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Document(nil), l.docs...)
}

func (l *LibraryUC) Find(id string) (model.Document, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, d := range l.docs {
		if d.ID == id {
			return d, true
		}
	}
	return model.Document{}, false
}
