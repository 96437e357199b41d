package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/worker"
)

// CollectionNamer resolves collection ids for chat scope text.
type CollectionNamer interface {
	Name(id string) string
}

var _ CollectionNamer = (*CollectionsUC)(nil)

// CollectionsUC mirrors the vendor's static collections and their members.
type CollectionsUC struct {
	store adapter.CollectionStore
	pool  *worker.Pool
	log   *zerolog.Logger

	mu    sync.RWMutex
	items []model.Collection
}

func NewCollectionsUseCase(store adapter.CollectionStore, pool *worker.Pool, logger *zerolog.Logger) *CollectionsUC {
	l := logger.With().Str("component", "collections_uc").Logger()
	return &CollectionsUC{store: store, pool: pool, log: &l}
}

// Load fetches all collections, then their members through the pool. A
// collection whose members fail to load is kept with no members.
func (c *CollectionsUC) Load(ctx context.Context) ([]model.Collection, error) {
	cols, err := c.store.SearchCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("search collections: %w", err)
	}
	batch := c.pool.Batch()
	var submitErr error
	for i := range cols {
		i := i
		if submitErr = batch.Submit(ctx, func(ctx context.Context) error {
			ids, err := c.store.CollectionMembers(ctx, cols[i].ID)
			if err != nil {
				return fmt.Errorf("members of %s: %w", cols[i].ID, err)
			}
			cols[i].MemberIDs = ids
			return nil
		}); submitErr != nil {
			break
		}
	}
	// Submitted tasks write into cols; wait for them even when submission stopped early.
	err = batch.Wait()
	if submitErr != nil {
		return nil, submitErr
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("some collection members failed to load")
	}

	c.mu.Lock()
	c.items = cols
	c.mu.Unlock()
	return c.Collections(), nil
}

// Collections returns a deep copy of the cached list.
func (c *CollectionsUC) Collections() []model.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Collection, len(c.items))
	for i, col := range c.items {
		col.MemberIDs = append([]string(nil), col.MemberIDs...)
		out[i] = col
	}
	return out
}

// Name returns the collection name, or the id itself when unknown.
func (c *CollectionsUC) Name(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, col := range c.items {
		if col.ID == id {
			return col.Name
		}
	}
	return id
}

func (c *CollectionsUC) DocumentCount(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, col := range c.items {
		if col.ID == id {
			return len(col.MemberIDs)
		}
	}
	return 0
}

func (c *CollectionsUC) Create(ctx context.Context, name, description string) (model.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Collection{}, fmt.Errorf("%w: collection name is required", domain.ErrInvalidArgument)
	}
	col, err := c.store.CreateCollection(ctx, name, description)
	if err != nil {
		return model.Collection{}, err
	}
	c.mu.Lock()
	c.items = append(c.items, col)
	c.mu.Unlock()
	c.log.Info().Str("collection_id", col.ID).Msg("collection created")
	return col, nil
}

func (c *CollectionsUC) Delete(ctx context.Context, id string) error {
	if err := c.store.DeleteCollection(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	for i, col := range c.items {
		if col.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// AddDocuments and RemoveDocuments update membership remotely, then locally.
func (c *CollectionsUC) AddDocuments(ctx context.Context, id string, docIDs []string) error {
	return c.updateMembers(ctx, id, adapter.MemberAdd, docIDs)
}

func (c *CollectionsUC) RemoveDocuments(ctx context.Context, id string, docIDs []string) error {
	return c.updateMembers(ctx, id, adapter.MemberRemove, docIDs)
}

func (c *CollectionsUC) updateMembers(ctx context.Context, id string, action adapter.MemberAction, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	if err := c.store.UpdateMembers(ctx, id, action, docIDs); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID != id {
			continue
		}
		set := make(map[string]bool, len(c.items[i].MemberIDs))
		for _, m := range c.items[i].MemberIDs {
			set[m] = true
		}
		for _, d := range docIDs {
			set[d] = action == adapter.MemberAdd
		}
		members := c.items[i].MemberIDs[:0]
		seen := make(map[string]bool, len(set))
		for _, m := range append(append([]string(nil), c.items[i].MemberIDs...), docIDs...) {
			if set[m] && !seen[m] {
				members = append(members, m)
				seen[m] = true
			}
		}
		c.items[i].MemberIDs = members
	}
	return nil
}
