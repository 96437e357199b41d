package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var _ repository.ChatHistoryRepository = (*ChatHistory)(nil)

// ChatHistory keeps saved sessions newest first, capped at max entries.
type ChatHistory struct {
	kv  repository.KVStore
	key string
	max int
	log *zerolog.Logger
	now func() time.Time

	mu sync.Mutex
}

func NewChatHistory(kv repository.KVStore, key string, max int, logger *zerolog.Logger) *ChatHistory {
	l := logger.With().Str("component", "chat_history").Logger()
	return &ChatHistory{kv: kv, key: key, max: max, log: &l, now: time.Now}
}

func (c *ChatHistory) List(ctx context.Context) ([]*model.ChatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read(ctx)
}

func (c *ChatHistory) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Save assigns an id to new sessions and keeps the starred flag of an
// existing entry. The caller's session receives the id and title.
func (c *ChatHistory) Save(ctx context.Context, s *model.ChatSession) error {
	if len(s.Turns) == 0 {
		return fmt.Errorf("save empty chat: %w", domain.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.read(ctx)
	if err != nil {
		return err
	}
	now := c.now()
	if s.ID == "" {
		s.ID = "chat_" + ulid.Make().String()
	}
	s.Title = s.DeriveTitle()
	s.UpdatedAt = now

	rec := s.Clone()
	idx := -1
	for i, existing := range all {
		if existing.ID == s.ID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		rec.Starred = all[idx].Starred
		rec.CreatedAt = all[idx].CreatedAt
		all[idx] = rec
	} else {
		all = append([]*model.ChatSession{rec}, all...)
	}
	return c.write(ctx, all)
}

func (c *ChatHistory) ToggleStar(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.read(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range all {
		if s.ID == id {
			s.Starred = !s.Starred
			return s.Starred, c.write(ctx, all)
		}
	}
	return false, domain.ErrNotFound
}

func (c *ChatHistory) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.read(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, s := range all {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(all) {
		return domain.ErrNotFound
	}
	return c.write(ctx, kept)
}

// read treats an unreadable payload as empty.
func (c *ChatHistory) read(ctx context.Context) ([]*model.ChatSession, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var all []*model.ChatSession
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		metrics.IncStoreError("decode")
		c.log.Warn().Err(err).Msg("chat history unreadable; treating as empty")
		return nil, nil
	}
	return all, nil
}

func (c *ChatHistory) write(ctx context.Context, all []*model.ChatSession) error {
	if c.max > 0 && len(all) > c.max {
		all = all[:c.max]
	}
	b, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}
	return c.kv.Set(ctx, c.key, string(b))
}
