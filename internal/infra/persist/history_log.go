package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var _ repository.HistoryLog = (*HistoryLog)(nil)

// HistoryLog is the unbounded research submission log. It is never trimmed.
type HistoryLog struct {
	kv  repository.KVStore
	key string
	log *zerolog.Logger

	mu sync.Mutex
}

func NewHistoryLog(kv repository.KVStore, key string, logger *zerolog.Logger) *HistoryLog {
	l := logger.With().Str("component", "history_log").Logger()
	return &HistoryLog{kv: kv, key: key, log: &l}
}

func (h *HistoryLog) Append(ctx context.Context, e model.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.read(ctx)
	if errors.Is(err, domain.ErrCorruptState) {
		// keep the unreadable payload under a backup key
		raw, _ := h.kv.Get(ctx, h.key)
		if setErr := h.kv.Set(ctx, h.key+".corrupt", raw); setErr != nil {
			return setErr
		}
		h.log.Warn().Str("backup_key", h.key+".corrupt").Msg("research history unreadable; starting a new log")
		entries = nil
	} else if err != nil {
		return err
	}

	entries = append(entries, e)
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return h.kv.Set(ctx, h.key, string(b))
}

func (h *HistoryLog) List(ctx context.Context) ([]model.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read(ctx)
}

func (h *HistoryLog) read(ctx context.Context) ([]model.HistoryEntry, error) {
	raw, err := h.kv.Get(ctx, h.key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []model.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		metrics.IncStoreError("decode")
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
	}
	return entries, nil
}
