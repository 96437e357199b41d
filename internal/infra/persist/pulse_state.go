package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
)

const (
	keyPulseLastGeneration = "pulse_last_generation"
	keyPulseUploads        = "pulse_watchlist_uploads"
)

var _ repository.PulseStateRepository = (*PulseState)(nil)

// PulseState stores timestamps as RFC 3339 strings.
type PulseState struct {
	kv repository.KVStore
}

func NewPulseState(kv repository.KVStore) *PulseState {
	return &PulseState{kv: kv}
}

// LastGeneration returns the zero time when no generation is recorded.
func (p *PulseState) LastGeneration(ctx context.Context) (time.Time, error) {
	raw, err := p.kv.Get(ctx, keyPulseLastGeneration)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// an unreadable gate is an open gate
		return time.Time{}, nil
	}
	return t, nil
}

func (p *PulseState) SetLastGeneration(ctx context.Context, t time.Time) error {
	return p.kv.Set(ctx, keyPulseLastGeneration, t.UTC().Format(time.RFC3339Nano))
}

func (p *PulseState) ClearLastGeneration(ctx context.Context) error {
	return p.kv.Delete(ctx, keyPulseLastGeneration)
}

func (p *PulseState) Uploads(ctx context.Context) ([]time.Time, error) {
	raw, err := p.kv.Get(ctx, keyPulseUploads)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ts []time.Time
	if err := json.Unmarshal([]byte(raw), &ts); err != nil {
		return nil, nil
	}
	return ts, nil
}

func (p *PulseState) SetUploads(ctx context.Context, ts []time.Time) error {
	b, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("encode uploads: %w", err)
	}
	return p.kv.Set(ctx, keyPulseUploads, string(b))
}
