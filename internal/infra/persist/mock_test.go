package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
)

type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	setErr  error
	deletes int
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, key)
	return nil
}

func (m *memKV) Close() error { return nil }

var errDiskFull = errors.New("disk full")
