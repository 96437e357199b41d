package security

import (
	"context"
	"fmt"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
)

var _ repository.KVStore = (*SealedKV)(nil)

// SealedKV encrypts values before they reach the inner store. Keys stay in
// the clear.
type SealedKV struct {
	inner repository.KVStore
	enc   *EncryptionService
}

func NewSealedKV(inner repository.KVStore, enc *EncryptionService) *SealedKV {
	return &SealedKV{inner: inner, enc: enc}
}

// Get returns domain.ErrCorruptState when the stored value does not open.
func (s *SealedKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	pt, err := s.enc.Decrypt(key, v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrCorruptState, key, err)
	}
	return pt, nil
}

func (s *SealedKV) Set(ctx context.Context, key, value string) error {
	ct, err := s.enc.Encrypt(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, ct)
}

func (s *SealedKV) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close is a no-op; the inner store is owned by the caller.
func (s *SealedKV) Close() error { return nil }
