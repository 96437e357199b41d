// File: internal/domain/ports/repository/kv.go
package repository

import "context"

// KVStore is a durable string key-value store. Get returns
// domain.ErrKeyNotFound when the key is absent. Writes are atomic per key.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
