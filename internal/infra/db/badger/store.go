// File: internal/infra/db/badger/store.go
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var _ repository.KVStore = (*Store)(nil)

// Store is the embedded default KVStore. An empty path opens an in-memory
// database that is discarded on Close.
type Store struct {
	db  *badgerdb.DB
	log *zerolog.Logger
}

func Open(path string, logger *zerolog.Logger) (*Store, error) {
	var opts badgerdb.Options
	if path == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		opts = badgerdb.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	l := logger.With().Str("component", "badger").Logger()
	l.Debug().Str("path", path).Bool("in_memory", path == "").Msg("badger store opened")
	return &Store{db: db, log: &l}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var val []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		metrics.IncStoreError("get")
		return "", fmt.Errorf("badger get %s: %w", key, err)
	}
	return string(val), nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		metrics.IncStoreError("set")
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		metrics.IncStoreError("delete")
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
