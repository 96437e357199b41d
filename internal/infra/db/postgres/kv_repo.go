// File: internal/infra/db/postgres/kv_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var _ repository.KVStore = (*KVRepo)(nil)

// querier is the subset of *pgxpool.Pool the repo needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

type KVRepo struct {
	db   querier
	pool *pgxpool.Pool
}

func NewKVRepo(pool *pgxpool.Pool) *KVRepo {
	return &KVRepo{db: pool, pool: pool}
}

func (r *KVRepo) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM kv_store WHERE key = $1;`
	var v string
	if err := r.db.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrKeyNotFound
		}
		metrics.IncStoreError("get")
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, nil
}

func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO kv_store (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  updated_at = EXCLUDED.updated_at;`
	if _, err := r.db.Exec(ctx, q, key, value); err != nil {
		metrics.IncStoreError("set")
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	r.reportPool()
	return nil
}

func (r *KVRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM kv_store WHERE key = $1;`, key); err != nil {
		metrics.IncStoreError("delete")
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

func (r *KVRepo) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *KVRepo) reportPool() {
	if r.pool == nil {
		return
	}
	st := r.pool.Stat()
	metrics.SetStorePoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
}
