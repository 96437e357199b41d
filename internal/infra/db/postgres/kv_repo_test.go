//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
)

func TestKVRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewKVRepo(testPool)

	t.Run("should upsert and read back a value", func(t *testing.T) {
		cleanup(t)
		if err := repo.Set(ctx, "research_history", `[{"capability":"DCF"}]`); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Set(ctx, "research_history", `[]`); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}
		got, err := repo.Get(ctx, "research_history")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got != "[]" {
			t.Errorf("expected overwritten value, got %q", got)
		}
	})

	t.Run("should report missing keys", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, domain.ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("should delete a key", func(t *testing.T) {
		cleanup(t)
		_ = repo.Set(ctx, "k", "v")
		if err := repo.Delete(ctx, "k"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(ctx, "k"); !errors.Is(err, domain.ErrKeyNotFound) {
			t.Fatalf("expected key to be gone, got %v", err)
		}
	})
}
