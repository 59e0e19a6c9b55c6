package app

import (
	"context"
	"errors"
	"testing"

	"docflow/internal/config"
	"docflow/internal/infra/memstore"
)

func TestBuildSweeperRequiresDatabase(t *testing.T) {
	_, err := BuildSweeper(context.Background(), config.Config{PostgresDSN: "  "})
	if !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}

func TestBuildWithoutDatabaseUsesMemoryStore(t *testing.T) {
	services, err := Build(context.Background(), config.Config{AggregateMaxAttempts: 5})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer services.Close()
	if _, ok := services.Store.(*memstore.Store); !ok {
		t.Fatalf("expected in-memory store, got %T", services.Store)
	}
	if services.Lifecycle.MaxAttempts != 5 || services.Reviews.MaxAttempts != 5 {
		t.Fatalf("expected max attempts wired, got %d/%d", services.Lifecycle.MaxAttempts, services.Reviews.MaxAttempts)
	}
}
