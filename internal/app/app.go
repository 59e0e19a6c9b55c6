package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"docflow/internal/config"
	"docflow/internal/infra/db"
	"docflow/internal/infra/memstore"
	"docflow/internal/infra/policyopa"
	"docflow/internal/usecase"
)

// Services is the workflow engine wired for one process.
type Services struct {
	Store     usecase.WorkflowStore
	Lifecycle *usecase.LifecycleService
	Reviews   *usecase.ReviewService
	Clock     usecase.Clock

	closers []func() error
}

// Build opens the configured store and policy engine. Without POSTGRES_DSN
// the engine runs on the in-memory store.
func Build(ctx context.Context, cfg config.Config) (*Services, error) {
	clock := func() time.Time { return time.Now().UTC() }
	s := &Services{Clock: clock}

	dbStore, err := db.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if dbStore.Enabled() {
		s.Store = dbStore.WorkflowStore()
		s.closers = append(s.closers, dbStore.Close)
	} else {
		s.Store = memstore.New()
	}

	engine, err := policyopa.NewEngine(ctx, cfg.PolicyPath)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("init policy engine: %w", err)
	}
	log.Printf("policy loaded (hash %s)", engine.PolicyHash())

	audit := usecase.NewAuditEmitter(clock)
	s.Lifecycle = usecase.NewLifecycleService(s.Store, audit, engine, clock)
	s.Lifecycle.ReviewDueIn = cfg.ReviewDueIn()
	s.Lifecycle.MaxAttempts = cfg.AggregateMaxAttempts
	s.Reviews = usecase.NewReviewService(s.Store, audit, engine, s.Lifecycle, clock)
	s.Reviews.DefaultDueIn = cfg.ReviewDueIn()
	s.Reviews.MaxAttempts = cfg.AggregateMaxAttempts
	return s, nil
}

// ErrNoDatabase rejects a sweeper without POSTGRES_DSN. The in-memory store
// is private to its process, so such a sweeper would never see a document.
var ErrNoDatabase = errors.New("POSTGRES_DSN is required")

// BuildSweeper is Build for the expiry sweeper, which only works against the
// shared database.
func BuildSweeper(ctx context.Context, cfg config.Config) (*Services, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, fmt.Errorf("sweeper: %w", ErrNoDatabase)
	}
	return Build(ctx, cfg)
}

func (s *Services) Close() error {
	var first error
	for _, closer := range s.closers {
		if err := closer(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
