package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docflow/internal/app"
	"docflow/internal/config"
	"docflow/internal/infra/lease"
	"docflow/internal/sweep"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.BuildSweeper(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init services: %v", err)
	}
	defer services.Close()

	var sweepLease lease.Lease
	if cfg.RedisAddr != "" {
		sweepLease, err = lease.NewRedisLease(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("failed to init redis lease: %v", err)
		}
		if closer, ok := sweepLease.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	} else {
		log.Printf("REDIS_ADDR not set; using in-process lease")
		sweepLease = lease.NewMemoryLease(services.Clock)
	}

	hostname, _ := os.Hostname()
	sweeper := &sweep.Sweeper{
		Lifecycle: services.Lifecycle,
		Lease:     sweepLease,
		Holder:    hostname + "/" + uuid.NewString(),
		LeaseTTL:  cfg.SweepLeaseTTL(),
		BatchSize: cfg.SweepBatchSize,
		Clock:     services.Clock,
	}
	log.Printf("docflow-sweeper running every %s", cfg.SweepInterval())
	if err := sweeper.Run(ctx, cfg.SweepInterval()); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("sweeper exited: %v", err)
	}
}
