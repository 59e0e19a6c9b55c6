package main

import (
	"context"
	"log"

	"docflow/internal/app"
	"docflow/internal/config"
	httpapi "docflow/internal/http"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.FromEnv()

	services, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to init services: %v", err)
	}
	defer services.Close()

	srv := httpapi.NewServer(cfg, httpapi.ServerDeps{
		Lifecycle: services.Lifecycle,
		Reviews:   services.Reviews,
		Clock:     services.Clock,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
