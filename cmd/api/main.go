package main

import (
	"log"

	"coach-backend/internal/bootstrap"
	"coach-backend/internal/shared/config"
	"coach-backend/internal/shared/server"
)

func main() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s providers=%v", addr, app.Orchestrator.Providers())

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
