package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"punchclock/internal/app/server/api"
	"punchclock/internal/app/server/config"
	"punchclock/internal/domain/punch"
	"punchclock/internal/domain/session"
	"punchclock/internal/infrastructure/storage/postgres"
	"punchclock/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{Config: cfg}
	if cfg.InMemory() {
		log.Warn("DATABASE_URI is not set, punches are kept in memory")
		deps.Punches = punch.NewMemoryRepository()
		deps.Sessions = session.NewMemoryRepository()
		deps.Storage = "memory"
	} else {
		storage, err := postgres.New(ctx, cfg, log)
		if err != nil {
			log.Error("failed to init storage", "error", err)
			os.Exit(1)
		}
		defer storage.Close()

		deps.Punches = postgres.NewPunchRepository(storage, log)
		deps.Sessions = postgres.NewSessionRepository(storage, log)
		deps.Storage = "postgres"
	}

	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(deps, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("starting server", "address", cfg.Server.RunAddress, "env", cfg.Env, "storage", deps.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("server stopped gracefully")
}
