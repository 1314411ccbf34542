// Package main provides the entry point for the eco-score worker service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/ecoscore/internal/config"
	"github.com/thebtf/ecoscore/internal/observability"
	"github.com/thebtf/ecoscore/internal/worker"
)

var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger(observability.LogConfig{})
		log.Fatal().Err(err).Str("path", config.SettingsPath()).Msg("Invalid configuration")
	}

	observability.InitLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Str("version", Version).
		Str("addr", cfg.Addr()).
		Bool("grpc", cfg.GRPCEnabled).
		Msg("Starting ecoscore worker")

	svc, err := worker.NewService(Version, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create service")
	}

	if err := svc.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start service")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	log.Info().Msg("Worker shutdown complete")
}
