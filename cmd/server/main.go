// Package main provides the entry point for the Caia Scribe server
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Caia-Tech/caia-scribe/internal/api"
	"github.com/Caia-Tech/caia-scribe/internal/config"
	"github.com/Caia-Tech/caia-scribe/internal/history"
	"github.com/Caia-Tech/caia-scribe/internal/metrics"
	"github.com/Caia-Tech/caia-scribe/pkg/logging"
	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a scribe.yaml config file")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *dev {
		cfg.Development()
	}

	if err := logging.SetupLogger(cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	m := metrics.NewMetrics()
	coordinator := cfg.Recognition.NewCoordinator(recognition.WithObserver(m))

	// A baseline failure leaves the service up so /health can report it;
	// recognition requests then fail with 503.
	if err := coordinator.Init(context.Background()); err != nil {
		log.Error().Err(err).Msg("Recognition is unavailable")
	} else {
		log.Info().Str("mode", coordinator.Mode()).Msg("Recognition engines ready")
	}

	store := history.NewStore()
	h := api.NewHandlers(coordinator, store, m, api.HandlerConfig{
		MaxUploadSize:  cfg.Server.MaxUploadSize,
		RequestTimeout: cfg.Recognition.RequestTimeout,
	})
	app := api.NewApp(h, m, api.ServerConfig{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
		AccessLog:    cfg.Logging.Level == "debug",
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := cfg.Server.Addr()
	log.Info().Str("address", addr).Msg("Starting Caia Scribe server")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}

	if err := coordinator.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to release recognition engines")
	}
}
