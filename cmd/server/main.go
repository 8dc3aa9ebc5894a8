// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/mediatrack/internal/api"
	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metadata"
	"github.com/tomtom215/mediatrack/internal/metrics"
	"github.com/tomtom215/mediatrack/internal/pipeline"
	"github.com/tomtom215/mediatrack/internal/progress"
	"github.com/tomtom215/mediatrack/internal/reconcile"
	"github.com/tomtom215/mediatrack/internal/resolve"
	"github.com/tomtom215/mediatrack/internal/supervisor"
	"github.com/tomtom215/mediatrack/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("db_driver", cfg.Database.Driver).
		Bool("metadata_enabled", cfg.Metadata.Enabled).
		Int("bootstrap_users", len(cfg.Users)).
		Msg("Starting Mediatrack")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Mediatrack stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	if err := bootstrapUsers(ctx, store, cfg.Users); err != nil {
		return err
	}
	if err := bootstrapMappings(ctx, store, cfg.Mappings); err != nil {
		return err
	}

	processor, closeMeta := buildPipeline(cfg, store)
	defer closeMeta()

	handler := api.NewHandler(processor, store, store, cfg.Webhooks, version)
	defer handler.Close()
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.Add(supervisor.LayerData, services.NewStoreMonitorService(store, 30*time.Second))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}

// buildPipeline wires resolver, reconciler and recorder. The returned func
// releases the metadata client.
func buildPipeline(cfg *config.Config, store *database.Store) (*pipeline.Processor, func()) {
	// Interfaces stay nil unless a client exists, so the stages can test
	// for "no provider" with a plain nil check.
	var (
		meta     resolve.Metadata
		runtimes progress.RuntimeSource
		closer   = func() {}
	)
	if cfg.Metadata.Enabled {
		client := metadata.New(&cfg.Metadata)
		meta = client
		runtimes = client
		closer = client.Close
		logging.Info().
			Bool("tmdb", cfg.Metadata.TMDB.Configured()).
			Bool("youtube", cfg.Metadata.YouTube.Configured()).
			Float64("rate_limit", cfg.Metadata.RateLimit).
			Msg("Metadata providers enabled")
	} else {
		logging.Info().Msg("Metadata providers disabled; titles come from webhook payloads only")
	}

	proc := pipeline.New(
		resolve.New(store, meta, cfg.Metadata.Timeout),
		reconcile.New(store),
		progress.New(store, runtimes, progress.Config{
			HistoryWindow:   cfg.Pipeline.HistoryWindow,
			BackfillTimeout: cfg.Pipeline.BackfillTimeout,
		}),
	)
	return proc, closer
}
