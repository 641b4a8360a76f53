package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"looped/config"
	"looped/internal/backend"
	"looped/internal/database"
)

// provideBackend opens the configured backend, runs the migration and
// change triggers when it is Postgres and wraps it with metrics. cleanup
// releases everything it opened.
func provideBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry prometheus.Registerer) (backend.Backend, func(), error) {
	metrics := backend.NewMetrics(registry)

	if cfg.Backend == config.BackendMemory {
		logger.Warn("using the in-memory backend, data is lost on exit")
		mem := backend.NewMemory(logger)
		return backend.NewInstrumented(mem, metrics), func() { _ = mem.Close() }, nil
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.SyncTriggers(ctx, cfg.Realtime.Driver == config.RealtimePostgres); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to sync change triggers: %w", err)
	}

	feed, err := provideFeed(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	pg, err := backend.NewPostgres(ctx, db.SQL(), feed, logger)
	if err != nil {
		_ = feed.Close()
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := pg.Close(); err != nil {
			logger.Error("failed to close change feed", "error", err)
		}
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	return backend.NewInstrumented(pg, metrics), cleanup, nil
}

func provideFeed(cfg *config.Config, logger *slog.Logger) (backend.ChangeFeed, error) {
	switch cfg.Realtime.Driver {
	case config.RealtimeNATS:
		conn, err := nats.Connect(cfg.Realtime.NATSURL, nats.Name("looped-gateway"), nats.MaxReconnects(-1))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		logger.Info("realtime changes over nats", "url", cfg.Realtime.NATSURL, "prefix", cfg.Realtime.SubjectPrefix)
		return backend.NewNATSFeed(conn, cfg.Realtime.SubjectPrefix, logger), nil
	case config.RealtimeLocal:
		return backend.NewLocalFeed(), nil
	default:
		return backend.NewListenerFeed(cfg.DatabaseURL, logger), nil
	}
}
