package main

import (
	"context"
	"log/slog"
	"os"

	"ambientsaga/internal/achievement"
	"ambientsaga/internal/achievesync"
	"ambientsaga/internal/claims"
	"ambientsaga/internal/command"
	"ambientsaga/internal/config"
	"ambientsaga/internal/observe"
	"ambientsaga/internal/pipeline"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/store"
	"ambientsaga/internal/world"
)

// app is everything a command needs once the project is loaded.
type app struct {
	cfg        *config.ProjectConfig
	catalog    *config.Catalog
	world      *world.Host
	store      store.Store
	cache      *replay.Cache
	service    *command.Service
	dispatcher *pipeline.Dispatcher
	sync       *achievesync.Dispatcher
	logger     *slog.Logger

	shutdown func(context.Context) error
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, err
	}
	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, err
	}
	metrics := observe.DefaultMetrics()

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}

	host := world.NewHost()
	host.Load(catalog)
	cache := replay.NewCache()
	svc := command.NewService(st, host, command.Options{
		Cache:   cache,
		Limits:  claims.LimitsFromConfig(cfg.AntiCheat),
		Logger:  logger,
		Metrics: metrics,
	})
	syncer := achievesync.FromConfig(cfg.Sync, achievesync.LogNotifier{Logger: logger}, logger, metrics)
	d := pipeline.New(pipeline.Config{
		Store:   st,
		World:   host,
		Service: svc,
		Cache:   cache,
		Tracker: achievement.NewTracker(),
		Sync:    syncer,
		Logger:  logger,
		Metrics: metrics,
		Retries: cfg.Pipeline.Retries,
	})

	return &app{
		cfg:        cfg,
		catalog:    catalog,
		world:      host,
		store:      st,
		cache:      cache,
		service:    svc,
		dispatcher: d,
		sync:       syncer,
		logger:     logger,
		shutdown:   shutdown,
	}, nil
}

// Close waits for pending achievement notifications, then releases the
// store and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	a.sync.Wait()
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("closing store", "err", err)
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("shutting down telemetry", "err", err)
	}
}
