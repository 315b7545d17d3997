package pipeline

import (
	"context"
	"log/slog"

	"ambientsaga/internal/achievement"
	"ambientsaga/internal/achievesync"
	"ambientsaga/internal/command"
	"ambientsaga/internal/observe"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/store"
	"ambientsaga/internal/world"
)

// Config wires a Dispatcher.
type Config struct {
	Store   store.Store
	World   *world.Host
	Service *command.Service
	Cache   *replay.Cache
	Tracker *achievement.Tracker
	Sync    *achievesync.Dispatcher
	Logger  *slog.Logger
	Metrics *observe.Metrics
	Retries int
}

// Dispatcher is the entry point for commands: logging, validation,
// achievements, and conflict retries around the command service.
type Dispatcher struct {
	handler Handler
}

func New(cfg Config) *Dispatcher {
	h := Chain(cfg.Service.Execute,
		Logging(cfg.Logger, cfg.Metrics),
		Validation(),
		Achievements(AchievementDeps{
			Store:      cfg.Store,
			Cache:      cfg.Cache,
			World:      cfg.World,
			Tracker:    cfg.Tracker,
			Dispatcher: cfg.Sync,
			Logger:     cfg.Logger,
			Metrics:    cfg.Metrics,
		}),
		Retry(cfg.Retries, cfg.Logger),
	)
	return &Dispatcher{handler: h}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command) (command.Result, error) {
	return d.handler(ctx, cmd)
}
