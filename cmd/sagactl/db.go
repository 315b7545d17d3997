package main

import (
	"context"
	"fmt"

	"ambientsaga/internal/config"
	"ambientsaga/internal/store"
	"ambientsaga/internal/store/memory"
	"ambientsaga/internal/store/postgres"
	"ambientsaga/internal/store/sqlite"
)

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		st = memory.New()
	case config.DriverSQLite:
		st, err = sqlite.New(ctx, cfg.DSN)
	case config.DriverPostgres:
		st, err = postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close(ctx)
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return st, nil
}
