// Package storage selects the store implementation named by the
// configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/donfundy/internal/config"
	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/JonMunkholm/donfundy/internal/storage/postgres"
	"github.com/JonMunkholm/donfundy/internal/storage/sqlite"
)

// Store is a core.Store that owns its connections and schema.
type Store interface {
	core.Store
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open connects to the configured database. PostgreSQL schemas are
// migrated when cfg.AutoMigrate is set; SQLite files are always migrated
// on open.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		slog.Info("connected to database", "driver", cfg.Driver)
		return s, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.URL)
		if err != nil {
			return nil, err
		}
		slog.Info("opened database", "driver", cfg.Driver, "path", cfg.URL)
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
