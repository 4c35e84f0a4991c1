package repository

import (
	"context"
	"fmt"

	"dota-pipeline/internal/config"
	"dota-pipeline/internal/database"

	"github.com/rs/zerolog"
)

// Open connects to the configured store and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db, logger), nil
	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL, cfg.PoolSize, logger)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// CountAll returns the row count of every loader table.
func CountAll(ctx context.Context, s Store) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(Tables))
	for _, t := range Tables {
		n, err := s.Count(ctx, t.Name, Filter{})
		if err != nil {
			return nil, err
		}
		counts = append(counts, TableCount{Table: t.Name, Rows: n})
	}
	return counts, nil
}
