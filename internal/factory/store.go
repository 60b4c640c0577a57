// Package factory constructs the service's pluggable dependencies from
// configuration: the store driver and the embedding providers.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kennyhq/kenny-memory/internal/config"
	"github.com/kennyhq/kenny-memory/internal/store"
	"github.com/kennyhq/kenny-memory/internal/store/postgres"
	"github.com/kennyhq/kenny-memory/internal/store/sqlite"
)

// NewStore opens the configured database driver and applies the schema.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		if err := postgres.EnsureANNIndexes(ctx, db, cfg.VectorIndexLists); err != nil {
			// The service works without ANN indexes, just slower.
			log.Warn().Err(err).Msg("could not build ANN indexes")
		}
		log.Info().Msg("postgres store ready")
		return postgres.NewWithDB(db), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return sqlite.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.DBDriver)
	}
}
