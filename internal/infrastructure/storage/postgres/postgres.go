package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"punchclock/internal/app/server/config"
	"punchclock/internal/infrastructure/migration"
)

type Storage struct {
	pool *pgxpool.Pool
}

// New подключается к базе и применяет миграции.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Storage, error) {
	if err := migration.NewMigration(cfg, migration.DefaultEngine, log).Up(); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DB.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}
