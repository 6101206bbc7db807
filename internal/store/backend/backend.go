// Package backend selects and opens the configured state store.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitledger/internal/store"
	"example.com/fitledger/internal/store/memory"
	"example.com/fitledger/internal/store/postgres"
	"example.com/fitledger/internal/store/redisstore"
	"example.com/fitledger/internal/store/sqlite"
)

// Supported backend names.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Redis    = "redis"
)

// Config names the backend and its connection settings.
type Config struct {
	Kind        string
	SQLitePath  string
	PostgresURL string
	RedisURL    string
}

// Open connects to the backend named by cfg.Kind.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case Memory:
		return memory.New(), nil
	case SQLite, "":
		return sqlite.Open(ctx, cfg.SQLitePath)
	case Postgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s := postgres.NewStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure ledger_state: %w", err)
		}
		return s, nil
	case Redis:
		return redisstore.Open(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Kind)
	}
}
