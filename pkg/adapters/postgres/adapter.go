// Package postgres provides the PostgreSQL adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/leapstack-labs/metriq/pkg/adapter"
	"github.com/leapstack-labs/metriq/pkg/dialect"
)

// Adapter implements adapter.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a PostgreSQL adapter. A nil logger discards log output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Connect opens a connection using the configured DSN.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	if cfg.DSN == "" {
		return fmt.Errorf("postgres adapter requires target.dsn")
	}

	a.Logger.Debug("connecting to postgres")

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("opening postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// Dialect implements adapter.Adapter.
func (a *Adapter) Dialect() *dialect.Dialect {
	d, _ := dialect.Get("postgres")
	return d
}
