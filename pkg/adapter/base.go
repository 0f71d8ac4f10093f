package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// BaseSQLAdapter provides the database/sql plumbing shared by the
// concrete adapters. Embed it and implement Connect and Dialect.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	if b.Logger != nil {
		b.Logger.Debug("closing database connection", slog.String("type", b.Cfg.Type))
	}
	return b.DB.Close()
}

// Query executes a statement that returns rows. rows.Err() is the
// caller's to check after iteration.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// Exec executes a statement that returns no rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// IsConnected reports whether Connect succeeded.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}
