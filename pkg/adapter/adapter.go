// Package adapter defines the database adapter contract the query
// engine executes compiled SQL against. Concrete implementations live
// in pkg/adapters/ subdirectories and register themselves in their
// init() functions.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/metriq/pkg/dialect"
)

// Config selects and configures a database target.
type Config struct {
	// Type names a registered adapter ("duckdb", "postgres").
	Type string `koanf:"type"`
	// Path is the database file for file-backed engines; ":memory:"
	// or empty for in-memory DuckDB.
	Path string `koanf:"path"`
	// DSN is the connection string for server-backed engines.
	DSN string `koanf:"dsn"`
	// Schema overrides the dialect's default schema.
	Schema string `koanf:"schema"`
}

// Rows wraps query results.
type Rows struct {
	*sql.Rows
}

// Adapter is the contract every database adapter implements.
type Adapter interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sql string) error

	// Dialect returns the SQL dialect the adapter's engine speaks. The
	// renderer uses it for quoting and time truncation functions.
	Dialect() *dialect.Dialect
}
