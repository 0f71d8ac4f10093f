// This file registers the DuckDB adapter with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/metriq/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/metriq/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
