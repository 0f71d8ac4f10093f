// Package main provides the CLI for the metriq semantic metrics compiler.
package main

import (
	"os"

	"github.com/leapstack-labs/metriq/internal/cli"

	// Register database adapters.
	_ "github.com/leapstack-labs/metriq/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/metriq/pkg/adapters/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
