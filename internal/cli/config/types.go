// Package config provides configuration management for the metriq CLI.
//
// Configuration is assembled from defaults, a metriq.yaml project file,
// METRIQ_-prefixed environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"github.com/leapstack-labs/metriq/pkg/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	// Manifest is a single semantic manifest file. Takes precedence
	// over ManifestDir when both are set.
	Manifest string `koanf:"semantic_manifest"`
	// ManifestDir is a directory of manifest YAML files merged into
	// one manifest.
	ManifestDir string `koanf:"manifest_dir"`
	// Dialect overrides the SQL dialect; defaults to the target type.
	Dialect string `koanf:"dialect"`
	Verbose bool   `koanf:"verbose"`
	// Target selects and configures the database adapter.
	Target *adapter.Config `koanf:"target"`

	// ProjectRoot is the directory relative paths were resolved
	// against. Set by the loader, never read from the file.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultManifestDir = "semantic"
	DefaultTargetType  = "duckdb"
)
