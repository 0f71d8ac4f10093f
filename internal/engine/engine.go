// Package engine wires the semantic manifest, query parsing, dataflow
// planning, SQL lowering and optimization together, and executes
// compiled queries against the configured database adapter.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/metriq/internal/dataflow"
	"github.com/leapstack-labs/metriq/internal/query"
	"github.com/leapstack-labs/metriq/pkg/adapter"
	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/semantic"
)

// Config holds engine configuration.
type Config struct {
	// ManifestPath loads a single manifest file; ManifestDir merges
	// every YAML file in a directory. Exactly one must be set unless
	// the engine is built with NewFromManifest.
	ManifestPath string
	ManifestDir  string

	// Target selects the database adapter.
	Target adapter.Config

	// Dialect overrides the SQL dialect; defaults to the target type,
	// falling back to ansi.
	Dialect string

	// Logger is optional; nil discards log output.
	Logger *slog.Logger
}

// Engine compiles and runs metric queries against one manifest.
type Engine struct {
	lookup  *semantic.Lookup
	parser  *query.Parser
	builder *dataflow.Builder
	dialect *dialect.Dialect
	logger  *slog.Logger

	target      adapter.Config
	dbMu        sync.Mutex
	db          adapter.Adapter
	dbConnected bool
}

// New loads the manifest named by the config and builds an engine.
// The database connection is lazy; Compile works without one.
func New(cfg Config) (*Engine, error) {
	var manifest *semantic.Manifest
	var err error
	switch {
	case cfg.ManifestPath != "":
		manifest, err = semantic.LoadManifest(cfg.ManifestPath)
	case cfg.ManifestDir != "":
		manifest, err = semantic.LoadManifestDir(cfg.ManifestDir)
	default:
		return nil, fmt.Errorf("no manifest configured: set semantic_manifest in metriq.yaml")
	}
	if err != nil {
		return nil, err
	}
	return NewFromManifest(manifest, cfg)
}

// NewFromManifest builds an engine over an already validated manifest.
func NewFromManifest(manifest *semantic.Manifest, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	name := cfg.Dialect
	if name == "" {
		name = cfg.Target.Type
	}
	if name == "" {
		name = "ansi"
	}
	d, ok := dialect.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown SQL dialect %q, available: %v", name, dialect.List())
	}

	lookup := semantic.NewLookup(manifest)
	logger.Debug("engine initialized",
		slog.Int("data_sources", len(manifest.DataSources)),
		slog.Int("metrics", len(manifest.Metrics)),
		slog.String("dialect", d.Name))

	return &Engine{
		lookup:  lookup,
		parser:  query.NewParser(lookup),
		builder: dataflow.NewBuilder(lookup),
		dialect: d,
		logger:  logger,
		target:  cfg.Target,
	}, nil
}

// Lookup exposes the manifest lookup for listing commands.
func (e *Engine) Lookup() *semantic.Lookup { return e.lookup }

// Dialect returns the SQL dialect the engine renders for.
func (e *Engine) Dialect() *dialect.Dialect { return e.dialect }

// connect establishes the database connection once.
func (e *Engine) connect(ctx context.Context) (adapter.Adapter, error) {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()
	if e.dbConnected {
		return e.db, nil
	}

	db, err := adapter.New(e.target, e.logger)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx, e.target); err != nil {
		return nil, err
	}
	e.db = db
	e.dbConnected = true
	e.logger.Debug("database connected", slog.String("type", e.target.Type))
	return db, nil
}

// Close releases the database connection if one was opened.
func (e *Engine) Close() error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()
	if !e.dbConnected {
		return nil
	}
	e.dbConnected = false
	return e.db.Close()
}
