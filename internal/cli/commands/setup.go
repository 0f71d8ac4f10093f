// Package commands implements the metriq subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/internal/cli/config"
	"github.com/leapstack-labs/metriq/internal/engine"
	"github.com/leapstack-labs/metriq/internal/query"
	"github.com/leapstack-labs/metriq/pkg/adapter"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Engine *engine.Engine
}

// NewCommandContext creates a CommandContext with an engine built from
// the loaded configuration. Returns the context and a cleanup function
// that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:    cfg,
		Logger: logger,
		Engine: eng,
	}, cleanup, nil
}

// getConfig returns the current configuration. It uses
// config.GetCurrentConfig() if available, otherwise falls back to
// environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	manifestDir := os.Getenv("METRIQ_MANIFEST_DIR")
	if manifestDir == "" {
		manifestDir = config.DefaultManifestDir
	}
	targetType := os.Getenv("METRIQ_TARGET__TYPE")
	if targetType == "" {
		targetType = config.DefaultTargetType
	}

	return &config.Config{
		Manifest:    os.Getenv("METRIQ_SEMANTIC_MANIFEST"),
		ManifestDir: manifestDir,
		Dialect:     os.Getenv("METRIQ_DIALECT"),
		Verbose:     os.Getenv("METRIQ_VERBOSE") == "true",
		Target:      &adapter.Config{Type: targetType},
	}
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	engineCfg := engine.Config{
		Dialect: cfg.Dialect,
		Logger:  logger,
	}
	if cfg.Target != nil {
		engineCfg.Target = *cfg.Target
	}
	// A single manifest file wins over the manifest directory.
	if cfg.Manifest != "" {
		engineCfg.ManifestPath = cfg.Manifest
	} else {
		engineCfg.ManifestDir = cfg.ManifestDir
	}
	return engine.New(engineCfg)
}

// requestFlags holds the flags shared by query and explain.
type requestFlags struct {
	groupBys []string
	where    string
	orderBys []string
	limit    int64
	start    string
	end      string
}

// register adds the shared request flags to cmd.
func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.groupBys, "group-by", "g", nil, "Dimensions or entities to group by (e.g. ds, listing__country_latest)")
	cmd.Flags().StringVar(&f.where, "where", "", "SQL filter over queried elements")
	cmd.Flags().StringSliceVar(&f.orderBys, "order", nil, "Output columns to order by; prefix with - for descending")
	cmd.Flags().Int64Var(&f.limit, "limit", -1, "Maximum number of rows")
	cmd.Flags().StringVar(&f.start, "start-time", "", "Inclusive aggregation time range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end-time", "", "Inclusive aggregation time range end (YYYY-MM-DD)")
}

// request builds a query request from the metric names and flags.
func (f *requestFlags) request(metrics []string) query.Request {
	req := query.Request{
		Metrics:   metrics,
		GroupBys:  f.groupBys,
		Where:     f.where,
		OrderBys:  f.orderBys,
		TimeStart: f.start,
		TimeEnd:   f.end,
	}
	if f.limit >= 0 {
		limit := f.limit
		req.Limit = &limit
	}
	return req
}
