package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/metriq/pkg/adapter"
)

// loggerKey is used to store the logger in the command context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search
// for a project config file.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"metriq.yaml", "metriq.yml"}

// Package-level config file tracking.
var (
	configFileUsed string
	currentConfig  *Config
)

// ResetConfig clears loader state. Used for testing.
func ResetConfig() {
	configFileUsed = ""
	currentConfig = nil
}

// configFileIn returns the config file inside dir, or "" if none exists.
func configFileIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a metriq
// config file. Returns empty string if not found within
// maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configFileIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit --config file
//  2. Search upward from CWD for metriq.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves path against baseDir unless it is
// empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment variables and
// flags. Precedence (highest to lowest): flags > env vars > config
// file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := inferProjectRoot(cfgFile)

	// Manifest paths given as flags are relative to the CWD, not the
	// project root. Pin them to absolute paths before resolution.
	var flagManifest, flagManifestDir string
	if flags != nil {
		if flags.Changed("manifest") {
			if v, _ := flags.GetString("manifest"); v != "" {
				flagManifest, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("manifest-dir") {
			if v, _ := flags.GetString("manifest-dir"); v != "" {
				flagManifestDir, _ = filepath.Abs(v)
			}
		}
	}

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"manifest_dir": DefaultManifestDir,
		"verbose":      false,
		"target.type":  DefaultTargetType,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Project config file.
	if cfgFile == "" {
		cfgFile = configFileIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (METRIQ_ prefix).
	// METRIQ_DIALECT -> dialect, METRIQ_TARGET__TYPE -> target.type.
	if err := k.Load(env.Provider("METRIQ_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "METRIQ_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority).
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// --manifest maps to the semantic_manifest config key.
			if key == "manifest" {
				return "semantic_manifest", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot

	// Flag-provided paths are already absolute; file or default paths
	// resolve relative to the project root.
	if flagManifest != "" {
		cfg.Manifest = flagManifest
	} else {
		cfg.Manifest = resolvePathRelativeTo(cfg.Manifest, projectRoot)
	}
	if flagManifestDir != "" {
		cfg.ManifestDir = flagManifestDir
	} else {
		cfg.ManifestDir = resolvePathRelativeTo(cfg.ManifestDir, projectRoot)
	}

	if cfg.Target == nil {
		cfg.Target = &adapter.Config{Type: DefaultTargetType}
	}
	if cfg.Target.Type == "" {
		cfg.Target.Type = DefaultTargetType
	}
	if cfg.Target.Path != "" && cfg.Target.Path != ":memory:" {
		cfg.Target.Path = resolvePathRelativeTo(cfg.Target.Path, projectRoot)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if
// any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration from the most recent
// LoadConfig call, or nil before the first load.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger. The
// commands package retrieves the logger through this key without
// importing the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
