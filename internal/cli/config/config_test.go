package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "metriq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultManifestDir, filepath.Base(cfg.ManifestDir))
	assert.True(t, filepath.IsAbs(cfg.ManifestDir))
	assert.Empty(t, cfg.Manifest)
	assert.False(t, cfg.Verbose)
	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfig_FromFile(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfigFile(t, dir, `
semantic_manifest: manifest.yaml
dialect: postgres
target:
  type: postgres
  dsn: postgres://localhost/metrics
  schema: analytics
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "manifest.yaml"), cfg.Manifest)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "postgres://localhost/metrics", cfg.Target.DSN)
	assert.Equal(t, "analytics", cfg.Target.Schema)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
}

func TestLoadConfig_UpwardSearch(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	writeConfigFile(t, root, "manifest_dir: models\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, "models"), cfg.ManifestDir)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfigFile(t, dir, "dialect: duckdb\n")
	t.Setenv("METRIQ_DIALECT", "postgres")
	t.Setenv("METRIQ_TARGET__TYPE", "postgres")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "postgres", cfg.Target.Type)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())
	t.Setenv("METRIQ_DIALECT", "postgres")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "", "")
	flags.String("manifest", "", "")
	flags.String("manifest-dir", "", "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse([]string{"--dialect=duckdb", "--manifest=my/manifest.yaml", "--verbose"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.Dialect)
	assert.True(t, cfg.Verbose)
	// Flag paths resolve against the CWD.
	wantManifest, err := filepath.Abs("my/manifest.yaml")
	require.NoError(t, err)
	assert.Equal(t, wantManifest, cfg.Manifest)
}

func TestLoadConfig_UnsetFlagsDoNotOverride(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfigFile(t, dir, "dialect: postgres\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect)
}

func TestLoadConfig_MemoryPathNotResolved(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfigFile(t, dir, `
target:
  type: duckdb
  path: ":memory:"
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Target.Path)
}

func TestLoadConfig_TargetPathResolved(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfigFile(t, dir, `
target:
  type: duckdb
  path: data/metrics.db
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "metrics.db"), cfg.Target.Path)
}

func TestGetCurrentConfig(t *testing.T) {
	ResetConfig()
	assert.Nil(t, GetCurrentConfig())

	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Same(t, cfg, GetCurrentConfig())
}
