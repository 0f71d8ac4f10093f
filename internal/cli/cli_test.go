package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/internal/cli/config"
)

// executeCommand runs the root command with args and returns its
// combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	cfgFile = ""

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "metriq v"+Version)
}

func TestQueryCommand_PrintsSQL(t *testing.T) {
	out, err := executeCommand(t, "--config", "testdata/metriq.yaml",
		"query", "bookings", "--group-by", "ds")
	require.NoError(t, err)

	assert.Contains(t, out, "Compute Metrics via Expressions")
	assert.Contains(t, out, "bookings")
	assert.Contains(t, out, "GROUP BY")
}

func TestQueryCommand_NoOptimize(t *testing.T) {
	optimized, err := executeCommand(t, "--config", "testdata/metriq.yaml",
		"query", "bookings", "--group-by", "ds")
	require.NoError(t, err)

	raw, err := executeCommand(t, "--config", "testdata/metriq.yaml",
		"query", "bookings", "--group-by", "ds", "--no-optimize")
	require.NoError(t, err)

	assert.NotEqual(t, optimized, raw)
	// The unoptimized rendering keeps every source column.
	assert.Contains(t, raw, "booking_value")
	assert.NotContains(t, optimized, "booking_value")
}

func TestQueryCommand_UnknownMetric(t *testing.T) {
	_, err := executeCommand(t, "--config", "testdata/metriq.yaml",
		"query", "nope", "--group-by", "ds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")
}

func TestExplainCommand(t *testing.T) {
	out, err := executeCommand(t, "--config", "testdata/metriq.yaml",
		"explain", "bookings", "--group-by", "ds")
	require.NoError(t, err)

	assert.Contains(t, out, "Dataflow plan:")
	assert.Contains(t, out, "ReadSqlSourceNode")
	assert.Contains(t, out, "ComputeMetricsNode")
	assert.Contains(t, out, "Optimized SQL:")
}

func TestListCommand(t *testing.T) {
	out, err := executeCommand(t, "--config", "testdata/metriq.yaml", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "bookings_per_booking_value")
	assert.Contains(t, out, "country_latest")
	assert.Contains(t, out, "listings_source")
}

func TestListMetricsCommand(t *testing.T) {
	out, err := executeCommand(t, "--config", "testdata/metriq.yaml", "list", "metrics")
	require.NoError(t, err)

	assert.Contains(t, out, "ratio")
	assert.NotContains(t, out, "listings_source")
}

func TestValidateCommand_Valid(t *testing.T) {
	out, err := executeCommand(t, "--config", "testdata/metriq.yaml", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Manifest is valid: 2 data sources, 3 metrics")
}

func TestValidateCommand_Invalid(t *testing.T) {
	out, err := executeCommand(t, "--config", "testdata/metriq.yaml",
		"validate", "testdata/broken.yaml")
	require.Error(t, err)
	assert.Contains(t, out, `references unknown measure "conversions"`)
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")

	out, err := executeCommand(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized")

	assert.FileExists(t, filepath.Join(dir, "metriq.yaml"))
	assert.FileExists(t, filepath.Join(dir, "semantic", "bookings.yaml"))

	// The scaffolded project must pass validation.
	out, err = executeCommand(t, "validate", filepath.Join(dir, "semantic"))
	require.NoError(t, err)
	assert.Contains(t, out, "Manifest is valid")
}

func TestInitCommand_ExistingConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metriq.yaml"), []byte("# existing\n"), 0o644))

	_, err := executeCommand(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
