package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const initConfigTemplate = `# metriq project configuration
manifest_dir: semantic

target:
  type: duckdb
  path: ":memory:"
`

const initManifestTemplate = `data_sources:
  - name: bookings_source
    sql_table: demo.fct_bookings
    entities:
      - name: booking
        type: primary
        expr: booking_id
    measures:
      - name: bookings
        agg: sum
        expr: "1"
    dimensions:
      - name: is_instant
        type: categorical
      - name: ds
        type: time
        type_params:
          time_granularity: day
          is_primary: true

metrics:
  - name: bookings
    type: simple
    type_params:
      measure: bookings
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new metriq project",
		Long: `Initialize a new metriq project.

This creates:
  - metriq.yaml configuration file
  - semantic/ directory with a sample manifest`,
		Example: `  # Initialize in current directory
  metriq init

  # Initialize in a new directory
  metriq init my-metrics

  # Force overwrite existing config
  metriq init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "metriq.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("metriq.yaml already exists. Use --force to overwrite")
	}

	manifestDir := filepath.Join(dir, "semantic")
	if err := os.MkdirAll(manifestDir, 0o750); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	files := map[string]string{
		configPath: initConfigTemplate,
		filepath.Join(manifestDir, "bookings.yaml"): initManifestTemplate,
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "metriq project initialized!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Declare your data sources and metrics in semantic/")
	fmt.Fprintln(out, "  2. Run 'metriq validate' to check the manifest")
	fmt.Fprintln(out, "  3. Run 'metriq query <metric> --group-by <dimension>' to compile SQL")

	return nil
}
