package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/pkg/semantic"
)

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Validate the semantic manifest",
		Long: `Load the semantic manifest and report every validation problem.

With no argument the configured manifest is validated; a file or
directory argument validates that path instead.`,
		Example: `  metriq validate
  metriq validate semantic/bookings.yaml
  metriq validate semantic/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()

			path := ""
			if len(args) > 0 {
				path = args[0]
			}

			var m *semantic.Manifest
			var err error
			switch {
			case path != "" && isDir(path):
				m, err = semantic.LoadManifestDir(path)
			case path != "":
				m, err = semantic.LoadManifest(path)
			case cfg.Manifest != "":
				m, err = semantic.LoadManifest(cfg.Manifest)
			default:
				m, err = semantic.LoadManifestDir(cfg.ManifestDir)
			}

			var verr *semantic.ValidationError
			if errors.As(err, &verr) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Manifest is invalid (%d problems):\n", len(verr.Problems))
				for _, p := range verr.Problems {
					fmt.Fprintf(out, "  ✗ %s\n", p)
				}
				return fmt.Errorf("manifest validation failed")
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Manifest is valid: %d data sources, %d metrics\n",
				len(m.DataSources), len(m.Metrics))
			return nil
		},
	}
}
