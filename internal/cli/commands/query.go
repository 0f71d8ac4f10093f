package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var reqFlags requestFlags
	var run bool
	var format string
	var noOptimize bool

	cmd := &cobra.Command{
		Use:   "query [metrics...]",
		Short: "Compile a metric query to SQL, optionally executing it",
		Long: `Compile a metric query against the semantic manifest.

By default the generated SQL is printed. With --run the query is
executed against the configured target and the result set is printed.`,
		Example: `  # SQL for a metric grouped by its time dimension
  metriq query bookings --group-by ds

  # Filtered, joined dimension
  metriq query bookings --group-by listing__country_latest --where "is_instant"

  # Distinct dimension values (no metric)
  metriq query --group-by is_instant

  # Execute and print rows
  metriq query bookings --group-by ds --order -ds --limit 10 --run

  # Execute and emit JSON
  metriq query bookings --group-by ds --run --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := reqFlags.request(args)

			if !run {
				result, err := cmdCtx.Engine.Compile(req)
				if err != nil {
					return err
				}
				sql := result.OptimizedSQL
				if noOptimize {
					sql = result.SQL
				}
				fmt.Fprintln(cmd.OutOrStdout(), sql)
				return nil
			}

			res, err := cmdCtx.Engine.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return renderResult(cmd.OutOrStdout(), res, format)
		},
	}

	reqFlags.register(cmd)
	cmd.Flags().BoolVar(&run, "run", false, "Execute the query against the target database")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format with --run: table, csv, json")
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "Print the unoptimized SQL rendering")

	return cmd
}
