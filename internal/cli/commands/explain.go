package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand() *cobra.Command {
	var reqFlags requestFlags

	cmd := &cobra.Command{
		Use:   "explain [metrics...]",
		Short: "Show the dataflow plan and generated SQL for a query",
		Long: `Explain how a metric query compiles.

Prints the dataflow plan structure followed by the generated SQL,
both before and after optimization.`,
		Example: `  metriq explain bookings --group-by ds
  metriq explain bookings --group-by is_instant --where "is_instant"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := cmdCtx.Engine.Compile(reqFlags.request(args))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Dataflow plan:")
			fmt.Fprintln(out)
			fmt.Fprint(out, result.Plan.StructureText())
			fmt.Fprintln(out)
			fmt.Fprintln(out, "SQL:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.SQL)
			fmt.Fprintln(out, "Optimized SQL:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.OptimizedSQL)
			return nil
		},
	}

	reqFlags.register(cmd)
	return cmd
}
