package commands

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metriq/pkg/semantic"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List metrics, dimensions and data sources in the manifest",
		Example: `  metriq list
  metriq list metrics
  metriq list dimensions
  metriq list sources`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			m := cmdCtx.Engine.Lookup().Manifest()
			out := cmd.OutOrStdout()
			listMetrics(out, m)
			listDimensions(out, m)
			listSources(out, m)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "metrics",
		Short: "List metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, listMetrics)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "dimensions",
		Short: "List dimensions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, listDimensions)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sources",
		Short: "List data sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, listSources)
		},
	})

	return cmd
}

func runList(cmd *cobra.Command, render func(io.Writer, *semantic.Manifest)) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	render(cmd.OutOrStdout(), cmdCtx.Engine.Lookup().Manifest())
	return nil
}

func listMetrics(w io.Writer, m *semantic.Manifest) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Metrics")
	t.AppendHeader(table.Row{"Name", "Type", "Measures", "Filter"})
	for _, metric := range m.Metrics {
		t.AppendRow(table.Row{
			metric.Name,
			string(metric.Type),
			strings.Join(metric.InputMeasures(), ", "),
			metric.Filter,
		})
	}
	t.Render()
}

func listDimensions(w io.Writer, m *semantic.Manifest) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Dimensions")
	t.AppendHeader(table.Row{"Name", "Source", "Type", "Grain"})
	for _, ds := range m.DataSources {
		for _, dim := range ds.Dimensions {
			grain := ""
			if dim.Type == semantic.DimensionTime {
				grain = string(dim.Granularity())
			}
			t.AppendRow(table.Row{dim.Name, ds.Name, string(dim.Type), grain})
		}
	}
	t.Render()
}

func listSources(w io.Writer, m *semantic.Manifest) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Data Sources")
	t.AppendHeader(table.Row{"Name", "From", "Measures", "Entities"})
	for _, ds := range m.DataSources {
		from := ds.SQLTable
		if from == "" {
			from = "(query)"
		}
		var measures, entities []string
		for _, ms := range ds.Measures {
			measures = append(measures, ms.Name)
		}
		for _, e := range ds.Entities {
			entities = append(entities, e.Name)
		}
		t.AppendRow(table.Row{
			ds.Name,
			from,
			strings.Join(measures, ", "),
			strings.Join(entities, ", "),
		})
	}
	t.Render()
}
