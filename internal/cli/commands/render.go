package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/metriq/internal/engine"
)

// renderResult writes a query result in the requested format.
func renderResult(w io.Writer, res *engine.Result, format string) error {
	switch format {
	case "table", "":
		return renderResultTable(w, res)
	case "csv":
		return renderResultCSV(w, res)
	case "json":
		return renderResultJSON(w, res)
	default:
		return fmt.Errorf("unknown format %q (want table, csv or json)", format)
	}
}

func renderResultTable(w io.Writer, res *engine.Result) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range res.Rows {
		out := make(table.Row, len(row))
		for i, cell := range row {
			out[i] = formatCell(cell)
		}
		t.AppendRow(out)
	}

	t.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(res.Rows))
	return nil
}

func renderResultCSV(w io.Writer, res *engine.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return err
	}
	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderResultJSON(w io.Writer, res *engine.Result) error {
	out := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		obj := make(map[string]any, len(res.Columns))
		for i, col := range res.Columns {
			obj[col] = row[i]
		}
		out = append(out, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// formatCell renders a single result value for text output.
func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
