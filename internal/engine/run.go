package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/metriq/internal/query"
)

// Result holds the rows a query produced, scanned into generic values.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Run compiles a query and executes its optimized SQL against the
// configured target.
func (e *Engine) Run(ctx context.Context, req query.Request) (*Result, error) {
	c, err := e.Compile(req)
	if err != nil {
		return nil, err
	}

	db, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.Query(ctx, c.OptimizedSQL)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}

	e.logger.Debug("query executed",
		slog.Int("rows", len(result.Rows)),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}
