package engine

import (
	"log/slog"

	"github.com/leapstack-labs/metriq/internal/dataflow"
	"github.com/leapstack-labs/metriq/internal/optimizer"
	"github.com/leapstack-labs/metriq/internal/plan2sql"
	"github.com/leapstack-labs/metriq/internal/query"
	"github.com/leapstack-labs/metriq/pkg/sqlrender"
)

// Compilation is the output of compiling one query: the dataflow plan
// and both SQL renderings.
type Compilation struct {
	Plan *dataflow.Plan
	// SQL is the direct, unoptimized rendering of the plan.
	SQL string
	// OptimizedSQL is the rendering after column pruning, sub-query
	// reduction and qualifier simplification. This is what Run executes.
	OptimizedSQL string
}

// Compile parses and plans a query and renders both SQL forms. Queries
// naming metrics get the full aggregation pipeline; queries without
// metrics select raw dimension values.
func (e *Engine) Compile(req query.Request) (*Compilation, error) {
	q, err := e.parser.Parse(req)
	if err != nil {
		return nil, err
	}

	var plan *dataflow.Plan
	if len(q.Metrics) > 0 {
		plan, err = e.builder.BuildMetricPlan(q)
	} else {
		plan, err = e.builder.BuildElementsPlan(nil, q)
	}
	if err != nil {
		return nil, err
	}

	// The optimizer mutates its input, so each rendering gets its own
	// lowering of the dataflow plan.
	raw, err := plan2sql.NewConverter().Convert(plan)
	if err != nil {
		return nil, err
	}
	optimized, err := plan2sql.NewConverter().Convert(plan)
	if err != nil {
		return nil, err
	}
	optimizer.Optimize(optimized)

	e.logger.Debug("compiled query",
		slog.Any("metrics", req.Metrics),
		slog.Any("group_bys", req.GroupBys),
		slog.Int("plan_nodes", plan.NodeCount()))

	return &Compilation{
		Plan:         plan,
		SQL:          sqlrender.RenderPlan(raw, e.dialect),
		OptimizedSQL: sqlrender.RenderPlan(optimized, e.dialect),
	}, nil
}
