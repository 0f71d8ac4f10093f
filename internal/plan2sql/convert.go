// Package plan2sql lowers dataflow plans to SQL query plans. Each
// dataflow node becomes one select statement; sub-query aliases are
// assigned in post-order so inner selects get the lower numbers, and
// data source reads get stable aliases starting at 10000.
package plan2sql

import (
	"fmt"

	"github.com/leapstack-labs/metriq/internal/dataflow"
	"github.com/leapstack-labs/metriq/pkg/semantic"
	"github.com/leapstack-labs/metriq/pkg/spec"
	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

// sourceAliasBase keeps source aliases visually distinct from the
// subq_N sub-query aliases.
const sourceAliasBase = 10000

// Converter lowers one dataflow plan per call. Alias counters reset on
// every Convert, so converting the same plan twice yields identical SQL.
type Converter struct {
	subqCount int
	srcCount  int
}

// NewConverter creates a Converter.
func NewConverter() *Converter {
	return &Converter{}
}

// relation is the result of lowering one node: its select statement,
// the alias a parent select uses to reference it, and its output
// column names in order.
type relation struct {
	stmt  *sqlplan.SelectStatement
	alias string
	cols  []string
}

// Convert lowers a dataflow plan to a SQL query plan with the same id.
func (c *Converter) Convert(plan *dataflow.Plan) (*sqlplan.Plan, error) {
	c.subqCount = 0
	c.srcCount = 0

	rel, err := c.convert(plan.Sink)
	if err != nil {
		return nil, err
	}
	return &sqlplan.Plan{ID: plan.ID, Root: rel.stmt}, nil
}

func (c *Converter) convert(n dataflow.Node) (*relation, error) {
	switch node := n.(type) {
	case *dataflow.ReadSqlSourceNode:
		return c.readNode(node)
	case *dataflow.JoinOnEntityNode:
		return c.joinNode(node)
	case *dataflow.WhereConstraintNode:
		return c.whereNode(node)
	case *dataflow.FilterElementsNode:
		return c.filterNode(node)
	case *dataflow.AggregateMeasuresNode:
		return c.aggregateNode(node)
	case *dataflow.ComputeMetricsNode:
		return c.metricsNode(node)
	case *dataflow.OrderByLimitNode:
		return c.orderNode(node)
	default:
		return nil, fmt.Errorf("cannot lower dataflow node %s", n.ID())
	}
}

// finish assigns the post-order sub-query alias to a lowered select.
func (c *Converter) finish(stmt *sqlplan.SelectStatement) *relation {
	alias := fmt.Sprintf("subq_%d", c.subqCount)
	c.subqCount++
	return &relation{stmt: stmt, alias: alias, cols: stmt.ColumnNames()}
}

func (c *Converter) readNode(n *dataflow.ReadSqlSourceNode) (*relation, error) {
	srcAlias := fmt.Sprintf("%s_src_%d", n.Source.Name, sourceAliasBase+c.srcCount)
	c.srcCount++

	cols := make([]sqlplan.SelectColumn, 0, len(n.Elements))
	for _, e := range n.Elements {
		cols = append(cols, sqlplan.SelectColumn{
			Expr:  qualify(e.Expr, srcAlias),
			Alias: e.Name,
		})
	}

	var from sqlplan.Source
	if n.Source.SQLQuery != "" {
		from = sqlplan.Source{RawSQL: n.Source.SQLQuery}
	} else {
		from = sqlplan.Source{Table: n.Source.SQLTable}
	}

	return c.finish(&sqlplan.SelectStatement{
		Description: []string{n.Description()},
		Columns:     cols,
		From:        from,
		FromAlias:   srcAlias,
	}), nil
}

func (c *Converter) joinNode(n *dataflow.JoinOnEntityNode) (*relation, error) {
	left, err := c.convert(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.convert(n.Right)
	if err != nil {
		return nil, err
	}
	if !contains(left.cols, n.Entity) {
		return nil, fmt.Errorf("join entity %q is not produced by the left side", n.Entity)
	}
	if !contains(right.cols, n.Entity) {
		return nil, fmt.Errorf("join entity %q is not produced by the right side", n.Entity)
	}

	cols := passthrough(left)
	for _, name := range right.cols {
		if name == n.Entity {
			continue
		}
		cols = append(cols, sqlplan.SelectColumn{
			Expr:  &sqlplan.ColumnRef{Table: right.alias, Column: name},
			Alias: n.Prefix + spec.NameSeparator + name,
		})
	}

	on := &sqlplan.Comparison{
		Left:  &sqlplan.ColumnRef{Table: left.alias, Column: n.Entity},
		Op:    sqlplan.CompareEq,
		Right: &sqlplan.ColumnRef{Table: right.alias, Column: n.Entity},
	}

	return c.finish(&sqlplan.SelectStatement{
		Description: []string{n.Description()},
		Columns:     cols,
		From:        sqlplan.Source{Select: left.stmt},
		FromAlias:   left.alias,
		Joins: []sqlplan.Join{{
			Type:  sqlplan.JoinLeftOuter,
			Right: sqlplan.Source{Select: right.stmt},
			Alias: right.alias,
			On:    on,
		}},
	}), nil
}

func (c *Converter) whereNode(n *dataflow.WhereConstraintNode) (*relation, error) {
	child, err := c.convert(n.Input)
	if err != nil {
		return nil, err
	}

	// Filter expressions reference elements by their unqualified names;
	// anchor them to the child sub-query.
	where := sqlplan.RewriteColumnRefs(n.Filter.Expr, func(ref *sqlplan.ColumnRef) sqlplan.Expr {
		if ref.Table != "" {
			cp := *ref
			return &cp
		}
		return &sqlplan.ColumnRef{Table: child.alias, Column: ref.Column}
	})

	return c.finish(&sqlplan.SelectStatement{
		Description: []string{n.Description()},
		Columns:     passthrough(child),
		From:        sqlplan.Source{Select: child.stmt},
		FromAlias:   child.alias,
		Where:       where,
	}), nil
}

func (c *Converter) filterNode(n *dataflow.FilterElementsNode) (*relation, error) {
	child, err := c.convert(n.Input)
	if err != nil {
		return nil, err
	}

	cols := make([]sqlplan.SelectColumn, 0, len(n.Include))
	for _, name := range n.Include {
		if !contains(child.cols, name) {
			return nil, fmt.Errorf("element %q is not produced by %s", name, n.Input.ID())
		}
		cols = append(cols, sqlplan.SelectColumn{
			Expr:  &sqlplan.ColumnRef{Table: child.alias, Column: name},
			Alias: name,
		})
	}

	return c.finish(&sqlplan.SelectStatement{
		Description: []string{n.Description()},
		Columns:     cols,
		From:        sqlplan.Source{Select: child.stmt},
		FromAlias:   child.alias,
	}), nil
}

func (c *Converter) aggregateNode(n *dataflow.AggregateMeasuresNode) (*relation, error) {
	child, err := c.convert(n.Input)
	if err != nil {
		return nil, err
	}

	cols := make([]sqlplan.SelectColumn, 0, len(n.GroupBys)+len(n.Measures))
	groupBys := make([]sqlplan.Expr, 0, len(n.GroupBys))
	for _, name := range n.GroupBys {
		if !contains(child.cols, name) {
			return nil, fmt.Errorf("group by %q is not produced by %s", name, n.Input.ID())
		}
		ref := &sqlplan.ColumnRef{Table: child.alias, Column: name}
		cols = append(cols, sqlplan.SelectColumn{Expr: ref, Alias: name})
		groupBys = append(groupBys, ref)
	}
	for _, m := range n.Measures {
		if !contains(child.cols, m.Name) {
			return nil, fmt.Errorf("measure %q is not produced by %s", m.Name, n.Input.ID())
		}
		cols = append(cols, sqlplan.SelectColumn{
			Expr: &sqlplan.AggregateCall{
				Fn:  m.Fn,
				Arg: &sqlplan.ColumnRef{Table: child.alias, Column: m.Name},
			},
			Alias: m.Name,
		})
	}

	return c.finish(&sqlplan.SelectStatement{
		Description: []string{n.Description()},
		Columns:     cols,
		From:        sqlplan.Source{Select: child.stmt},
		FromAlias:   child.alias,
		GroupBys:    groupBys,
	}), nil
}

func (c *Converter) metricsNode(n *dataflow.ComputeMetricsNode) (*relation, error) {
	child, err := c.convert(n.Input)
	if err != nil {
		return nil, err
	}

	cols := make([]sqlplan.SelectColumn, 0, len(n.GroupBys)+len(n.Metrics))
	for _, name := range n.GroupBys {
		cols = append(cols, sqlplan.SelectColumn{
			Expr:  &sqlplan.ColumnRef{Table: child.alias, Column: name},
			Alias: name,
		})
	}
	for _, m := range n.Metrics {
		expr, err := metricExpr(m, child)
		if err != nil {
			return nil, err
		}
		cols = append(cols, sqlplan.SelectColumn{Expr: expr, Alias: m.Name})
	}

	return c.finish(&sqlplan.SelectStatement{
		Description: []string{n.Description()},
		Columns:     cols,
		From:        sqlplan.Source{Select: child.stmt},
		FromAlias:   child.alias,
	}), nil
}

// metricExpr builds the output expression of one metric over the
// aggregated measure columns. Ratio denominators are wrapped in NULLIF
// so division by zero yields NULL rather than an error.
func metricExpr(m dataflow.MetricComputation, child *relation) (sqlplan.Expr, error) {
	measureRef := func(name string) (*sqlplan.ColumnRef, error) {
		if !contains(child.cols, name) {
			return nil, fmt.Errorf("metric %q needs measure %q which is not aggregated", m.Name, name)
		}
		return &sqlplan.ColumnRef{Table: child.alias, Column: name}, nil
	}

	switch m.Type {
	case semantic.MetricRatio:
		num, err := measureRef(m.Numerator)
		if err != nil {
			return nil, err
		}
		denom, err := measureRef(m.Denominator)
		if err != nil {
			return nil, err
		}
		return &sqlplan.Arithmetic{
			Left: &sqlplan.CastDouble{Arg: num},
			Op:   sqlplan.ArithDiv,
			Right: &sqlplan.CastDouble{Arg: &sqlplan.NullIf{
				Left:  denom,
				Right: &sqlplan.Literal{Type: sqlplan.LiteralNumber, Value: "0"},
			}},
		}, nil
	default:
		return measureRef(m.Measure)
	}
}

func (c *Converter) orderNode(n *dataflow.OrderByLimitNode) (*relation, error) {
	child, err := c.convert(n.Input)
	if err != nil {
		return nil, err
	}

	orderBys := make([]sqlplan.OrderBy, 0, len(n.OrderBys))
	for _, o := range n.OrderBys {
		if !contains(child.cols, o.Name) {
			return nil, fmt.Errorf("order by %q is not produced by %s", o.Name, n.Input.ID())
		}
		orderBys = append(orderBys, sqlplan.OrderBy{
			Expr: &sqlplan.ColumnRef{Table: child.alias, Column: o.Name},
			Desc: o.Descending,
		})
	}

	return c.finish(&sqlplan.SelectStatement{
		Description: []string{n.Description()},
		Columns:     passthrough(child),
		From:        sqlplan.Source{Select: child.stmt},
		FromAlias:   child.alias,
		OrderBys:    orderBys,
		Limit:       n.Limit,
	}), nil
}

// passthrough projects every output column of a child relation under
// its own name.
func passthrough(child *relation) []sqlplan.SelectColumn {
	cols := make([]sqlplan.SelectColumn, 0, len(child.cols))
	for _, name := range child.cols {
		cols = append(cols, sqlplan.SelectColumn{
			Expr:  &sqlplan.ColumnRef{Table: child.alias, Column: name},
			Alias: name,
		})
	}
	return cols
}

// qualify anchors the unqualified column references of an element
// expression to the data source alias.
func qualify(expr sqlplan.Expr, alias string) sqlplan.Expr {
	return sqlplan.RewriteColumnRefs(expr, func(ref *sqlplan.ColumnRef) sqlplan.Expr {
		if ref.Table != "" {
			cp := *ref
			return &cp
		}
		return &sqlplan.ColumnRef{Table: alias, Column: ref.Column}
	})
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
