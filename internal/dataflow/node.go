// Package dataflow models metric queries as a plan of dataflow nodes:
// reads of semantic data sources, joins over entities, filters,
// aggregations and metric computations. Plans are built from a resolved
// query spec and lowered to SQL by internal/plan2sql.
package dataflow

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/metriq/pkg/semantic"
	"github.com/leapstack-labs/metriq/pkg/spec"
	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

// Node is one step in a dataflow plan.
type Node interface {
	// ID is the plan-unique node id ("read_0", "where_2").
	ID() string
	// Description is the human-readable node label. It becomes the SQL
	// comment above the SELECT the node lowers to.
	Description() string
	// Inputs returns the upstream nodes, empty for sources.
	Inputs() []Node
}

// ElementKind classifies a projected element.
type ElementKind int

// Element kinds.
const (
	ElementMeasure ElementKind = iota
	ElementDimension
	ElementTimeDimension
	ElementEntity
)

// Element is one output column of a read node: a measure, dimension or
// entity expression over the underlying relation.
type Element struct {
	Name  string
	Kind  ElementKind
	Expr  sqlplan.Expr
	Grain spec.TimeGranularity
}

// ReadSqlSourceNode reads the elements of one semantic data source.
type ReadSqlSourceNode struct {
	id       string
	Source   *semantic.DataSource
	Elements []Element
}

// ID implements Node.
func (n *ReadSqlSourceNode) ID() string { return n.id }

// Description implements Node.
func (n *ReadSqlSourceNode) Description() string {
	return fmt.Sprintf("Read Elements From Semantic Model '%s'", n.Source.Name)
}

// Inputs implements Node.
func (n *ReadSqlSourceNode) Inputs() []Node { return nil }

// JoinOnEntityNode joins a dimension source to the measure flow on a
// shared entity. Right-side dimension columns are prefixed with the
// entity link name in the output.
type JoinOnEntityNode struct {
	id     string
	Left   Node
	Right  Node
	Entity string
	// Prefix is the entity link prepended to right-side dimension names.
	Prefix string
}

// ID implements Node.
func (n *JoinOnEntityNode) ID() string { return n.id }

// Description implements Node.
func (n *JoinOnEntityNode) Description() string { return "Join Standard Outputs" }

// Inputs implements Node.
func (n *JoinOnEntityNode) Inputs() []Node { return []Node{n.Left, n.Right} }

// WhereConstraintNode filters rows with a parsed where expression.
type WhereConstraintNode struct {
	id     string
	Input  Node
	Filter *spec.WhereFilterSpec
}

// ID implements Node.
func (n *WhereConstraintNode) ID() string { return n.id }

// Description implements Node.
func (n *WhereConstraintNode) Description() string { return "Constrain Output with WHERE" }

// Inputs implements Node.
func (n *WhereConstraintNode) Inputs() []Node { return []Node{n.Input} }

// FilterElementsNode passes through only the named elements.
type FilterElementsNode struct {
	id      string
	Input   Node
	Include []string
}

// ID implements Node.
func (n *FilterElementsNode) ID() string { return n.id }

// Description implements Node.
func (n *FilterElementsNode) Description() string {
	quoted := make([]string, 0, len(n.Include))
	for _, name := range n.Include {
		quoted = append(quoted, "'"+name+"'")
	}
	return fmt.Sprintf("Pass Only Elements: [%s]", strings.Join(quoted, ", "))
}

// Inputs implements Node.
func (n *FilterElementsNode) Inputs() []Node { return []Node{n.Input} }

// MeasureAggregation pairs a measure column with its aggregation.
type MeasureAggregation struct {
	Name string
	Fn   sqlplan.AggregateFn
}

// AggregateMeasuresNode aggregates measures grouped by the group-by
// elements.
type AggregateMeasuresNode struct {
	id       string
	Input    Node
	Measures []MeasureAggregation
	GroupBys []string
}

// ID implements Node.
func (n *AggregateMeasuresNode) ID() string { return n.id }

// Description implements Node.
func (n *AggregateMeasuresNode) Description() string { return "Aggregate Measures" }

// Inputs implements Node.
func (n *AggregateMeasuresNode) Inputs() []Node { return []Node{n.Input} }

// MetricComputation describes how one metric is computed from
// aggregated measure columns.
type MetricComputation struct {
	Name string
	Type semantic.MetricType
	// Measure is the input column of a simple metric.
	Measure string
	// Numerator and Denominator are the input columns of a ratio metric.
	Numerator   string
	Denominator string
}

// ComputeMetricsNode computes metric expressions over aggregated
// measures.
type ComputeMetricsNode struct {
	id       string
	Input    Node
	Metrics  []MetricComputation
	GroupBys []string
}

// ID implements Node.
func (n *ComputeMetricsNode) ID() string { return n.id }

// Description implements Node.
func (n *ComputeMetricsNode) Description() string { return "Compute Metrics via Expressions" }

// Inputs implements Node.
func (n *ComputeMetricsNode) Inputs() []Node { return []Node{n.Input} }

// OrderByLimitNode orders and limits the final output.
type OrderByLimitNode struct {
	id       string
	Input    Node
	OrderBys []spec.OrderBySpec
	Limit    *int64
}

// ID implements Node.
func (n *OrderByLimitNode) ID() string { return n.id }

// Description implements Node.
func (n *OrderByLimitNode) Description() string {
	names := make([]string, 0, len(n.OrderBys))
	for _, o := range n.OrderBys {
		names = append(names, "'"+o.Name+"'")
	}
	desc := fmt.Sprintf("Order By [%s]", strings.Join(names, ", "))
	if n.Limit != nil {
		desc = fmt.Sprintf("%s Limit %d", desc, *n.Limit)
	}
	return desc
}

// Inputs implements Node.
func (n *OrderByLimitNode) Inputs() []Node { return []Node{n.Input} }

// OutputColumns returns the output column names of a node in order.
func OutputColumns(n Node) []string {
	switch node := n.(type) {
	case *ReadSqlSourceNode:
		names := make([]string, 0, len(node.Elements))
		for _, e := range node.Elements {
			names = append(names, e.Name)
		}
		return names
	case *JoinOnEntityNode:
		names := OutputColumns(node.Left)
		for _, col := range OutputColumns(node.Right) {
			if col == node.Entity {
				continue
			}
			names = append(names, node.Prefix+spec.NameSeparator+col)
		}
		return names
	case *WhereConstraintNode:
		return OutputColumns(node.Input)
	case *FilterElementsNode:
		return append([]string(nil), node.Include...)
	case *AggregateMeasuresNode:
		names := append([]string(nil), node.GroupBys...)
		for _, m := range node.Measures {
			names = append(names, m.Name)
		}
		return names
	case *ComputeMetricsNode:
		names := append([]string(nil), node.GroupBys...)
		for _, m := range node.Metrics {
			names = append(names, m.Name)
		}
		return names
	case *OrderByLimitNode:
		return OutputColumns(node.Input)
	}
	return nil
}
