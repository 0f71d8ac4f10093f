package dataflow

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/metriq/internal/dag"
)

// Plan is a complete dataflow plan: a DAG of nodes with a single sink.
// The plan id names snapshot files ("plan0").
type Plan struct {
	ID    string
	Sink  Node
	graph *dag.Graph
}

// NewPlan wraps a sink node into a plan, registering every node in the
// plan graph. It errors if the node structure is cyclic.
func NewPlan(id string, sink Node) (*Plan, error) {
	g := dag.NewGraph()
	var register func(n Node) error
	seen := make(map[string]bool)
	register = func(n Node) error {
		if seen[n.ID()] {
			return nil
		}
		seen[n.ID()] = true
		g.AddNode(n.ID(), n)
		for _, input := range n.Inputs() {
			if err := register(input); err != nil {
				return err
			}
			if err := g.AddEdge(input.ID(), n.ID()); err != nil {
				return err
			}
		}
		return nil
	}
	if err := register(sink); err != nil {
		return nil, err
	}
	if g.HasCycle() {
		return nil, fmt.Errorf("dataflow plan %s contains a cycle", id)
	}
	return &Plan{ID: id, Sink: sink, graph: g}, nil
}

// NodeCount returns the number of nodes in the plan.
func (p *Plan) NodeCount() int { return p.graph.NodeCount() }

// TopoSort returns node ids with inputs before consumers.
func (p *Plan) TopoSort() []string {
	order, _ := p.graph.TopoSort()
	return order
}

// StructureText renders the plan as an indented tree from the sink,
// used by explain output and plan snapshots.
func (p *Plan) StructureText() string {
	var sb strings.Builder
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(fmt.Sprintf("<%s %s>\n", nodeTypeName(n), n.ID()))
		sb.WriteString(strings.Repeat("  ", depth+1))
		sb.WriteString(n.Description())
		sb.WriteString("\n")
		for _, input := range n.Inputs() {
			walk(input, depth+1)
		}
	}
	walk(p.Sink, 0)
	return sb.String()
}

func nodeTypeName(n Node) string {
	switch n.(type) {
	case *ReadSqlSourceNode:
		return "ReadSqlSourceNode"
	case *JoinOnEntityNode:
		return "JoinOnEntityNode"
	case *WhereConstraintNode:
		return "WhereConstraintNode"
	case *FilterElementsNode:
		return "FilterElementsNode"
	case *AggregateMeasuresNode:
		return "AggregateMeasuresNode"
	case *ComputeMetricsNode:
		return "ComputeMetricsNode"
	case *OrderByLimitNode:
		return "OrderByLimitNode"
	default:
		return "Node"
	}
}
