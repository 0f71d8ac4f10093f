// Package dag provides directed acyclic graph operations for dataflow
// plan nodes. It supports cycle detection and deterministic topological
// ordering used when printing plan structure.
package dag

import (
	"fmt"
	"sort"
)

// Node represents a node in the DAG.
type Node struct {
	// ID is the unique identifier (plan node id)
	ID string
	// Data holds the plan node
	Data interface{}
}

// Graph represents a directed acyclic graph.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children
	parents map[string][]string // child -> parents
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Adding an existing id updates its
// data.
func (g *Graph) AddNode(id string, data interface{}) {
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = &Node{ID: id, Data: data}
		g.edges[id] = []string{}
		g.parents[id] = []string{}
	} else {
		g.nodes[id].Data = data
	}
}

// AddEdge adds a directed edge from parent to child (child consumes the
// parent's output).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (inputs) of a node.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the children (consumers) of a node.
func (g *Graph) GetChildren(id string) []string {
	return g.edges[id]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// Sinks returns the ids of nodes with no children, sorted.
func (g *Graph) Sinks() []string {
	var sinks []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	sort.Strings(sinks)
	return sinks
}

// TopoSort returns node ids in dependency order (parents before
// children). Ties break on id so the order is deterministic. Returns an
// error if the graph contains a cycle.
func (g *Graph) TopoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.parents[id])
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var freed []string
		for _, child := range g.edges[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				freed = append(freed, child)
			}
		}
		sort.Strings(freed)
		ready = mergeSorted(ready, freed)
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("cycle detected: %d of %d nodes unreachable", len(g.nodes)-len(order), len(g.nodes))
	}
	return order, nil
}

// HasCycle reports whether the graph contains a cycle.
func (g *Graph) HasCycle() bool {
	_, err := g.TopoSort()
	return err != nil
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
