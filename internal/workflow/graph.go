package workflow

import (
	"encoding/json"
	"fmt"

	"aimsflow/internal/job"
)

// GraphConstructionError reports a malformed stage sequence: a reference to
// an undefined stage, a duplicate id, or a cycle. Assembly fails whole; no
// partial graph is ever produced.
type GraphConstructionError struct {
	Workflow string
	Stage    string
	Reason   string
}

func (e *GraphConstructionError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("workflow %s: %s", e.Workflow, e.Reason)
	}
	return fmt.Sprintf("workflow %s: stage %s: %s", e.Workflow, e.Stage, e.Reason)
}

// ConstructionErr builds a GraphConstructionError.
func ConstructionErr(workflow, stage, format string, args ...any) *GraphConstructionError {
	return &GraphConstructionError{
		Workflow: workflow,
		Stage:    stage,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// Edge is a directed data dependency: the output of From feeds To. When
// predicates are present the edge is conditional and the execution engine
// decides at run time whether To runs.
type Edge struct {
	From string      `json:"from" yaml:"from"`
	To   string      `json:"to" yaml:"to"`
	When []Predicate `json:"when,omitempty" yaml:"when,omitempty"`
}

// Conditional reports whether the edge carries predicates.
func (e Edge) Conditional() bool {
	return len(e.When) > 0
}

// Node pairs an assembled job spec with its graph bookkeeping.
type Node struct {
	Spec job.Spec `json:"spec" yaml:"spec"`
	// Dependencies and Dependents are stage IDs, sorted.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty" yaml:"dependents,omitempty"`
}

// Graph is the assembled, immutable workflow: a DAG of job specs plus the
// edge set the execution engine must respect. It is handed whole to the
// engine; this package never schedules or executes anything.
type Graph struct {
	ID    string
	Name  string
	nodes map[string]*Node
	order []string // topological, ties broken by declaration order
	edges []Edge
}

// NewGraph is called by the assembler once construction has fully
// succeeded; no partial graph ever reaches it.
func NewGraph(id, name string, nodes map[string]*Node, order []string, edges []Edge) *Graph {
	return &Graph{ID: id, Name: name, nodes: nodes, order: order, edges: edges}
}

// Len returns the number of stages.
func (g *Graph) Len() int {
	return len(g.order)
}

// Node retrieves a stage by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Nodes returns the nodes in topological order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Order returns the stage IDs in topological order.
func (g *Graph) Order() []string {
	return append([]string{}, g.order...)
}

// Edges returns the edge set.
func (g *Graph) Edges() []Edge {
	return append([]Edge{}, g.edges...)
}

// Roots returns the stages with no dependencies, in topological order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.nodes[id].Dependencies) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// graphDocument is the serialized hand-off format for the execution engine.
type graphDocument struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Order []string `json:"order"`
	Nodes []*Node  `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// MarshalJSON serializes the graph in engine hand-off form: nodes in
// topological order plus the explicit edge set.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphDocument{
		ID:    g.ID,
		Name:  g.Name,
		Order: g.Order(),
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	})
}
