// Package planner previews what an execution engine would do with an
// assembled graph: given the output documents of finished stages, it
// classifies every stage as complete, running, ready, gated, or blocked.
// The preview is a pure function over the graph and the snapshot; it never
// launches anything.
package planner

import (
	"fmt"

	"aimsflow/internal/schema"
	"aimsflow/internal/workflow"
)

// State classifies one stage in the preview.
type State string

const (
	// StateComplete means a converged output document exists for the stage.
	StateComplete State = "complete"
	// StateRunning means the caller reported the stage as in flight.
	StateRunning State = "running"
	// StateReady means every dependency is complete and every predicate on
	// the stage's incoming edges holds.
	StateReady State = "ready"
	// StateGated means the dependencies are complete but a conditional
	// edge's predicate fails or cannot be evaluated yet.
	StateGated State = "gated"
	// StateBlocked means at least one dependency is not complete.
	StateBlocked State = "blocked"
)

// Snapshot is the runtime state the caller knows about.
type Snapshot struct {
	// Docs maps finished stage IDs to their output documents. A stage with
	// a document counts as complete only when the document converged.
	Docs map[string]*schema.Document
	// Running lists stage IDs currently in flight.
	Running []string
}

// StageStatus explains the planner's verdict for one stage.
type StageStatus struct {
	Stage  string `json:"stage"`
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// Plan is the full preview, stages in topological order.
type Plan struct {
	Stages []StageStatus `json:"stages"`
	// Ready repeats the ready stage IDs for convenience.
	Ready []string `json:"ready,omitempty"`
}

// Status retrieves the verdict for one stage.
func (p Plan) Status(id string) (StageStatus, bool) {
	for _, status := range p.Stages {
		if status.Stage == id {
			return status, true
		}
	}
	return StageStatus{}, false
}

// Preview classifies every stage of the graph against the snapshot.
func Preview(graph *workflow.Graph, snap Snapshot) (Plan, error) {
	if graph == nil {
		return Plan{}, fmt.Errorf("planner: graph is required")
	}
	running := map[string]struct{}{}
	for _, id := range snap.Running {
		running[id] = struct{}{}
	}
	when := edgePredicates(graph)

	plan := Plan{Stages: make([]StageStatus, 0, graph.Len())}
	for _, node := range graph.Nodes() {
		id := node.Spec.Stage
		status := StageStatus{Stage: id}
		switch {
		case completed(snap.Docs[id]):
			status.State = StateComplete
		case isRunning(running, id):
			status.State = StateRunning
		default:
			status.State, status.Detail = classify(node, snap, when[id])
		}
		plan.Stages = append(plan.Stages, status)
		if status.State == StateReady {
			plan.Ready = append(plan.Ready, id)
		}
	}
	return plan, nil
}

func completed(doc *schema.Document) bool {
	return doc != nil && doc.Converged
}

func isRunning(running map[string]struct{}, id string) bool {
	_, ok := running[id]
	return ok
}

// edgePredicates groups every recorded predicate by the stage it gates.
func edgePredicates(graph *workflow.Graph) map[string][]workflow.Predicate {
	out := map[string][]workflow.Predicate{}
	for _, edge := range graph.Edges() {
		if edge.Conditional() {
			out[edge.To] = append(out[edge.To], edge.When...)
		}
	}
	return out
}

func classify(node *workflow.Node, snap Snapshot, when []workflow.Predicate) (State, string) {
	for _, dep := range node.Dependencies {
		if !completed(snap.Docs[dep]) {
			return StateBlocked, fmt.Sprintf("waiting on %s", dep)
		}
	}
	for _, pred := range when {
		holds, err := evaluate(pred, snap.Docs)
		if err != nil {
			return StateGated, err.Error()
		}
		if !holds {
			return StateGated, fmt.Sprintf("predicate %s does not hold", pred)
		}
	}
	return StateReady, ""
}

// evaluate checks a recorded predicate against a finished stage's document.
func evaluate(pred workflow.Predicate, docs map[string]*schema.Document) (bool, error) {
	ref, err := pred.OutputRef()
	if err != nil {
		return false, err
	}
	doc := docs[ref.Stage]
	if doc == nil {
		return false, fmt.Errorf("planner: predicate %s: no document for stage %s", pred, ref.Stage)
	}
	value, ok := fieldValue(doc, ref.Field)
	if !ok {
		return false, fmt.Errorf("planner: predicate %s: document lacks field %s", pred, ref.Field)
	}
	return compare(value, pred.Op, pred.Value)
}

func fieldValue(doc *schema.Document, field schema.Field) (any, bool) {
	switch field {
	case schema.FieldConverged:
		return doc.Converged, true
	case schema.FieldEnergy:
		if doc.Energy != nil {
			return *doc.Energy, true
		}
	case schema.FieldFreeEnergy:
		if doc.FreeEnergy != nil {
			return *doc.FreeEnergy, true
		}
	case schema.FieldBandgap:
		if doc.Bandgap != nil {
			return *doc.Bandgap, true
		}
	case schema.FieldDirName:
		if doc.DirName != "" {
			return doc.DirName, true
		}
	}
	return nil, false
}

func compare(got any, op workflow.Op, want any) (bool, error) {
	switch op {
	case workflow.OpEq, workflow.OpNe:
		equal := scalarEqual(got, want)
		if op == workflow.OpNe {
			return !equal, nil
		}
		return equal, nil
	case workflow.OpLt, workflow.OpLe, workflow.OpGt, workflow.OpGe:
		a, okA := asFloat(got)
		b, okB := asFloat(want)
		if !okA || !okB {
			return false, fmt.Errorf("planner: operator %s needs numeric operands, got %T and %T", op, got, want)
		}
		switch op {
		case workflow.OpLt:
			return a < b, nil
		case workflow.OpLe:
			return a <= b, nil
		case workflow.OpGt:
			return a > b, nil
		default:
			return a >= b, nil
		}
	}
	return false, fmt.Errorf("planner: unknown operator %q", op)
}

func scalarEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	}
	return 0, false
}
