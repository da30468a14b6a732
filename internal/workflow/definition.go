// Package workflow declares the directed graphs of calculation stages that
// an external execution engine runs. Definitions are declarative: they name
// stages, flavors, and dependencies, and the assembler turns them into an
// immutable Graph of job specs.
package workflow

import (
	"fmt"
	"sort"

	"aimsflow/internal/params"
)

// DependencyGraph maps stage identifiers to the stage IDs they depend on.
type DependencyGraph map[string][]string

// Clone returns a deep copy of the graph.
func (g DependencyGraph) Clone() DependencyGraph {
	if len(g) == 0 {
		return nil
	}
	out := make(DependencyGraph, len(g))
	for key, deps := range g {
		if len(deps) == 0 {
			out[key] = nil
			continue
		}
		clone := make([]string, len(deps))
		copy(clone, deps)
		out[key] = clone
	}
	return out
}

// Definition declares an executable workflow graph composed of calculation
// stages.
type Definition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Stages      []StageRef        `json:"stages" yaml:"stages"`
	Graph       DependencyGraph   `json:"graph,omitempty" yaml:"graph,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// StageRef describes one stage of a workflow: which flavor to run, where
// its structure comes from, and when it may run.
type StageRef struct {
	ID     string `json:"id" yaml:"id"`
	Flavor string `json:"flavor" yaml:"flavor"`
	// StructureFrom names a prior stage output ("stage.field") the stage
	// starts from. Empty means the caller-supplied structure.
	StructureFrom string     `json:"structure_from,omitempty" yaml:"structure_from,omitempty"`
	DependsOn     []string   `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Overrides     params.Set `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	// When guards the stage with predicates over prior outputs. Predicates
	// are recorded on the graph edges and evaluated by the execution
	// engine, never during assembly.
	When       []Predicate `json:"when,omitempty" yaml:"when,omitempty"`
	Properties []string    `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Clone returns a deep copy of the stage reference.
func (ref StageRef) Clone() StageRef {
	clone := StageRef{
		ID:            ref.ID,
		Flavor:        ref.Flavor,
		StructureFrom: ref.StructureFrom,
	}
	if len(ref.DependsOn) > 0 {
		clone.DependsOn = append([]string{}, ref.DependsOn...)
	}
	if len(ref.Overrides) > 0 {
		clone.Overrides = ref.Overrides.Clone()
	}
	if len(ref.When) > 0 {
		clone.When = append([]Predicate{}, ref.When...)
	}
	if len(ref.Properties) > 0 {
		clone.Properties = append([]string{}, ref.Properties...)
	}
	return clone
}

// Validate ensures the reference is usable.
func (ref StageRef) Validate() error {
	if ref.ID == "" {
		return fmt.Errorf("workflow: stage id is required")
	}
	if ref.Flavor == "" {
		return fmt.Errorf("workflow: stage %s: flavor is required", ref.ID)
	}
	deps := append([]string{}, ref.DependsOn...)
	sort.Strings(deps)
	for i := 1; i < len(deps); i++ {
		if deps[i] == deps[i-1] {
			return fmt.Errorf("workflow: stage %s has duplicate dependency on %s", ref.ID, deps[i])
		}
	}
	for _, pred := range ref.When {
		if err := pred.Validate(); err != nil {
			return fmt.Errorf("workflow: stage %s: %w", ref.ID, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the definition.
func (def Definition) Clone() Definition {
	clone := Definition{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Graph:       def.Graph.Clone(),
		Metadata:    cloneStringMap(def.Metadata),
	}
	if len(def.Stages) > 0 {
		clone.Stages = make([]StageRef, len(def.Stages))
		for i, ref := range def.Stages {
			clone.Stages[i] = ref.Clone()
		}
	}
	return clone
}

// Validate ensures the definition is self-consistent: unique stage IDs and
// no references to unknown stages. Cycle detection happens at assembly.
func (def Definition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("workflow: id is required")
	}
	if len(def.Stages) == 0 {
		return fmt.Errorf("workflow %s: at least one stage is required", def.ID)
	}
	seen := map[string]struct{}{}
	for idx, ref := range def.Stages {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("workflow %s stage[%d]: %w", def.ID, idx, err)
		}
		if _, exists := seen[ref.ID]; exists {
			return fmt.Errorf("workflow %s: duplicate stage id %s", def.ID, ref.ID)
		}
		seen[ref.ID] = struct{}{}
	}
	for key, deps := range def.Graph {
		if _, ok := seen[key]; !ok {
			return fmt.Errorf("workflow %s: graph references unknown stage %s", def.ID, key)
		}
		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("workflow %s: graph dependency %s -> %s references unknown stage", def.ID, key, dep)
			}
		}
	}
	return nil
}

// Normalized clones the definition, merges inline stage dependencies into
// the graph, and validates the result.
func (def Definition) Normalized() (Definition, error) {
	clone := def.Clone()
	if clone.Graph == nil {
		clone.Graph = DependencyGraph{}
	}
	for _, ref := range clone.Stages {
		clone.Graph[ref.ID] = mergeDependencies(clone.Graph[ref.ID], ref.DependsOn)
	}
	if err := clone.Validate(); err != nil {
		return Definition{}, err
	}
	return clone, nil
}

// StageIDs returns the stage identifiers in declaration order.
func (def Definition) StageIDs() []string {
	ids := make([]string, 0, len(def.Stages))
	for _, ref := range def.Stages {
		ids = append(ids, ref.ID)
	}
	return ids
}

// Dependencies returns the dependency list for a stage.
func (def Definition) Dependencies(id string) []string {
	if def.Graph == nil {
		return nil
	}
	deps := def.Graph[id]
	if len(deps) == 0 {
		return nil
	}
	clone := make([]string, len(deps))
	copy(clone, deps)
	return clone
}

func mergeDependencies(existing, adds []string) []string {
	if len(adds) == 0 && len(existing) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, id := range existing {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	for _, id := range adds {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	clone := make(map[string]string, len(values))
	for key, value := range values {
		clone[key] = value
	}
	return clone
}
