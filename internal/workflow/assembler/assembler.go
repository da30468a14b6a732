// Package assembler turns a workflow definition plus a structure into an
// assembled graph of job specs. Assembly is a pure, synchronous
// transformation: it resolves flavors, generates parameter sets, wires
// dependency edges, and records conditional predicates, but it never
// evaluates a predicate, launches a job, or touches the filesystem.
package assembler

import (
	"sort"

	"aimsflow/internal/job"
	"aimsflow/internal/params"
	"aimsflow/internal/schema"
	"aimsflow/internal/structure"
	"aimsflow/internal/workflow"
)

// Options carries the project-level collaborators for one assembly run.
type Options struct {
	// Generator produces parameter sets; its configuration (band paths,
	// strictness, k-point density) applies to every stage.
	Generator params.Generator
	// Registry resolves stage flavor names. Nil means the builtin flavors.
	Registry *params.Registry
	// Command is the external code invocation, e.g. ["mpirun", "aims.x"].
	Command []string
	// CodeVersion feeds the job fingerprints.
	CodeVersion string
	// WorkRoot is the directory the engine materializes stage workdirs in.
	WorkRoot string
	// PriorDocs holds output documents of already-finished runs when a
	// workflow restarts on top of earlier results. References into these
	// are checked eagerly and their parameters are carried forward.
	PriorDocs map[string]*schema.Document
}

func (o Options) registry() *params.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return params.NewRegistry()
}

// Assemble builds the workflow graph. It fails whole: any configuration,
// dependency, or graph error aborts assembly and no partial graph escapes.
func Assemble(def workflow.Definition, s structure.Structure, opts Options) (*workflow.Graph, error) {
	normalized, err := def.Normalized()
	if err != nil {
		return nil, workflow.ConstructionErr(def.ID, "", "%v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	registry := opts.registry()

	nodes := make(map[string]*workflow.Node, len(normalized.Stages))
	order := make([]string, 0, len(normalized.Stages))
	priors := map[string]params.Flavor{}
	var edges []workflow.Edge

	for _, ref := range normalized.Stages {
		recipe, err := registry.Resolve(ref.Flavor)
		if err != nil {
			return nil, workflow.ConstructionErr(normalized.ID, ref.ID, "%v", err)
		}

		deps, when, err := stageDependencies(normalized, ref, priors)
		if err != nil {
			return nil, err
		}

		structureFrom, err := parseStructureFrom(normalized.ID, ref)
		if err != nil {
			return nil, err
		}
		if structureFrom != nil {
			// Restarting on top of a finished stage carries its
			// parameters forward underneath the new flavor updates.
			if doc := opts.PriorDocs[structureFrom.Stage]; doc != nil && len(doc.Parameters) > 0 {
				recipe = recipe.WithCarry(doc.Parameters)
			}
		}

		set, err := opts.Generator.Generate(s, recipe, ref.Overrides)
		if err != nil {
			return nil, err
		}

		builder := job.Builder{
			Stage:         ref.ID,
			FlavorName:    ref.Flavor,
			Flavor:        recipe.Flavor,
			Parameters:    set,
			Needs:         deps,
			Priors:        priors,
			PriorDocs:     opts.PriorDocs,
			Properties:    ref.Properties,
			Command:       opts.Command,
			CodeVersion:   opts.CodeVersion,
			WorkRoot:      opts.WorkRoot,
			StructureFrom: structureFrom,
		}
		if structureFrom == nil {
			clone := s.Clone()
			builder.Structure = &clone
		}
		spec, err := builder.Build()
		if err != nil {
			return nil, err
		}

		node := &workflow.Node{
			Spec:         spec,
			Dependencies: spec.Needs,
		}
		nodes[ref.ID] = node
		order = append(order, ref.ID)
		priors[ref.ID] = recipe.Flavor

		for _, dep := range spec.Needs {
			edges = append(edges, workflow.Edge{
				From: dep,
				To:   ref.ID,
				When: when[dep],
			})
		}
	}

	for _, node := range nodes {
		for _, dep := range node.Dependencies {
			nodes[dep].Dependents = append(nodes[dep].Dependents, node.Spec.Stage)
		}
	}
	for _, id := range order {
		sort.Strings(nodes[id].Dependents)
	}

	if err := checkAcyclic(normalized, order); err != nil {
		return nil, err
	}
	return workflow.NewGraph(normalized.ID, normalized.Name, nodes, order, edges), nil
}

// stageDependencies collects the stage's declared and predicate-implied
// dependencies and groups its predicates by the prior stage they inspect.
// Every dependency must be declared before the stage that uses it.
func stageDependencies(def workflow.Definition, ref workflow.StageRef, priors map[string]params.Flavor) ([]string, map[string][]workflow.Predicate, error) {
	deps := append([]string{}, def.Dependencies(ref.ID)...)
	when := map[string][]workflow.Predicate{}

	for _, pred := range ref.When {
		target, err := pred.OutputRef()
		if err != nil {
			return nil, nil, workflow.ConstructionErr(def.ID, ref.ID, "%v", err)
		}
		prior, ok := priors[target.Stage]
		if !ok {
			return nil, nil, workflow.ConstructionErr(def.ID, ref.ID,
				"predicate %s references a stage not yet defined", pred)
		}
		contract, ok := schema.ContractFor(prior)
		if !ok || !contract.Produces(target.Field) {
			return nil, nil, workflow.ConstructionErr(def.ID, ref.ID,
				"predicate %s references a field flavor %s does not produce", pred, prior)
		}
		when[target.Stage] = append(when[target.Stage], pred)
		deps = append(deps, target.Stage)
	}

	for _, dep := range deps {
		if dep == ref.ID {
			return nil, nil, workflow.ConstructionErr(def.ID, ref.ID, "stage depends on itself")
		}
		if _, ok := priors[dep]; !ok {
			return nil, nil, workflow.ConstructionErr(def.ID, ref.ID,
				"dependency %s references a stage not yet defined", dep)
		}
	}
	return dedupe(deps), when, nil
}

func parseStructureFrom(workflowID string, ref workflow.StageRef) (*job.OutputRef, error) {
	if ref.StructureFrom == "" {
		return nil, nil
	}
	parsed, err := job.ParseOutputRef(ref.StructureFrom)
	if err != nil {
		return nil, workflow.ConstructionErr(workflowID, ref.ID, "%v", err)
	}
	return &parsed, nil
}

// checkAcyclic verifies the edge set with a Kahn pass. The
// declared-before-use rule already rules cycles out for inline
// dependencies; this guards explicit graph entries as well.
func checkAcyclic(def workflow.Definition, order []string) error {
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, id := range order {
		indegree[id] = len(def.Graph[id])
		for _, dep := range def.Graph[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}
	var queue []string
	for _, id := range order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(order) {
		return workflow.ConstructionErr(def.ID, "", "stage sequence contains a cycle")
	}
	return nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
