package flows

import (
	"fmt"
	"testing"

	"aimsflow/internal/params"
	"aimsflow/internal/structure"
	"aimsflow/internal/workflow"
	"aimsflow/internal/workflow/assembler"
)

func silicon() structure.Structure {
	return structure.Structure{
		Name: "Si",
		Sites: []structure.Site{
			{Species: "Si", Position: structure.Vec3{0, 0, 0}},
			{Species: "Si", Position: structure.Vec3{1.3575, 1.3575, 1.3575}},
		},
		Lattice: &structure.Lattice{
			{0, 2.715, 2.715},
			{2.715, 0, 2.715},
			{2.715, 2.715, 0},
		},
		PBC: [3]bool{true, true, true},
	}
}

func assembleOptions() assembler.Options {
	return assembler.Options{
		Generator: params.Generator{
			BandPath: []params.BandSegment{
				{
					From: [3]float64{0, 0, 0}, To: [3]float64{0.5, 0, 0.5},
					FromLabel: "G", ToLabel: "X", Points: 21,
				},
			},
		},
		Command:     []string{"aims.x"},
		CodeVersion: "231208",
		WorkRoot:    "calcs",
	}
}

func mustAssemble(t *testing.T, def workflow.Definition) *workflow.Graph {
	t.Helper()
	graph, err := assembler.Assemble(def, silicon(), assembleOptions())
	if err != nil {
		t.Fatalf("assemble %s: %v", def.ID, err)
	}
	return graph
}

func TestDoubleRelax(t *testing.T) {
	graph := mustAssemble(t, DoubleRelax(DoubleRelaxOptions{}))
	if graph.Len() != 2 {
		t.Fatalf("expected 2 stages, got %d", graph.Len())
	}
	light, _ := graph.Node("relax-light")
	tight, _ := graph.Node("relax-tight")
	if light == nil || tight == nil {
		t.Fatalf("missing relaxation stages")
	}
	if light.Spec.Parameters["species_dir"] != "light" {
		t.Fatalf("light pass species_dir = %v", light.Spec.Parameters["species_dir"])
	}
	if tight.Spec.Parameters["species_dir"] != "tight" {
		t.Fatalf("tight pass species_dir = %v", tight.Spec.Parameters["species_dir"])
	}
	if tight.Spec.StructureFrom == nil || tight.Spec.StructureFrom.Stage != "relax-light" {
		t.Fatalf("tight pass must start from the light geometry: %+v", tight.Spec.StructureFrom)
	}
	edges := graph.Edges()
	if len(edges) != 1 || !edges[0].Conditional() {
		t.Fatalf("expected one conditional edge, got %+v", edges)
	}
}

func TestBandStructure(t *testing.T) {
	graph := mustAssemble(t, BandStructure(BandStructureOptions{}))
	if got := graph.Order(); len(got) != 3 || got[0] != "relax" || got[2] != "bands" {
		t.Fatalf("unexpected order: %v", got)
	}
	bands, _ := graph.Node("bands")
	if bands.Spec.Flavor != params.FlavorBandStructure {
		t.Fatalf("bands flavor = %s", bands.Spec.Flavor)
	}
	if _, ok := bands.Spec.Parameters["output"]; !ok {
		t.Fatalf("bands stage should carry band output lines: %v", bands.Spec.Parameters.Keys())
	}

	short := mustAssemble(t, BandStructure(BandStructureOptions{ID: "bs-norelax", SkipRelax: true}))
	if short.Len() != 2 {
		t.Fatalf("skip-relax flow should have 2 stages, got %d", short.Len())
	}
	if roots := short.Roots(); len(roots) != 1 || roots[0] != "static" {
		t.Fatalf("unexpected roots: %v", roots)
	}
}

func TestGWConvergence(t *testing.T) {
	def, err := GWConvergence(GWConvergenceOptions{
		Periodic: true,
		Field:    "frozen_core_scf",
		Steps:    []any{10, 20, 40},
	})
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	if def.Metadata["criterion"] != "bandgap" || def.Metadata["field"] != "frozen_core_scf" {
		t.Fatalf("unexpected metadata: %v", def.Metadata)
	}

	graph := mustAssemble(t, def)
	if graph.Len() != 4 {
		t.Fatalf("expected ground + 3 gw stages, got %d", graph.Len())
	}
	ground, _ := graph.Node("ground")
	if ground.Spec.Flavor != params.FlavorBandStructure {
		t.Fatalf("periodic ground state should be a band-structure run, got %s", ground.Spec.Flavor)
	}
	for i, step := range []any{10, 20, 40} {
		id := fmt.Sprintf("gw-%d", i+1)
		node, ok := graph.Node(id)
		if !ok {
			t.Fatalf("missing stage %s", id)
		}
		if node.Spec.Parameters["frozen_core_scf"] != step {
			t.Fatalf("%s: field = %v, want %v", id, node.Spec.Parameters["frozen_core_scf"], step)
		}
		if node.Spec.Parameters["qpe_calc"] != "gw" {
			t.Fatalf("%s should be a gw run", id)
		}
	}
	// Each step waits for its predecessor.
	gw3, _ := graph.Node("gw-3")
	found := false
	for _, dep := range gw3.Dependencies {
		if dep == "gw-2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("gw-3 should depend on gw-2: %v", gw3.Dependencies)
	}

	molecular, err := GWConvergence(GWConvergenceOptions{Field: "frozen_core_scf", Steps: []any{10}})
	if err != nil {
		t.Fatalf("build molecular definition: %v", err)
	}
	if molecular.Stages[0].Flavor != string(params.FlavorStatic) {
		t.Fatalf("molecular ground state should be static, got %s", molecular.Stages[0].Flavor)
	}

	if _, err := GWConvergence(GWConvergenceOptions{Steps: []any{10}}); err == nil {
		t.Fatalf("expected error without a convergence field")
	}
	if _, err := GWConvergence(GWConvergenceOptions{Field: "frozen_core_scf"}); err == nil {
		t.Fatalf("expected error without steps")
	}
}

func TestPhonon(t *testing.T) {
	graph := mustAssemble(t, Phonon(PhononOptions{Displacements: 4}))
	if graph.Len() != 5 {
		t.Fatalf("expected relax + 4 displacements, got %d", graph.Len())
	}
	relax, _ := graph.Node("relax")
	if len(relax.Dependents) != 4 {
		t.Fatalf("every displacement should depend on relax: %v", relax.Dependents)
	}
	for _, edge := range graph.Edges() {
		if !edge.Conditional() {
			t.Fatalf("displacement edges must be gated on convergence: %+v", edge)
		}
	}
	disp, _ := graph.Node("displacement-1")
	if disp.Spec.Parameters["compute_forces"] != true {
		t.Fatalf("displacement runs must compute forces: %v", disp.Spec.Parameters)
	}

	lone := mustAssemble(t, Phonon(PhononOptions{ID: "phonon-norelax", SkipRelax: true, Displacements: 2}))
	if got := len(lone.Edges()); got != 0 {
		t.Fatalf("skip-relax displacements are independent, got %d edges", got)
	}
}
