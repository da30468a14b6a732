// Package flows provides canned workflow definitions for the common
// calculation sequences: double relaxation, band structures, GW
// convergence sweeps, and phonon displacement batches. Each constructor
// returns a plain Definition; callers hand it to the assembler together
// with a structure.
package flows

import (
	"fmt"

	"aimsflow/internal/params"
	"aimsflow/internal/workflow"
)

// DoubleRelaxOptions configures a two-step relaxation.
type DoubleRelaxOptions struct {
	// ID names the workflow. Defaults to "double-relax".
	ID string
	// LightSpecies and TightSpecies point to the species defaults for the
	// coarse and the refining pass. Defaults "light" and "tight".
	LightSpecies string
	TightSpecies string
}

func (o DoubleRelaxOptions) withDefaults() DoubleRelaxOptions {
	if o.ID == "" {
		o.ID = "double-relax"
	}
	if o.LightSpecies == "" {
		o.LightSpecies = "light"
	}
	if o.TightSpecies == "" {
		o.TightSpecies = "tight"
	}
	return o
}

// DoubleRelax chains two relaxations: a fast pass with light species
// defaults and a refining pass with tight ones, started from the relaxed
// geometry of the first.
func DoubleRelax(opts DoubleRelaxOptions) workflow.Definition {
	opts = opts.withDefaults()
	return workflow.Definition{
		ID:          opts.ID,
		Name:        "Double relaxation",
		Description: "Relax with light species defaults, then refine with tight ones.",
		Stages: []workflow.StageRef{
			{
				ID:        "relax-light",
				Flavor:    string(params.FlavorRelaxation),
				Overrides: params.Set{"species_dir": opts.LightSpecies},
			},
			{
				ID:            "relax-tight",
				Flavor:        string(params.FlavorRelaxation),
				StructureFrom: "relax-light.structure",
				Overrides:     params.Set{"species_dir": opts.TightSpecies},
				When:          []workflow.Predicate{workflow.Converged("relax-light")},
			},
		},
	}
}

// BandStructureOptions configures a relax, SCF, band-structure sequence.
type BandStructureOptions struct {
	// ID names the workflow. Defaults to "band-structure".
	ID string
	// SkipRelax drops the relaxation stage and runs the SCF on the input
	// geometry directly.
	SkipRelax bool
}

// BandStructure relaxes the structure, converges the ground-state density,
// and then computes bands along the configured path. The band path itself
// lives on the generator, not in the definition.
func BandStructure(opts BandStructureOptions) workflow.Definition {
	if opts.ID == "" {
		opts.ID = "band-structure"
	}
	def := workflow.Definition{
		ID:          opts.ID,
		Name:        "Band structure",
		Description: "Ground-state SCF followed by a band-structure pass.",
	}
	staticRef := workflow.StageRef{ID: "static", Flavor: string(params.FlavorStatic)}
	if !opts.SkipRelax {
		def.Stages = append(def.Stages, workflow.StageRef{
			ID:     "relax",
			Flavor: string(params.FlavorRelaxation),
		})
		staticRef.StructureFrom = "relax.structure"
		staticRef.When = []workflow.Predicate{workflow.Converged("relax")}
	}
	def.Stages = append(def.Stages, staticRef,
		workflow.StageRef{
			ID:            "bands",
			Flavor:        string(params.FlavorBandStructure),
			StructureFrom: "static.structure",
			When:          []workflow.Predicate{workflow.Converged("static")},
		})
	return def
}

// GWConvergenceOptions configures a GW sweep over a convergence field.
type GWConvergenceOptions struct {
	// ID names the workflow. Defaults to "gw-convergence".
	ID string
	// Periodic selects a band-structure ground state; molecules get a
	// plain SCF instead.
	Periodic bool
	// Field is the control option stepped between GW stages.
	Field string
	// Steps lists the values the field takes, one GW stage per value.
	Steps []any
	// Criterion and Epsilon describe when the engine may stop early. They
	// are recorded as metadata; assembly never evaluates them.
	Criterion string
	Epsilon   float64
}

// GWConvergence builds a ground-state stage followed by one GW stage per
// convergence step. Restart files are shared through elsi_restart so each
// step reuses the previous density.
func GWConvergence(opts GWConvergenceOptions) (workflow.Definition, error) {
	if opts.ID == "" {
		opts.ID = "gw-convergence"
	}
	if opts.Field == "" {
		return workflow.Definition{}, fmt.Errorf("flows: gw convergence needs a convergence field")
	}
	if len(opts.Steps) == 0 {
		return workflow.Definition{}, fmt.Errorf("flows: gw convergence needs at least one step for %s", opts.Field)
	}
	criterion := opts.Criterion
	if criterion == "" {
		criterion = "bandgap"
	}
	epsilon := opts.Epsilon
	if epsilon == 0 {
		epsilon = 0.001
	}

	groundFlavor := params.FlavorStatic
	if opts.Periodic {
		groundFlavor = params.FlavorBandStructure
	}
	restart := params.Set{"elsi_restart": []any{"read_and_write", 1}}

	def := workflow.Definition{
		ID:          opts.ID,
		Name:        "GW convergence",
		Description: fmt.Sprintf("GW sweep over %s with %d steps.", opts.Field, len(opts.Steps)),
		Metadata: map[string]string{
			"criterion": criterion,
			"epsilon":   fmt.Sprintf("%g", epsilon),
			"field":     opts.Field,
		},
		Stages: []workflow.StageRef{
			{ID: "ground", Flavor: string(groundFlavor), Overrides: restart.Clone()},
		},
	}

	prev := "ground"
	for i, step := range opts.Steps {
		id := fmt.Sprintf("gw-%d", i+1)
		overrides := restart.Clone()
		overrides[opts.Field] = step
		ref := workflow.StageRef{
			ID:            id,
			Flavor:        string(params.FlavorGW),
			StructureFrom: "ground.structure",
			Overrides:     overrides,
			When:          []workflow.Predicate{workflow.Converged(prev)},
		}
		if prev != "ground" {
			ref.DependsOn = []string{prev}
		}
		def.Stages = append(def.Stages, ref)
		prev = id
	}
	return def, nil
}

// PhononOptions configures a phonon displacement batch.
type PhononOptions struct {
	// ID names the workflow. Defaults to "phonon".
	ID string
	// Displacements is the number of displaced supercell force runs.
	// Defaults to 1.
	Displacements int
	// SkipRelax skips the initial relaxation.
	SkipRelax bool
}

// Phonon relaxes the structure and then fans out one force calculation per
// displacement. The engine supplies the displaced geometries at run time;
// every displacement stage therefore draws its structure from the
// relaxation symbolically.
func Phonon(opts PhononOptions) workflow.Definition {
	if opts.ID == "" {
		opts.ID = "phonon"
	}
	if opts.Displacements <= 0 {
		opts.Displacements = 1
	}
	def := workflow.Definition{
		ID:          opts.ID,
		Name:        "Phonon displacements",
		Description: fmt.Sprintf("Force calculations on %d displaced cells.", opts.Displacements),
	}
	source := ""
	var gate []workflow.Predicate
	if !opts.SkipRelax {
		def.Stages = append(def.Stages, workflow.StageRef{
			ID:     "relax",
			Flavor: string(params.FlavorRelaxation),
		})
		source = "relax.structure"
		gate = []workflow.Predicate{workflow.Converged("relax")}
	}
	for i := 0; i < opts.Displacements; i++ {
		def.Stages = append(def.Stages, workflow.StageRef{
			ID:            fmt.Sprintf("displacement-%d", i+1),
			Flavor:        string(params.FlavorPhonon),
			StructureFrom: source,
			When:          gate,
		})
	}
	return def
}
