package params

import (
	"aimsflow/internal/structure"
)

// Defaults every generated set starts from. FHI-aims recommends running
// with the code's own defaults, so only the exchange-correlation functional
// and the relativistic treatment are pinned here.
func baseDefaults() Set {
	return Set{
		"xc":           "pbe",
		"relativistic": "atomic_zora scalar",
	}
}

// Generator produces complete parameter sets for one project. It is an
// immutable configuration object handed in at construction; there is no
// process-wide defaults table. The zero value is usable.
type Generator struct {
	// Base is layered over the builtin defaults before any flavor update.
	Base Set
	// User is layered over the flavor updates, below per-call overrides.
	User Set
	// KPointDensity is the Monkhorst-Pack density (points per reciprocal
	// Angstrom) used to synthesize k_grid for periodic structures that do
	// not set one. Zero means 5.0.
	KPointDensity float64
	// Strict rejects override keys this package does not know about.
	// When unset, unknown keys pass through verbatim as raw control.in
	// directives.
	Strict bool

	// Relaxation knobs.
	RelaxMethod string  // optimizer, default "trm"
	MaxForce    float64 // convergence criterion in eV/A, default 1e-3
	RelaxCell   bool    // relax the unit cell for periodic structures

	// Band path for band-structure and gw flavors.
	BandPath []BandSegment

	// Socket driver endpoint for the socket flavor.
	SocketHost string
	SocketPort int
}

func (g Generator) relaxMethod() string {
	if g.RelaxMethod == "" {
		return "trm"
	}
	return g.RelaxMethod
}

func (g Generator) maxForce() float64 {
	if g.MaxForce == 0 {
		return 1e-3
	}
	return g.MaxForce
}

func (g Generator) kptDensity() float64 {
	if g.KPointDensity == 0 {
		return 5.0
	}
	return g.KPointDensity
}

// Generate builds the complete parameter set for one calculation. Layering
// order, lowest to highest precedence: builtin defaults, generator base,
// recipe carry-over (e.g. a previous run's parameters), flavor updates,
// recipe overlay, generator user parameters, per-call overrides.
// Deterministic and side-effect free: identical inputs yield an identical
// set.
func (g Generator) Generate(s structure.Structure, recipe Recipe, overrides Set) (Set, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	flavor := recipe.Flavor

	carry := recipe.Carry.Clone()
	// Optimizer state never survives into a follow-up calculation.
	delete(carry, "relax_geometry")
	delete(carry, "relax_unit_cell")

	merged := baseDefaults().Merge(g.Base).Merge(carry)

	updates, err := flavor.updates(s, g)
	if err != nil {
		return nil, err
	}
	merged = merged.Merge(updates).Merge(recipe.Overlay).Merge(g.User)

	if err := g.checkOverrides(flavor, overrides); err != nil {
		return nil, err
	}
	merged = merged.Merge(overrides)

	if err := g.reconcileKGrid(s, flavor, merged); err != nil {
		return nil, err
	}

	for _, option := range flavor.required() {
		if _, ok := merged[option]; !ok {
			return nil, configErr(string(flavor), option, "required option is unset after merge")
		}
	}
	for option, value := range merged {
		if err := validateOption(flavor, option, value); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// checkOverrides applies the strict/lenient policy to caller overrides.
func (g Generator) checkOverrides(flavor Flavor, overrides Set) error {
	if !g.Strict {
		return nil
	}
	for option := range overrides {
		if !knownOption(option) {
			return configErr(string(flavor), option, "unknown option rejected in strict mode")
		}
	}
	return nil
}

// reconcileKGrid enforces the periodicity rules: periodic structures get a
// density-derived grid when none is set, and molecules must not carry one.
func (g Generator) reconcileKGrid(s structure.Structure, flavor Flavor, merged Set) error {
	_, hasGrid := merged["k_grid"]
	switch {
	case s.Periodic() && !hasGrid:
		grid, err := s.KGrid(g.kptDensity(), true)
		if err != nil {
			return configErr(string(flavor), "k_grid", "%v", err)
		}
		merged["k_grid"] = []int{grid[0], grid[1], grid[2]}
	case !s.Periodic() && hasGrid:
		delete(merged, "k_grid")
	}
	return nil
}
