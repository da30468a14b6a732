package params

import (
	"errors"
	"reflect"
	"testing"

	"aimsflow/internal/structure"
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

func water() structure.Structure {
	return structure.Structure{
		Name: "H2O",
		Sites: []structure.Site{
			{Species: "O", Position: structure.Vec3{0, 0, 0.1192}},
			{Species: "H", Position: structure.Vec3{0, 0.7632, -0.4770}},
			{Species: "H", Position: structure.Vec3{0, -0.7632, -0.4770}},
		},
	}
}

func gammaX() []BandSegment {
	return []BandSegment{{
		From:      [3]float64{0, 0, 0},
		To:        [3]float64{0.5, 0, 0.5},
		FromLabel: "G",
		ToLabel:   "X",
		Points:    21,
	}}
}

func TestGenerateStaticDefaults(t *testing.T) {
	gen := Generator{}
	set, err := gen.Generate(silicon(), Recipe{Flavor: FlavorStatic}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set["xc"] != "pbe" {
		t.Fatalf("expected default xc=pbe, got %v", set["xc"])
	}
	if set["relativistic"] != "atomic_zora scalar" {
		t.Fatalf("unexpected relativistic: %v", set["relativistic"])
	}
	grid, ok := set["k_grid"].([]int)
	if !ok || len(grid) != 3 {
		t.Fatalf("expected synthesized k_grid triple, got %v", set["k_grid"])
	}
	for i, n := range grid {
		if n < 2 || n%2 != 0 {
			t.Fatalf("k_grid[%d] = %d, expected even count >= 2", i, n)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	gen := Generator{User: Set{"sc_accuracy_rho": 1e-6}}
	overrides := Set{"charge": 1.0}
	first, err := gen.Generate(silicon(), Recipe{Flavor: FlavorStatic}, overrides)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := gen.Generate(silicon(), Recipe{Flavor: FlavorStatic}, overrides)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same inputs produced different sets:\n%v\n%v", first, second)
	}
}

func TestGenerateRelaxation(t *testing.T) {
	gen := Generator{RelaxCell: true}
	set, err := gen.Generate(silicon(), Recipe{Flavor: FlavorRelaxation}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set["relax_geometry"] != "trm 1e-03" {
		t.Fatalf("unexpected relax_geometry: %v", set["relax_geometry"])
	}
	if set["relax_unit_cell"] != "full" {
		t.Fatalf("periodic relax with RelaxCell should set relax_unit_cell=full, got %v", set["relax_unit_cell"])
	}

	set, err = Generator{}.Generate(silicon(), Recipe{Flavor: FlavorRelaxation}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set["relax_unit_cell"] != "none" {
		t.Fatalf("expected relax_unit_cell=none, got %v", set["relax_unit_cell"])
	}

	set, err = Generator{}.Generate(water(), Recipe{Flavor: FlavorRelaxation}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, ok := set["relax_unit_cell"]; ok {
		t.Fatalf("molecule relax must not set relax_unit_cell")
	}
}

func TestGenerateBandStructureNeedsPath(t *testing.T) {
	_, err := Generator{}.Generate(silicon(), Recipe{Flavor: FlavorBandStructure}, nil)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Option != "band_path" {
		t.Fatalf("unexpected option in error: %q", cfgErr.Option)
	}

	gen := Generator{BandPath: gammaX()}
	set, err := gen.Generate(silicon(), Recipe{Flavor: FlavorBandStructure}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	lines, ok := set["output"].([]any)
	if !ok || len(lines) != 1 {
		t.Fatalf("expected one band output line, got %v", set["output"])
	}
	line, _ := lines[0].(string)
	if line == "" || line[:4] != "band" {
		t.Fatalf("unexpected band line: %q", line)
	}
}

func TestGenerateGW(t *testing.T) {
	set, err := Generator{BandPath: gammaX()}.Generate(silicon(), Recipe{Flavor: FlavorGW}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set["qpe_calc"] != "gw" {
		t.Fatalf("expected qpe_calc=gw, got %v", set["qpe_calc"])
	}
}

func TestGenerateSocketDefaults(t *testing.T) {
	set, err := Generator{}.Generate(water(), Recipe{Flavor: FlavorSocket}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pair, ok := set["use_pimd_wrapper"].([]any)
	if !ok || len(pair) != 2 || pair[0] != "localhost" || pair[1] != 12345 {
		t.Fatalf("unexpected socket wrapper: %v", set["use_pimd_wrapper"])
	}
}

func TestOverrideAlwaysWins(t *testing.T) {
	gen := Generator{User: Set{"xc": "pw-lda"}}
	set, err := gen.Generate(silicon(), Recipe{Flavor: FlavorStatic}, Set{"xc": "hse06"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set["xc"] != "hse06" {
		t.Fatalf("override should win, got %v", set["xc"])
	}
}

func TestStrictModeRejectsUnknownOverrides(t *testing.T) {
	overrides := Set{"my_exotic_flag": ".true."}
	set, err := Generator{}.Generate(water(), Recipe{Flavor: FlavorStatic}, overrides)
	if err != nil {
		t.Fatalf("lenient mode should pass unknown keys through: %v", err)
	}
	if set["my_exotic_flag"] != ".true." {
		t.Fatalf("unknown key not passed through: %v", set["my_exotic_flag"])
	}

	_, err = Generator{Strict: true}.Generate(water(), Recipe{Flavor: FlavorStatic}, overrides)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("strict mode should reject unknown keys, got %v", err)
	}
}

func TestDomainValidation(t *testing.T) {
	cases := []struct {
		name      string
		overrides Set
	}{
		{name: "bad spin", overrides: Set{"spin": "ferro"}},
		{name: "bad k_grid length", overrides: Set{"k_grid": []int{4, 4}}},
		{name: "bad k_grid entry", overrides: Set{"k_grid": []any{4, 4, 0}}},
		{name: "negative accuracy", overrides: Set{"sc_accuracy_rho": -1.0}},
		{name: "non-bool forces", overrides: Set{"compute_forces": "yes"}},
		{name: "bad relax cell", overrides: Set{"relax_unit_cell": "partial"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generator{}.Generate(silicon(), Recipe{Flavor: FlavorStatic}, tc.overrides)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestMoleculeDropsKGrid(t *testing.T) {
	set, err := Generator{}.Generate(water(), Recipe{Flavor: FlavorStatic}, Set{"k_grid": []int{4, 4, 4}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, ok := set["k_grid"]; ok {
		t.Fatalf("k_grid must be removed for non-periodic structures")
	}
}

func TestCarryStripsRelaxKeys(t *testing.T) {
	carry := Set{
		"xc":              "pbesol",
		"relax_geometry":  "trm 1e-03",
		"relax_unit_cell": "full",
	}
	recipe := Recipe{Flavor: FlavorStatic}.WithCarry(carry)
	set, err := Generator{}.Generate(silicon(), recipe, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set["xc"] != "pbesol" {
		t.Fatalf("carry parameters should survive, got xc=%v", set["xc"])
	}
	if _, ok := set["relax_geometry"]; ok {
		t.Fatalf("relax_geometry must not leak from a previous run")
	}
	if _, ok := set["relax_unit_cell"]; ok {
		t.Fatalf("relax_unit_cell must not leak from a previous run")
	}
}
