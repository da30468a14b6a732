package params

import (
	"reflect"
	"testing"
)

func TestMergeScalarsOverride(t *testing.T) {
	base := Set{"xc": "pbe", "charge": 0.0}
	merged := base.Merge(Set{"xc": "hse06"})
	if merged["xc"] != "hse06" || merged["charge"] != 0.0 {
		t.Fatalf("unexpected merge result: %v", merged)
	}
	if base["xc"] != "pbe" {
		t.Fatalf("merge mutated receiver")
	}
}

func TestMergeNestedMaps(t *testing.T) {
	base := Set{"activate_hybrid": Set{"hybrid_functional": "HSE06"}}
	merged := base.Merge(Set{"activate_hybrid": Set{"cutoff_radius": 8}})
	child, ok := merged["activate_hybrid"].(Set)
	if !ok {
		t.Fatalf("expected nested set, got %T", merged["activate_hybrid"])
	}
	if child["hybrid_functional"] != "HSE06" || child["cutoff_radius"] != 8 {
		t.Fatalf("nested maps should merge: %v", child)
	}
}

func TestMergeListsAppend(t *testing.T) {
	base := Set{"output": []any{"band 1"}}
	merged := base.Merge(Set{"output": []any{"band 2"}})
	lines, ok := merged["output"].([]any)
	if !ok || !reflect.DeepEqual(lines, []any{"band 1", "band 2"}) {
		t.Fatalf("lists should append: %v", merged["output"])
	}
	if got := base["output"].([]any); len(got) != 1 {
		t.Fatalf("merge mutated receiver list: %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	base := Set{"nested": Set{"a": 1}, "list": []any{"x"}}
	clone := base.Clone()
	clone["nested"].(Set)["a"] = 2
	clone["list"] = append(clone["list"].([]any), "y")
	if base["nested"].(Set)["a"] != 1 {
		t.Fatalf("clone shares nested map")
	}
	if len(base["list"].([]any)) != 1 {
		t.Fatalf("clone shares list")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	for _, flavor := range Flavors() {
		if _, err := reg.Resolve(string(flavor)); err != nil {
			t.Fatalf("builtin %s missing: %v", flavor, err)
		}
	}

	tight := Recipe{
		Flavor:  FlavorRelaxation,
		Overlay: Set{"species_dir": "tight"},
	}
	if err := reg.Register("relax-tight", tight); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("relax-tight", tight); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := reg.Register("bogus", Recipe{Flavor: Flavor("nope")}); err == nil {
		t.Fatalf("recipe with unknown flavor should fail")
	}
	if _, err := reg.Resolve("missing"); err == nil {
		t.Fatalf("unknown name should fail")
	}

	resolved, err := reg.Resolve("relax-tight")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	resolved.Overlay["species_dir"] = "light"
	again, _ := reg.Resolve("relax-tight")
	if again.Overlay["species_dir"] != "tight" {
		t.Fatalf("registry must hand out copies")
	}

	names := reg.Names()
	if len(names) != len(Flavors())+1 {
		t.Fatalf("unexpected name count: %v", names)
	}
}
