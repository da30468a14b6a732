package workflow

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const bandWorkflowYAML = `
id: band-structure
name: Band structure
stages:
  - id: relax
    flavor: relaxation
  - id: static
    flavor: static
    structure_from: relax.structure
  - id: bands
    flavor: band-structure
    depends_on: [static]
    when:
      - ref: static.converged
        op: "=="
        value: true
    overrides:
      sc_iter_limit: 60
`

func TestParseDefinitionYAML(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(bandWorkflowYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.ID != "band-structure" {
		t.Fatalf("unexpected id %q", def.ID)
	}
	if got := def.StageIDs(); !reflect.DeepEqual(got, []string{"relax", "static", "bands"}) {
		t.Fatalf("unexpected stages: %v", got)
	}
	// Parsing normalizes: inline depends_on lands in the graph.
	if got := def.Dependencies("bands"); !reflect.DeepEqual(got, []string{"static"}) {
		t.Fatalf("unexpected bands dependencies: %v", got)
	}
	bands := def.Stages[2]
	if len(bands.When) != 1 || bands.When[0].Ref != "static.converged" || bands.When[0].Value != true {
		t.Fatalf("unexpected predicate: %+v", bands.When)
	}
	if bands.Overrides["sc_iter_limit"] != 60 {
		t.Fatalf("unexpected overrides: %v", bands.Overrides)
	}
}

func TestParseDefinitionYAMLErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr string
	}{
		{name: "empty", payload: "   \n", wantErr: "payload is empty"},
		{name: "malformed", payload: "id: [unterminated", wantErr: "decode definition"},
		{name: "invalid", payload: "id: broken\nstages: []\n", wantErr: "at least one stage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDefinitionYAML([]byte(tc.payload))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadDefinitionRelative(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bands.yaml")
	if err := os.WriteFile(path, []byte(bandWorkflowYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	def, err := LoadDefinitionRelative(dir, "bands.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.ID != "band-structure" {
		t.Fatalf("unexpected id %q", def.ID)
	}

	if _, err := LoadDefinitionRelative(dir, "missing.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
