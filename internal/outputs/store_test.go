package outputs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"aimsflow/internal/params"
	"aimsflow/internal/schema"
	"aimsflow/internal/structure"
)

func relaxDoc() *schema.Document {
	energy := -15800.12
	free := -15800.13
	return &schema.Document{
		Stage:       "relax",
		Fingerprint: "abc123",
		Flavor:      string(params.FlavorRelaxation),
		Energy:      &energy,
		FreeEnergy:  &free,
		Forces:      [][3]float64{{0, 0, 1e-4}, {0, 0, -1e-4}},
		Converged:   true,
		Structure: &structure.Structure{
			Name:  "Si",
			Sites: []structure.Site{{Species: "Si"}},
		},
		Parameters: params.Set{"xc": "pbe", "relax_geometry": "trm 1e-03"},
	}
}

func fixedClock() func() time.Time {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return stamp }
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(fixedClock()))
	if err := store.Write(relaxDoc()); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := store.Load("relax")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fingerprint != "abc123" {
		t.Fatalf("fingerprint = %q", loaded.Fingerprint)
	}
	if loaded.Energy == nil || *loaded.Energy != -15800.12 {
		t.Fatalf("energy = %v", loaded.Energy)
	}
	if loaded.Structure == nil || loaded.Structure.Sites[0].Species != "Si" {
		t.Fatalf("structure did not round-trip: %+v", loaded.Structure)
	}
	if loaded.Parameters["xc"] != "pbe" {
		t.Fatalf("parameters did not round-trip: %v", loaded.Parameters)
	}
	if loaded.CompletedAt.IsZero() {
		t.Fatalf("completion time should be stamped on write")
	}
	if loaded.DirName != store.Dir("relax") {
		t.Fatalf("dir_name = %q", loaded.DirName)
	}

	if _, err := os.Stat(filepath.Join(store.Dir("relax"), ParametersFile)); err != nil {
		t.Fatalf("parameters.json missing: %v", err)
	}
}

func TestCheckStates(t *testing.T) {
	store := NewStore(t.TempDir())

	if result := store.Check("relax"); result.State != StateMissing {
		t.Fatalf("fresh store: state = %s", result.State)
	}

	if err := store.Write(relaxDoc()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if result := store.Check("relax"); result.State != StateReady {
		t.Fatalf("after write: state = %s (%v)", result.State, result.Err)
	}

	// A document claiming the wrong stage is invalid.
	wrong := filepath.Join(store.Dir("static"), DocumentFile)
	if err := os.MkdirAll(filepath.Dir(wrong), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(wrong, []byte("stage: relax\nfingerprint: x\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if result := store.Check("static"); result.State != StateInvalid {
		t.Fatalf("mismatched stage: state = %s", result.State)
	}

	// Garbage is invalid, not an error.
	bad := filepath.Join(store.Dir("bands"), DocumentFile)
	if err := os.MkdirAll(filepath.Dir(bad), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(bad, []byte(":\n  - ["), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if result := store.Check("bands"); result.State != StateInvalid {
		t.Fatalf("garbage: state = %s", result.State)
	}
}

func TestWriteRejectsContractViolations(t *testing.T) {
	store := NewStore(t.TempDir())
	doc := relaxDoc()
	doc.Structure = nil // converged relaxation must report its geometry
	if err := store.Write(doc); err == nil {
		t.Fatalf("expected contract violation")
	}

	unconverged := relaxDoc()
	unconverged.Converged = false
	unconverged.Structure = nil
	unconverged.Energy = nil
	if err := store.Write(unconverged); err != nil {
		t.Fatalf("unconverged docs only need identity: %v", err)
	}
}

func TestLoadAll(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Write(relaxDoc()); err != nil {
		t.Fatalf("write relax: %v", err)
	}
	static := relaxDoc()
	static.Stage = "static"
	static.Flavor = string(params.FlavorStatic)
	static.DirName = ""
	if err := store.Write(static); err != nil {
		t.Fatalf("write static: %v", err)
	}
	// An empty stage directory counts as unfinished, not an error.
	if err := os.MkdirAll(store.Dir("bands"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	docs, problems := store.LoadAll()
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if len(docs) != 2 || docs["relax"] == nil || docs["static"] == nil {
		t.Fatalf("unexpected docs: %v", docs)
	}

	stages, err := store.Stages()
	if err != nil {
		t.Fatalf("stages: %v", err)
	}
	if len(stages) != 3 || stages[0] != "bands" {
		t.Fatalf("unexpected stages: %v", stages)
	}
}

func TestLoadAllOnEmptyRoot(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))
	docs, problems := store.LoadAll()
	if len(problems) != 0 || len(docs) != 0 {
		t.Fatalf("empty root: docs=%v problems=%v", docs, problems)
	}
}
