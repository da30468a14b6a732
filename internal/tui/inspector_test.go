package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"aimsflow/internal/structure"
	"aimsflow/internal/workflow"
	"aimsflow/internal/workflow/assembler"
	"aimsflow/internal/workflow/planner"
)

func testGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	def := workflow.Definition{
		ID: "inspect",
		Stages: []workflow.StageRef{
			{ID: "relax", Flavor: "relaxation"},
			{ID: "static", Flavor: "static", StructureFrom: "relax.structure"},
		},
	}
	s := structure.Structure{
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
	graph, err := assembler.Assemble(def, s, assembler.Options{
		Command:     []string{"aims.x"},
		CodeVersion: "231208",
		WorkRoot:    "calcs",
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return graph
}

func testInspector(t *testing.T) *Inspector {
	t.Helper()
	graph := testGraph(t)
	plan, err := planner.Preview(graph, planner.Snapshot{})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	m := NewInspector(graph, plan)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(*Inspector)
}

func TestInspectorViewShowsStages(t *testing.T) {
	m := testInspector(t)
	view := m.View()
	if !strings.Contains(view, "relax") || !strings.Contains(view, "static") {
		t.Fatalf("view is missing stages:\n%s", view)
	}
	if !strings.Contains(view, "2 stages") || !strings.Contains(view, "1 ready") {
		t.Fatalf("header is missing graph summary:\n%s", view)
	}
}

func TestInspectorDetailFollowsSelection(t *testing.T) {
	m := testInspector(t)
	if !strings.Contains(m.View(), "relaxation") {
		t.Fatalf("first stage detail missing:\n%s", m.View())
	}

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = model.(*Inspector)
	view := m.View()
	if !strings.Contains(view, "relax.structure") {
		t.Fatalf("selected stage detail should name its structure source:\n%s", view)
	}
	if !strings.Contains(view, "xc") {
		t.Fatalf("detail pane should list parameters:\n%s", view)
	}
}

func TestInspectorQuits(t *testing.T) {
	m := testInspector(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if msg := cmd(); msg == nil {
		t.Fatalf("expected quit message")
	} else if _, ok := msg.(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg, got %T", msg)
	}
}
