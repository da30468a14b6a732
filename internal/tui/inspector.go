// Package tui provides an interactive inspector for assembled workflow
// graphs. It follows The Elm Architecture via bubbletea: the model holds the
// graph and the planner preview, Update reacts to key presses, and View
// renders the stage list next to a detail pane.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aimsflow/internal/workflow"
	"aimsflow/internal/workflow/planner"
)

var (
	stateStyleComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	stateStyleReady    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	stateStyleGated    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	stateStyleBlocked  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	stateStyleRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B07CF7")).Bold(true)
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E2E8F0"))
	detailTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	detailPaneStyle    = lipgloss.NewStyle().PaddingLeft(2)
)

func stateStyle(state planner.State) lipgloss.Style {
	switch state {
	case planner.StateComplete:
		return stateStyleComplete
	case planner.StateReady:
		return stateStyleReady
	case planner.StateGated:
		return stateStyleGated
	case planner.StateRunning:
		return stateStyleRunning
	default:
		return stateStyleBlocked
	}
}

// stageItem adapts one graph node for the bubbles list widget.
type stageItem struct {
	node   *workflow.Node
	status planner.StageStatus
}

func (i stageItem) Title() string {
	return fmt.Sprintf("%s [%s]", i.node.Spec.Stage, stateStyle(i.status.State).Render(string(i.status.State)))
}

func (i stageItem) Description() string {
	desc := i.node.Spec.FlavorName
	if i.status.Detail != "" {
		desc += " · " + i.status.Detail
	}
	return desc
}

func (i stageItem) FilterValue() string {
	return i.node.Spec.Stage
}

// Inspector is the bubbletea model for graph inspection.
type Inspector struct {
	graph  *workflow.Graph
	plan   planner.Plan
	list   list.Model
	width  int
	height int
}

// NewInspector builds the inspector model for a graph plus its planner
// preview.
func NewInspector(graph *workflow.Graph, plan planner.Plan) *Inspector {
	items := make([]list.Item, 0, graph.Len())
	for _, node := range graph.Nodes() {
		status, _ := plan.Status(node.Spec.Stage)
		items = append(items, stageItem{node: node, status: status})
	}
	delegate := list.NewDefaultDelegate()
	stageList := list.New(items, delegate, 0, 0)
	stageList.Title = fmt.Sprintf("Workflow %s", graph.ID)
	stageList.SetShowStatusBar(false)
	stageList.SetFilteringEnabled(false)
	return &Inspector{graph: graph, plan: plan, list: stageList}
}

// Init implements tea.Model.
func (m *Inspector) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width/2, msg.Height-2)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Inspector) View() string {
	header := headerStyle.Render(fmt.Sprintf("%s · %d stages · %d ready", m.graph.ID, m.graph.Len(), len(m.plan.Ready)))
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), m.detailPane())
	footer := detailTextStyle.Render("up/down=select  q=quit")
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Inspector) detailPane() string {
	item, ok := m.list.SelectedItem().(stageItem)
	if !ok {
		return detailPaneStyle.Render(detailTextStyle.Render("no stage selected"))
	}
	spec := item.node.Spec
	var lines []string
	add := func(label, value string) {
		if value == "" {
			return
		}
		lines = append(lines, detailTitleStyle.Render(label+": ")+detailTextStyle.Render(value))
	}
	add("Stage", spec.Stage)
	add("Flavor", fmt.Sprintf("%s (%s)", spec.FlavorName, spec.Flavor))
	add("Fingerprint", shorten(spec.Fingerprint))
	add("Workdir", spec.Workdir)
	if spec.StructureFrom != nil {
		add("Structure", spec.StructureFrom.String())
	}
	add("Depends on", strings.Join(item.node.Dependencies, ", "))
	add("Feeds", strings.Join(item.node.Dependents, ", "))
	if preds := m.incomingPredicates(spec.Stage); len(preds) > 0 {
		add("Gated by", strings.Join(preds, "; "))
	}
	lines = append(lines, "", detailTitleStyle.Render("Parameters"))
	for _, key := range spec.Parameters.Keys() {
		lines = append(lines, detailTextStyle.Render(fmt.Sprintf("  %s = %v", key, spec.Parameters[key])))
	}
	return detailPaneStyle.Render(strings.Join(lines, "\n"))
}

func (m *Inspector) incomingPredicates(stage string) []string {
	var out []string
	for _, edge := range m.graph.Edges() {
		if edge.To != stage {
			continue
		}
		for _, pred := range edge.When {
			out = append(out, pred.String())
		}
	}
	return out
}

func shorten(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

// Run opens the inspector in the terminal and blocks until the user quits.
func Run(graph *workflow.Graph, plan planner.Plan) error {
	program := tea.NewProgram(NewInspector(graph, plan), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
