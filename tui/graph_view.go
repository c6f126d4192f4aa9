// ABOUTME: Workflow graph view showing the moderation state machine as DOT
// ABOUTME: Esc returns to whichever view opened it
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/viz"
)

func (m Model) renderGraphView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render(strings.ToUpper(m.kind().Noun()) + " WORKFLOW"))
	s.WriteString("\n\n")

	if m.graphDOT == "" {
		s.WriteString(m.spinner.View() + " Generating graph...\n")
	} else {
		s.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Render(m.graphDOT))
	}

	s.WriteString("\n\n")

	// Help
	s.WriteString(m.renderGraphHelp())

	return s.String()
}

func (m Model) renderGraphHelp() string {
	help := []string{
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleGraphKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = m.graphReturn
		m.graphDOT = ""
	case "q":
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) openGraph() (tea.Model, tea.Cmd) {
	m.graphReturn = m.viewMode
	m.viewMode = ViewGraph
	m.graphDOT = ""
	return m, m.generateGraph(m.kind())
}

func (m Model) generateGraph(kind models.Kind) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		dot, err := viz.WorkflowDOT(ctx, kind)
		return graphMsg{kind: kind, dot: dot, err: err}
	}
}
