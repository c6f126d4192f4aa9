// ABOUTME: Delete confirmation view for TUI
// ABOUTME: Removes the selected record through the facade after a y/n dialog
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(1, 2).
			Width(60).
			Align(lipgloss.Center)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	confirmButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("9")).
				Padding(0, 2).
				MarginRight(2)

	cancelButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("8")).
				Padding(0, 2)
)

func (m Model) renderConfirmDeleteView() string {
	noun := m.kind().Noun()
	name := m.selectedID
	if rec, ok := m.detailRecord(); ok {
		name = rec.Title()
	}

	title := warningStyle.Render("⚠  DELETE CONFIRMATION  ⚠")
	message := fmt.Sprintf("Remove this %s?", noun)
	info := fmt.Sprintf("\n%s: %s\n", strings.ToUpper(noun), name)
	warning := "\nThis cannot be undone."

	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		confirmButtonStyle.Render("Yes, Delete (y)"),
		cancelButtonStyle.Render("Cancel (n/esc)"),
	)

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		message,
		info,
		warning,
		"",
		buttons,
	)
	if m.err != nil {
		content = lipgloss.JoinVertical(lipgloss.Center, content, "", errorStyle.Render("✗ "+m.err.Error()))
	}

	box := confirmBoxStyle.Render(content)
	if m.width == 0 || m.height == 0 {
		return box
	}

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		box,
	)
}

func (m Model) handleConfirmDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.err = nil
		m.message = ""
		return m, m.remove(m.kind(), m.selectedID)
	case "n", "N", "esc":
		m.viewMode = ViewDetail
		if _, ok := m.detailRecord(); !ok {
			m.viewMode = ViewList
		}
	}

	return m, nil
}
