// ABOUTME: Detail view for one record with its fields and moderation actions
// ABOUTME: Actions the current status does not allow are shown struck out
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Strikethrough(true)
)

// detailRecord is the record the detail view shows: the facade's copy when
// cached, else the one on the page.
func (m Model) detailRecord() (*models.Record, bool) {
	if rec, ok := m.facade.Record(m.kind(), m.selectedID); ok {
		return rec, true
	}
	if page := m.pages[m.kind()]; page != nil {
		return page.Find(m.selectedID)
	}
	return nil, false
}

func (m Model) renderDetailView() string {
	var s strings.Builder

	rec, ok := m.detailRecord()
	if !ok {
		s.WriteString(titleStyle.Render("DETAIL VIEW"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("%s %s is no longer loaded", m.kind().Noun(), m.selectedID))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("Esc: Back"))
		return s.String()
	}

	// Title
	s.WriteString(titleStyle.Render(strings.ToUpper(m.kind().Noun()) + ": " + rec.Title()))
	s.WriteString("\n\n")

	status := string(rec.Status)
	if m.facade.Busy(rec.Kind, rec.ID) {
		status = busyStyle.Render(m.spinner.View() + " processing")
	}
	s.WriteString(m.renderField("ID", rec.ID))
	s.WriteString(m.renderField("Status", status))
	if !rec.CreatedAt.IsZero() {
		s.WriteString(m.renderField("Created", rec.CreatedAt.Format("2006-01-02 15:04")))
	}
	if !rec.UpdatedAt.IsZero() {
		s.WriteString(m.renderField("Updated", rec.UpdatedAt.Format("2006-01-02 15:04")))
	}

	fields, _ := models.PayloadToMap(rec.Payload)
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	s.WriteString("\n")
	for _, k := range names {
		s.WriteString(m.renderField(fieldLabel(k), fmt.Sprint(fields[k])))
	}

	// Actions
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Bold(true).Render("ACTIONS"))
	s.WriteString("\n")
	s.WriteString(m.renderActions(rec))
	s.WriteString("\n")

	if line := m.renderStatusLine(); line != "" {
		s.WriteString("\n")
		s.WriteString(line)
		s.WriteString("\n")
	}

	// Help
	s.WriteString(m.renderDetailHelp())

	return s.String()
}

// renderActions lists the kind's actions, striking out those the current
// status does not allow.
func (m Model) renderActions(rec *models.Record) string {
	allowed := moderation.Allowed(rec.Kind, rec.Status)
	seen := map[models.Action]bool{}
	var parts []string
	for _, e := range moderation.Edges(rec.Kind) {
		if seen[e.Action] {
			continue
		}
		seen[e.Action] = true

		label := keys.keyFor(e.Action) + ": " + string(e.Action)
		if field := moderation.Requires(rec.Kind, e.Action); field != "" {
			label += " (needs " + fieldLabel(field) + ")"
		}
		if hasAction(allowed, e.Action) {
			parts = append(parts, "  "+label)
		} else {
			parts = append(parts, "  "+disabledStyle.Render(label)+" not available")
		}
	}
	return strings.Join(parts, "\n")
}

func fieldLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fmt.Sprintf("%s %s\n",
		fieldLabelStyle.Render(label+":"),
		fieldValueStyle.Render(value))
}

func (m Model) renderDetailHelp() string {
	help := []string{
		"Esc: Back",
		"e: Edit",
		"d: Delete",
		"g: Workflow",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		m.viewMode = ViewList
		return m, nil
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Graph):
		return m.openGraph()
	}

	rec, ok := m.detailRecord()
	if !ok {
		return m, nil
	}
	return m.handleRecordKeys(msg, rec)
}
