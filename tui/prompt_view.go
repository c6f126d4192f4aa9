// ABOUTME: Single-line prompt view for search text and moderation reasons
// ABOUTME: Reject and reset collect their required reason here before the transition is sent
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

type promptMode int

const (
	promptSearch promptMode = iota
	promptReason
)

// openPrompt switches to the prompt view. Esc returns to where it came from.
func (m Model) openPrompt(mode promptMode, value string) (tea.Model, tea.Cmd) {
	m.promptMode = mode
	placeholder := "Search text (empty clears)"
	if mode == promptSearch {
		if spec, ok := m.specs[m.kind()]; ok && value == "" {
			value = spec.Search
		}
	} else {
		placeholder = strings.ReplaceAll(moderation.Requires(m.kind(), m.pendingAction), "_", " ")
	}
	m.prompt = newPromptInput(placeholder, value)
	m.err = nil
	m.promptReturn = m.viewMode
	m.viewMode = ViewPrompt
	cmd := m.prompt.Focus()
	return m, cmd
}

func (m Model) renderPromptView() string {
	var s strings.Builder

	switch m.promptMode {
	case promptSearch:
		s.WriteString(titleStyle.Render("SEARCH " + strings.ToUpper(m.kind().Label())))
	case promptReason:
		title := fmt.Sprintf("%s %s", strings.ToUpper(string(m.pendingAction)), strings.ToUpper(m.kind().Noun()))
		s.WriteString(titleStyle.Render(title))
		if rec, ok := m.facade.Record(m.kind(), m.selectedID); ok {
			s.WriteString("\n")
			s.WriteString(rec.Title())
		}
	}
	s.WriteString("\n\n")
	s.WriteString(m.prompt.View())
	s.WriteString("\n")

	if line := m.renderStatusLine(); line != "" {
		s.WriteString("\n")
		s.WriteString(line)
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("Enter: Submit • Esc: Cancel"))
	return s.String()
}

func (m Model) handlePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = m.promptReturn
		m.pendingAction = ""
		return m, nil
	case "enter":
		return m.submitPrompt()
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) submitPrompt() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.prompt.Value())
	kind := m.kind()

	if m.promptMode == promptSearch {
		m.viewMode = ViewList
		spec, ok := m.specs[kind]
		if !ok {
			spec = m.loader.DefaultSpec(kind)
		}
		return m.request(engine.BuildQuery(kind, 1, m.facade.PageSize(), spec.Filters, value))
	}

	action := m.pendingAction
	var audit models.AuditFields
	switch moderation.Requires(kind, action) {
	case moderation.FieldRejectionReason:
		audit.RejectionReason = value
	case moderation.FieldResetReason:
		audit.ResetReason = value
	}
	// An empty reason still goes to the facade, which refuses it and names
	// the missing field.
	m.viewMode = m.promptReturn
	m.pendingAction = ""
	m.message = ""
	return m, m.transition(kind, m.selectedID, action, audit)
}
