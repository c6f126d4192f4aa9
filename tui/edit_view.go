// ABOUTME: Form view for creating and editing records
// ABOUTME: Edits send only changed fields, new records carry a submission token
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
)

// formFieldsFor lists the editable fields of a kind, title field first.
func formFieldsFor(kind models.Kind) []string {
	switch kind {
	case models.KindDevice:
		return []string{"name", "type", "category", "condition", "description", "location"}
	case models.KindRequest:
		return []string{"requester", "organization", "device_type", "quantity", "message"}
	case models.KindUser:
		return []string{"name", "email", "role", "organization", "phone"}
	case models.KindTeamMember:
		return []string{"name", "job_title", "email", "bio", "photo_url"}
	}
	return nil
}

func (m Model) isNewForm() bool {
	return m.formToken != ""
}

func (m Model) renderEditView() string {
	var s strings.Builder

	// Title
	if m.isNewForm() {
		s.WriteString(titleStyle.Render("NEW " + strings.ToUpper(m.kind().Noun())))
	} else {
		s.WriteString(titleStyle.Render("EDIT " + strings.ToUpper(m.kind().Noun())))
	}
	s.WriteString("\n\n")

	// Form fields
	for i, input := range m.formInputs {
		if i == m.focusIndex {
			s.WriteString("> ")
		} else {
			s.WriteString("  ")
		}
		s.WriteString(fieldLabelStyle.Render(fieldLabel(m.formFields[i]) + ":"))
		s.WriteString(input.View())
		s.WriteString("\n")
	}

	s.WriteString("\n")
	if line := m.renderStatusLine(); line != "" {
		s.WriteString(line)
		s.WriteString("\n")
	}

	// Help
	s.WriteString(m.renderEditHelp())

	return s.String()
}

func (m Model) renderEditHelp() string {
	help := []string{
		"Tab: Next field",
		"Shift+Tab: Previous field",
		"Enter: Save",
		"Esc: Cancel",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.isNewForm() {
			m.viewMode = ViewList
		} else {
			m.viewMode = ViewDetail
		}
		m.formToken = ""
		m.err = nil
		return m, nil
	case "tab", "down":
		m.focusIndex = (m.focusIndex + 1) % len(m.formInputs)
		cmd := m.updateFormFocus()
		return m, cmd
	case "shift+tab", "up":
		m.focusIndex = (m.focusIndex + len(m.formInputs) - 1) % len(m.formInputs)
		cmd := m.updateFormFocus()
		return m, cmd
	case "enter":
		return m.submitForm()
	}

	// Update current input
	var cmd tea.Cmd
	m.formInputs[m.focusIndex], cmd = m.formInputs[m.focusIndex].Update(msg)
	return m, cmd
}

// openForm shows the form for record id, or an empty form for a new record
// of the active kind when id is empty.
func (m Model) openForm(id string) (tea.Model, tea.Cmd) {
	kind := m.kind()
	m.formFields = formFieldsFor(kind)
	m.formToken = ""

	var current map[string]any
	if id == "" {
		m.formToken = engine.NewSubmissionToken()
	} else {
		m.selectedID = id
		rec, ok := m.detailRecord()
		if !ok {
			m.err = fmt.Errorf("edit %s %s: record is not loaded", kind.Noun(), id)
			return m, nil
		}
		current, _ = models.PayloadToMap(rec.Payload)
	}

	m.formInputs = make([]textinput.Model, len(m.formFields))
	for i, name := range m.formFields {
		in := textinput.New()
		in.Placeholder = fieldLabel(name)
		in.CharLimit = 500
		in.Width = 50
		in.SetValue(formValue(current, name))
		m.formInputs[i] = in
	}

	m.err = nil
	m.message = ""
	m.focusIndex = 0
	m.viewMode = ViewEdit
	cmd := m.updateFormFocus()
	return m, cmd
}

func formValue(fields map[string]any, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (m *Model) updateFormFocus() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.formInputs {
		if i == m.focusIndex {
			cmd = m.formInputs[i].Focus()
		} else {
			m.formInputs[i].Blur()
		}
	}
	return cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	kind := m.kind()

	if m.isNewForm() {
		raw := map[string]string{}
		for i, name := range m.formFields {
			if v := strings.TrimSpace(m.formInputs[i].Value()); v != "" {
				raw[name] = v
			}
		}
		if raw[m.formFields[0]] == "" {
			m.err = fmt.Errorf("a %s needs a %s", kind.Noun(), strings.ToLower(fieldLabel(m.formFields[0])))
			return m, nil
		}
		fields, err := models.FieldsFromStrings(raw)
		if err != nil {
			m.err = err
			return m, nil
		}
		payload, err := models.PayloadFromMap(kind, fields)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		return m, m.create(kind, m.formToken, payload)
	}

	rec, ok := m.detailRecord()
	if !ok {
		m.err = fmt.Errorf("edit %s %s: record is not loaded", kind.Noun(), m.selectedID)
		return m, nil
	}
	current, _ := models.PayloadToMap(rec.Payload)

	raw := map[string]string{}
	for i, name := range m.formFields {
		v := strings.TrimSpace(m.formInputs[i].Value())
		if v != formValue(current, name) {
			raw[name] = v
		}
	}
	if len(raw) == 0 {
		m.viewMode = ViewDetail
		m.message = "Nothing changed"
		return m, nil
	}
	patch, err := models.FieldsFromStrings(raw)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	return m, m.edit(kind, rec.ID, patch)
}
