// ABOUTME: List view with collection tabs, paging and the status filter
// ABOUTME: Record keys here and in the detail view share handleRecordKeys
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

func (m Model) renderListView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("DEVICEDROP ADMIN"))
	s.WriteString("\n\n")

	// Tabs
	s.WriteString(m.renderTabs())
	s.WriteString("\n")
	s.WriteString(m.renderQueryLine())
	s.WriteString("\n\n")

	// Table
	s.WriteString(m.renderTable())
	s.WriteString("\n")
	s.WriteString(m.renderPageLine())
	s.WriteString("\n")

	if line := m.renderStatusLine(); line != "" {
		s.WriteString("\n")
		s.WriteString(line)
		s.WriteString("\n")
	}

	// Help
	s.WriteString(helpStyle.Render(m.help.View(keys)))

	return s.String()
}

func (m Model) renderTabs() string {
	var rendered []string
	for i, kind := range models.AllKinds {
		label := kind.Label()
		if page := m.pages[kind]; page != nil {
			label += " (" + strconv.Itoa(page.Total) + ")"
		}
		if i == m.tab {
			rendered = append(rendered, tabActiveStyle.Render(label))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderQueryLine() string {
	spec, ok := m.specs[m.kind()]
	if !ok {
		return ""
	}
	var parts []string
	if status := spec.Filters["status"]; status != "" {
		parts = append(parts, "status: "+status)
	}
	for k, v := range spec.Filters {
		if k != "status" {
			parts = append(parts, k+": "+v)
		}
	}
	if spec.Search != "" {
		parts = append(parts, "search: \""+spec.Search+"\"")
	}
	if len(parts) == 0 {
		return helpStyle.Render("all " + m.kind().Collection())
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}

func (m Model) renderTable() string {
	kind := m.kind()
	page := m.pages[kind]

	if page == nil {
		if m.loading[kind] {
			return m.spinner.View() + " Loading " + kind.Collection() + "..."
		}
		return "No " + kind.Collection() + " loaded. Press r to refresh."
	}
	if len(page.Items) == 0 {
		return "No " + kind.Collection() + " found"
	}

	columns := []table.Column{
		{Title: "Title", Width: 30},
		{Title: "Status", Width: 12},
		{Title: "Details", Width: 32},
		{Title: "ID", Width: 10},
	}

	var rows []table.Row
	for _, rec := range page.Items {
		status := string(rec.Status)
		if m.facade.Busy(kind, rec.ID) {
			status = "processing"
		}
		rows = append(rows, table.Row{
			rec.Title(),
			status,
			recordSummary(rec),
			shortID(rec.ID),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height-14, 5)),
	)

	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}

	out := t.View()
	if m.loading[kind] {
		out += "\n" + m.spinner.View() + " Refreshing..."
	}
	return out
}

func (m Model) renderPageLine() string {
	page := m.pages[m.kind()]
	if page == nil {
		return ""
	}
	return helpStyle.Render(fmt.Sprintf("Page %d of %d • %d total", page.Page, max(page.TotalPages, 1), page.Total))
}

// recordSummary is the second most useful thing to know about a record.
func recordSummary(rec *models.Record) string {
	switch p := rec.Payload.(type) {
	case models.DevicePayload:
		return strings.Trim(p.Type+" • "+p.Condition, " •")
	case models.RequestPayload:
		if p.Quantity > 1 {
			return fmt.Sprintf("%s (x%d)", p.Organization, p.Quantity)
		}
		return p.Organization
	case models.UserPayload:
		return p.Email
	case models.TeamMemberPayload:
		return p.JobTitle
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// selected returns the record under the cursor on the active tab.
func (m Model) selected() (*models.Record, bool) {
	page := m.pages[m.kind()]
	if page == nil || m.selectedRow < 0 || m.selectedRow >= len(page.Items) {
		return nil, false
	}
	return page.Items[m.selectedRow], true
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, keys.Down):
		if page := m.pages[m.kind()]; page != nil && m.selectedRow < len(page.Items)-1 {
			m.selectedRow++
		}
	case key.Matches(msg, keys.NextTab):
		return m.switchTab((m.tab + 1) % len(models.AllKinds))
	case key.Matches(msg, keys.PrevTab):
		return m.switchTab((m.tab + len(models.AllKinds) - 1) % len(models.AllKinds))
	case key.Matches(msg, keys.NextPage):
		return m.turnPage(1)
	case key.Matches(msg, keys.PrevPage):
		return m.turnPage(-1)
	case key.Matches(msg, keys.Filter):
		return m.cycleStatusFilter()
	case key.Matches(msg, keys.Search):
		return m.openPrompt(promptSearch, "")
	case key.Matches(msg, keys.Refresh):
		kind := m.kind()
		spec, ok := m.specs[kind]
		if !ok {
			spec = m.loader.DefaultSpec(kind)
			m.specs[kind] = spec
		}
		m.loading[kind] = true
		m.err = nil
		return m, m.forceRefresh(kind, spec)
	case key.Matches(msg, keys.Save):
		if m.presets == nil {
			m.err = fmt.Errorf("save filters for %s: saved filters are not available", m.kind().Collection())
			return m, nil
		}
		spec, ok := m.specs[m.kind()]
		if !ok {
			return m, nil
		}
		return m, m.savePreset(spec)
	case key.Matches(msg, keys.Open):
		if rec, ok := m.selected(); ok {
			m.selectedID = rec.ID
			m.viewMode = ViewDetail
		}
	case key.Matches(msg, keys.Graph):
		return m.openGraph()
	case key.Matches(msg, keys.New):
		return m.openForm("")
	default:
		if rec, ok := m.selected(); ok {
			m.selectedID = rec.ID
			return m.handleRecordKeys(msg, rec)
		}
	}

	return m, nil
}

// handleRecordKeys runs the per-record keys shared by the list and detail
// views.
func (m Model) handleRecordKeys(msg tea.KeyMsg, rec *models.Record) (tea.Model, tea.Cmd) {
	kind := m.kind()

	if action, ok := keys.actionFor(msg); ok {
		if !hasAction(moderation.Allowed(kind, rec.Status), action) {
			m.err = fmt.Errorf("%s %s %s: not available", action, kind.Noun(), rec.ID)
			return m, nil
		}
		if moderation.Requires(kind, action) != "" {
			m.pendingAction = action
			return m.openPrompt(promptReason, "")
		}
		m.err = nil
		m.message = ""
		return m, m.transition(kind, rec.ID, action, models.AuditFields{})
	}

	switch {
	case key.Matches(msg, keys.Edit):
		return m.openForm(rec.ID)
	case key.Matches(msg, keys.Delete):
		m.viewMode = ViewConfirmDelete
	}
	return m, nil
}

func hasAction(actions []models.Action, a models.Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

// switchTab activates tab i and lazily loads it on first visit.
func (m Model) switchTab(i int) (tea.Model, tea.Cmd) {
	m.tab = i
	m.selectedRow = 0
	m.err = nil
	m.message = ""

	kind := m.kind()
	if _, ok := m.specs[kind]; !ok {
		m.specs[kind] = m.loader.DefaultSpec(kind)
		m.loading[kind] = true
	}
	return m, m.ensureLoaded(kind)
}

func (m Model) turnPage(delta int) (tea.Model, tea.Cmd) {
	kind := m.kind()
	page := m.pages[kind]
	spec, ok := m.specs[kind]
	if page == nil || !ok {
		return m, nil
	}
	next := spec.Page + delta
	if next < 1 || (page.TotalPages > 0 && next > page.TotalPages) {
		return m, nil
	}
	return m.request(spec.WithPage(next))
}

// cycleStatusFilter steps through no filter and then each status of the kind.
func (m Model) cycleStatusFilter() (tea.Model, tea.Cmd) {
	kind := m.kind()
	spec, ok := m.specs[kind]
	if !ok {
		spec = m.loader.DefaultSpec(kind)
	}

	statuses := moderation.Statuses(kind)
	current := models.Status(spec.Filters["status"])
	next := ""
	if current == "" {
		next = string(statuses[0])
	} else {
		for i, s := range statuses {
			if s == current && i+1 < len(statuses) {
				next = string(statuses[i+1])
			}
		}
	}

	filters := make(map[string]string, len(spec.Filters))
	for k, v := range spec.Filters {
		filters[k] = v
	}
	filters["status"] = next
	return m.request(engine.BuildQuery(kind, 1, m.facade.PageSize(), filters, spec.Search))
}

// request makes spec the wanted spec of its tab and fetches it.
func (m Model) request(spec models.QuerySpec) (tea.Model, tea.Cmd) {
	m.specs[spec.Kind] = spec
	m.loading[spec.Kind] = true
	m.selectedRow = 0
	m.err = nil
	return m, m.fetch(spec)
}

func newPromptInput(placeholder, value string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 500
	in.Width = 60
	in.SetValue(value)
	return in
}
