// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Four moderation tabs backed by the workflow facade and the lazy tab loader
package tui

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewEdit
	ViewGraph
	ViewConfirmDelete
	ViewPrompt
)

// PresetSaver stores the active filters of a tab as its default.
type PresetSaver interface {
	Save(spec models.QuerySpec) (engine.Preset, error)
}

// Options wires a Model to its data.
type Options struct {
	Context context.Context
	Facade  *engine.Facade
	Loader  *engine.Loader
	// Presets is optional; without it "s" reports that saving is unavailable.
	Presets PresetSaver
	Logger  *log.Logger
}

// pageLoadedMsg answers a list request. spec is what was asked for; the model
// drops answers to specs it no longer wants.
type pageLoadedMsg struct {
	kind models.Kind
	spec models.QuerySpec
	page *models.PageResult
	err  error
}

// mutationDoneMsg reports a transition, edit, create or remove.
type mutationDoneMsg struct {
	kind    models.Kind
	id      string
	action  string
	record  *models.Record
	removed bool
	err     error
}

type presetSavedMsg struct {
	kind   models.Kind
	preset engine.Preset
	err    error
}

type graphMsg struct {
	kind models.Kind
	dot  string
	err  error
}

// Model is the main bubbletea model
type Model struct {
	ctx     context.Context
	facade  *engine.Facade
	loader  *engine.Loader
	presets PresetSaver
	logger  *log.Logger

	viewMode ViewMode
	tab      int

	// specs is the spec each tab last asked for; pages is what it shows.
	specs   map[models.Kind]models.QuerySpec
	pages   map[models.Kind]*models.PageResult
	loading map[models.Kind]bool

	selectedRow int
	selectedID  string

	// Prompt state (search or reason)
	prompt        textinput.Model
	promptMode    promptMode
	promptReturn  ViewMode
	pendingAction models.Action

	// Edit/new form state
	formFields []string
	formInputs []textinput.Model
	focusIndex int
	formToken  string

	graphDOT    string
	graphReturn ViewMode

	spinner spinner.Model
	help    help.Model

	message string
	err     error

	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		facade:   opts.Facade,
		loader:   opts.Loader,
		presets:  opts.Presets,
		logger:   logger.WithPrefix("tui"),
		viewMode: ViewList,
		specs:    make(map[models.Kind]models.QuerySpec),
		pages:    make(map[models.Kind]*models.PageResult),
		loading:  make(map[models.Kind]bool),
		spinner:  sp,
		help:     help.New(),
		width:    100,
		height:   30,
	}

	// Init loads the first tab.
	first := m.kind()
	m.specs[first] = m.loader.DefaultSpec(first)
	m.loading[first] = true
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.ensureLoaded(m.kind()))
}

// kind is the collection of the active tab.
func (m Model) kind() models.Kind {
	return models.AllKinds[m.tab]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case pageLoadedMsg:
		return m.handlePageLoaded(msg)
	case mutationDoneMsg:
		return m.handleMutationDone(msg)
	case presetSavedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.message = "✓ Saved filters for " + msg.kind.Collection()
		}
		return m, nil
	case graphMsg:
		if msg.err != nil {
			m.err = msg.err
			m.viewMode = m.graphReturn
		} else if msg.kind == m.kind() {
			m.graphDOT = msg.dot
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewEdit:
		return m.renderEditView()
	case ViewGraph:
		return m.renderGraphView()
	case ViewConfirmDelete:
		return m.renderConfirmDeleteView()
	case ViewPrompt:
		return m.renderPromptView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Text entry views own every key except ctrl+c.
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewEdit:
		return m.handleEditKeys(msg)
	case ViewGraph:
		return m.handleGraphKeys(msg)
	case ViewConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	case ViewPrompt:
		return m.handlePromptKeys(msg)
	}

	return m, nil
}

func (m Model) handlePageLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	if want, ok := m.specs[msg.kind]; ok && !want.Equal(msg.spec) {
		m.logger.Debug("ignoring stale page", "kind", msg.kind, "spec", msg.spec.Key())
		return m, nil
	}
	m.loading[msg.kind] = false

	if errors.Is(msg.err, engine.ErrSuperseded) {
		return m, nil
	}
	if msg.err != nil {
		m.err = msg.err
		return m, nil
	}
	if msg.page == nil {
		return m, nil
	}

	m.specs[msg.kind] = msg.spec
	m.pages[msg.kind] = msg.page
	if msg.kind == m.kind() && m.selectedRow >= len(msg.page.Items) {
		m.selectedRow = max(len(msg.page.Items)-1, 0)
	}
	return m, nil
}

func (m Model) handleMutationDone(msg mutationDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		m.message = ""
		return m, nil
	}
	m.err = nil

	page := m.pages[msg.kind]
	switch {
	case msg.removed:
		if page != nil {
			kept := page.Items[:0:0]
			for _, r := range page.Items {
				if r.ID != msg.id {
					kept = append(kept, r)
				}
			}
			if len(kept) < len(page.Items) {
				page.Total = max(page.Total-1, 0)
				if spec, ok := m.specs[msg.kind]; ok && spec.PageSize > 0 {
					page.TotalPages = (page.Total + spec.PageSize - 1) / spec.PageSize
				}
			}
			page.Items = kept
		}
		m.message = "✓ Removed " + msg.kind.Noun() + " " + msg.id
		if m.viewMode == ViewDetail || m.viewMode == ViewConfirmDelete {
			m.viewMode = ViewList
		}
		if page != nil && m.selectedRow >= len(page.Items) {
			m.selectedRow = max(len(page.Items)-1, 0)
		}
		return m, nil
	case msg.action == "create":
		m.message = "✓ Created " + msg.kind.Noun() + " " + msg.record.Title()
		m.viewMode = ViewList
		m.formToken = ""
		spec, ok := m.specs[msg.kind]
		if !ok {
			return m, nil
		}
		m.loading[msg.kind] = true
		return m, m.fetch(spec)
	default:
		if page != nil {
			for i, r := range page.Items {
				if r.ID == msg.record.ID {
					page.Items[i] = msg.record
				}
			}
		}
		if msg.action == "edit" {
			m.message = "✓ Saved " + msg.kind.Noun() + " " + msg.record.Title()
			if m.viewMode == ViewEdit {
				m.viewMode = ViewDetail
			}
		} else {
			m.message = "✓ " + msg.record.Title() + " is now " + string(msg.record.Status)
		}
		return m, nil
	}
}

// Commands

func (m Model) ensureLoaded(kind models.Kind) tea.Cmd {
	f, l, ctx := m.facade, m.loader, m.ctx
	return func() tea.Msg {
		page, err := l.EnsureLoaded(ctx, kind)
		spec := l.DefaultSpec(kind)
		if snap := f.Snapshot(kind); snap.Spec != nil {
			spec = *snap.Spec
		}
		return pageLoadedMsg{kind: kind, spec: spec, page: page, err: err}
	}
}

func (m Model) fetch(spec models.QuerySpec) tea.Cmd {
	f, ctx := m.facade, m.ctx
	return func() tea.Msg {
		page, err := f.List(ctx, spec)
		return pageLoadedMsg{kind: spec.Kind, spec: spec, page: page, err: err}
	}
}

func (m Model) forceRefresh(kind models.Kind, spec models.QuerySpec) tea.Cmd {
	l, ctx := m.loader, m.ctx
	return func() tea.Msg {
		page, err := l.ForceRefresh(ctx, kind)
		return pageLoadedMsg{kind: kind, spec: spec, page: page, err: err}
	}
}

func (m Model) transition(kind models.Kind, id string, action models.Action, audit models.AuditFields) tea.Cmd {
	f, ctx := m.facade, m.ctx
	return func() tea.Msg {
		rec, err := f.Transition(ctx, kind, id, action, audit)
		return mutationDoneMsg{kind: kind, id: id, action: string(action), record: rec, err: err}
	}
}

func (m Model) edit(kind models.Kind, id string, patch map[string]any) tea.Cmd {
	f, ctx := m.facade, m.ctx
	return func() tea.Msg {
		rec, err := f.EditFields(ctx, kind, id, patch)
		return mutationDoneMsg{kind: kind, id: id, action: "edit", record: rec, err: err}
	}
}

func (m Model) create(kind models.Kind, token string, payload models.Payload) tea.Cmd {
	f, ctx := m.facade, m.ctx
	return func() tea.Msg {
		rec, err := f.Create(ctx, kind, token, payload)
		msg := mutationDoneMsg{kind: kind, action: "create", record: rec, err: err}
		if rec != nil {
			msg.id = rec.ID
		}
		return msg
	}
}

func (m Model) remove(kind models.Kind, id string) tea.Cmd {
	f, ctx := m.facade, m.ctx
	return func() tea.Msg {
		err := f.Remove(ctx, kind, id)
		return mutationDoneMsg{kind: kind, id: id, action: "remove", removed: err == nil, err: err}
	}
}

func (m Model) savePreset(spec models.QuerySpec) tea.Cmd {
	p := m.presets
	return func() tea.Msg {
		preset, err := p.Save(spec)
		return presetSavedMsg{kind: spec.Kind, preset: preset, err: err}
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)
)

// renderStatusLine shows the last outcome, errors first.
func (m Model) renderStatusLine() string {
	if m.err != nil {
		return errorStyle.Render("✗ " + m.err.Error())
	}
	if m.message != "" {
		return messageStyle.Render(m.message)
	}
	return ""
}
