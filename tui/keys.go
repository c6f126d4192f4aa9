// ABOUTME: Key bindings for the moderation console
// ABOUTME: Implements help.KeyMap so the footer lists the keys of the current view
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/devicedrop/models"
)

type keyMap struct {
	NextTab  key.Binding
	PrevTab  key.Binding
	Up       key.Binding
	Down     key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	Filter   key.Binding
	Search   key.Binding
	Refresh  key.Binding
	Save     key.Binding
	Open     key.Binding
	Back     key.Binding
	Graph    key.Binding
	Quit     key.Binding

	Approve    key.Binding
	Reject     key.Binding
	Reset      key.Binding
	Complete   key.Binding
	Activate   key.Binding
	Deactivate key.Binding
	Suspend    key.Binding
	Edit       key.Binding
	New        key.Binding
	Delete     key.Binding
}

var keys = keyMap{
	NextTab:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	PrevTab:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PrevPage: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev page")),
	NextPage: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next page")),
	Filter:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status filter")),
	Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Save:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save filters")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Graph:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "workflow")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	Approve:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "approve")),
	Reject:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reject")),
	Reset:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "reset")),
	Complete:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
	Activate:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "activate")),
	Deactivate: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "deactivate")),
	Suspend:    key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "suspend")),
	Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
	New:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
	Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Open, k.Filter, k.Search, k.Refresh, k.New, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTab, k.PrevTab, k.Up, k.Down, k.PrevPage, k.NextPage},
		{k.Filter, k.Search, k.Refresh, k.Save, k.Open, k.Graph},
		{k.Approve, k.Reject, k.Reset, k.Complete, k.Activate, k.Deactivate, k.Suspend},
		{k.Edit, k.New, k.Delete, k.Back, k.Quit},
	}
}

type actionBinding struct {
	binding key.Binding
	action  models.Action
}

func (k keyMap) actionBindings() []actionBinding {
	return []actionBinding{
		{k.Approve, models.ActionApprove},
		{k.Reject, models.ActionReject},
		{k.Reset, models.ActionReset},
		{k.Complete, models.ActionComplete},
		{k.Activate, models.ActionActivate},
		{k.Deactivate, models.ActionDeactivate},
		{k.Suspend, models.ActionSuspend},
	}
}

// actionFor returns the moderation action bound to msg, if any.
func (k keyMap) actionFor(msg tea.KeyMsg) (models.Action, bool) {
	for _, b := range k.actionBindings() {
		if key.Matches(msg, b.binding) {
			return b.action, true
		}
	}
	return "", false
}

// keyFor returns the key that triggers action.
func (k keyMap) keyFor(action models.Action) string {
	for _, b := range k.actionBindings() {
		if b.action == action {
			return b.binding.Help().Key
		}
	}
	return "?"
}
