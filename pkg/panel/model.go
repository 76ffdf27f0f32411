package panel

import (
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// screen is the panel view currently shown.
type screen int

const (
	screenList screen = iota
	screenDetail
	screenEdit
	screenAdd
)

// backend is the panel's link to the background. Every call returns
// immediately; results come back as tea messages.
type backend interface {
	FetchContexts()
	AddContext(values types.ContextFormValues)
	UpdateContext(item types.ContextItem)
	PanelClosed()
}

// keyMap holds the panel's key bindings.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Open    key.Binding
	Add     key.Binding
	Edit    key.Binding
	Copy    key.Binding
	Refresh key.Binding
	Back    key.Binding
	Save    key.Binding
	Next    key.Binding
	Close   key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "view")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Copy:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Save:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Close:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "close panel")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// toastNotification is a short-lived status line.
type toastNotification struct {
	message   string
	isError   bool
	showUntil time.Time
}

// model is the panel's bubbletea state.
type model struct {
	backend backend
	keys    keyMap
	logger  *logging.Logger
	copy    func(string) error
	now     func() time.Time

	// Panel state as last pushed by the background.
	open        bool
	contentType types.ContentType

	screen   screen
	items    []types.ContextItem
	cursor   int
	detail   types.ContextItem
	pageData *types.PageSelection
	saving   bool

	// Form shared by edit and add.
	title       textinput.Model
	description textarea.Model
	focus       int

	toast toastNotification

	width  int
	height int
}

// contextsMsg carries a fresh context list.
type contextsMsg struct{ items []types.ContextItem }

// backendErrMsg reports a failed background call.
type backendErrMsg struct {
	action types.Action
	err    error
}

// savedMsg reports a successful add or update.
type savedMsg struct {
	item  types.ContextItem
	added bool
}

// refetchMsg is the refetchContexts push.
type refetchMsg struct{}

// sidePanelContentMsg is the sidePanelContent push.
type sidePanelContentMsg struct{ content types.SidePanelContent }

// pageDataMsg is the scrappedPageData push.
type pageDataMsg struct{ data types.PageSelection }

func newModel(b backend, logger *logging.Logger) *model {
	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 200

	description := textarea.New()
	description.Placeholder = "Description"
	description.ShowLineNumbers = false
	description.SetHeight(6)

	if logger == nil {
		logger = logging.Nop()
	}

	return &model{
		backend:     b,
		keys:        defaultKeyMap(),
		logger:      logger,
		copy:        clipboard.WriteAll,
		now:         time.Now,
		contentType: types.ContentContexts,
		title:       title,
		description: description,
	}
}

// selected returns the item under the cursor.
func (m *model) selected() (types.ContextItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return types.ContextItem{}, false
	}
	return m.items[m.cursor], true
}

// formValues returns the form's current values.
func (m *model) formValues() types.ContextFormValues {
	return types.ContextFormValues{
		Title:       m.title.Value(),
		Description: m.description.Value(),
	}
}

func (m *model) showToast(message string, isError bool) {
	m.toast = toastNotification{
		message:   message,
		isError:   isError,
		showUntil: m.now().Add(3 * time.Second),
	}
}
