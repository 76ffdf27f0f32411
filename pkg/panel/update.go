package panel

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/autoact/pkg/types"
)

// Init fetches the context list.
func (m *model) Init() tea.Cmd {
	m.backend.FetchContexts()
	return nil
}

// Update handles bubbletea messages.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.title.Width = max(msg.Width-8, 20)
		m.description.SetWidth(max(msg.Width-6, 20))
		return m, nil

	case contextsMsg:
		return m.handleContexts(msg)

	case refetchMsg:
		m.backend.FetchContexts()
		return m, nil

	case sidePanelContentMsg:
		return m.handleSidePanelContent(msg.content)

	case pageDataMsg:
		data := msg.data
		m.pageData = &data
		return m, nil

	case savedMsg:
		return m.handleSaved(msg)

	case backendErrMsg:
		m.saving = false
		m.logger.Warnf("%s failed: %v", msg.action, msg.err)
		m.showToast(fmt.Sprintf("%s failed", msg.action), true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m *model) handleContexts(msg contextsMsg) (tea.Model, tea.Cmd) {
	var current string
	if item, ok := m.selected(); ok {
		current = item.ID
	}

	m.items = msg.items
	m.cursor = 0
	for i, item := range m.items {
		if item.ID == current {
			m.cursor = i
			break
		}
	}

	// Keep the detail view in sync with the refreshed copy.
	if m.screen == screenDetail {
		for _, item := range m.items {
			if item.ID == m.detail.ID {
				m.detail = item
			}
		}
	}
	return m, nil
}

func (m *model) handleSidePanelContent(content types.SidePanelContent) (tea.Model, tea.Cmd) {
	m.open = content.IsSidePanelOpen
	if content.ContentType.Valid() {
		m.contentType = content.ContentType
	}
	if content.PageData != nil {
		data := *content.PageData
		m.pageData = &data
	}
	if !m.open {
		return m, nil
	}

	switch m.contentType {
	case types.ContentAddNewContext:
		return m, m.startAdd()
	default:
		m.screen = screenList
		m.backend.FetchContexts()
		return m, nil
	}
}

func (m *model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	m.saving = false
	if msg.added {
		m.pageData = nil
		m.screen = screenList
		m.contentType = types.ContentContexts
		m.showToast("Context added", false)
		return m, nil
	}

	m.detail = msg.item
	m.screen = screenDetail
	m.showToast("Context updated", false)
	return m, nil
}

func (m *model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if !m.open {
		return m, nil
	}

	switch m.screen {
	case screenEdit, screenAdd:
		return m.handleFormKey(msg)
	case screenDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m *model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if item, ok := m.selected(); ok {
			m.detail = item
			m.screen = screenDetail
		}
	case key.Matches(msg, m.keys.Add):
		return m, m.startAdd()
	case key.Matches(msg, m.keys.Copy):
		if item, ok := m.selected(); ok {
			m.copyItem(item)
		}
	case key.Matches(msg, m.keys.Refresh):
		m.backend.FetchContexts()
	case key.Matches(msg, m.keys.Close):
		m.closePanel()
	}
	return m, nil
}

func (m *model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Edit):
		return m, m.startEdit()
	case key.Matches(msg, m.keys.Copy):
		m.copyItem(m.detail)
	case key.Matches(msg, m.keys.Back):
		m.screen = screenList
	case key.Matches(msg, m.keys.Close):
		m.closePanel()
	}
	return m, nil
}

func (m *model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Save):
		m.save()
		return m, nil
	case key.Matches(msg, m.keys.Back):
		if m.screen == screenEdit {
			m.screen = screenDetail
		} else {
			m.screen = screenList
		}
		return m, nil
	case key.Matches(msg, m.keys.Next):
		return m, m.setFocus((m.focus + 1) % 2)
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.title, cmd = m.title.Update(msg)
	} else {
		m.description, cmd = m.description.Update(msg)
	}
	return m, cmd
}

// save sends the form to the background. Values that are empty after
// trimming are refused without sending anything or changing state.
func (m *model) save() {
	if m.saving {
		return
	}
	values := m.formValues()
	if err := values.Validate(); err != nil {
		m.logger.Debugf("save refused: %v", err)
		return
	}

	m.saving = true
	if m.screen == screenAdd {
		m.backend.AddContext(values)
		return
	}
	m.backend.UpdateContext(types.ContextItem{
		ID:          m.detail.ID,
		Title:       values.Title,
		Description: values.Description,
	})
}

func (m *model) startAdd() tea.Cmd {
	m.screen = screenAdd
	m.contentType = types.ContentAddNewContext
	values := types.ContextFormValues{}
	if m.pageData != nil {
		values = m.pageData.Values()
	}
	m.title.SetValue(values.Title)
	m.description.SetValue(values.Description)
	return m.setFocus(0)
}

func (m *model) startEdit() tea.Cmd {
	m.screen = screenEdit
	m.title.SetValue(m.detail.Title)
	m.description.SetValue(m.detail.Description)
	return m.setFocus(0)
}

func (m *model) setFocus(i int) tea.Cmd {
	m.focus = i
	if i == 0 {
		m.description.Blur()
		return m.title.Focus()
	}
	m.title.Blur()
	return m.description.Focus()
}

func (m *model) copyItem(item types.ContextItem) {
	text := item.Title + "\n\n" + item.Description
	if err := m.copy(text); err != nil {
		m.logger.Warnf("copy failed: %v", err)
		m.showToast("Copy failed", true)
		return
	}
	m.showToast("Copied to clipboard", false)
}

func (m *model) closePanel() {
	m.open = false
	m.screen = screenList
	m.backend.PanelClosed()
}
