package panel

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// View renders the panel.
func (m *model) View() string {
	if !m.open {
		return helpStyle.Render("AutoAct panel closed. Use the knowledge-base button on a page to open it.") + "\n"
	}

	var body string
	switch m.screen {
	case screenDetail:
		body = m.viewDetail()
	case screenEdit:
		body = m.viewForm("Edit context")
	case screenAdd:
		body = m.viewForm("Add new context")
	default:
		body = m.viewList()
	}

	sections := []string{headerStyle.Render("AutoAct knowledge base"), body}
	if toast := m.renderToast(); toast != "" {
		sections = append(sections, toast)
	}
	sections = append(sections, m.viewHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *model) cardWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(m.width-4, 20)
}

func (m *model) viewList() string {
	if len(m.items) == 0 {
		return descriptionStyle.Render("No contexts yet. Select text on a page and add it.")
	}

	cards := make([]string, 0, len(m.items))
	for i, item := range m.items {
		style, title := cardStyle, titleStyle
		if i == m.cursor {
			style, title = selectedCardStyle, selectedTitleStyle
		}
		content := title.Render(item.Title) + "\n" + descriptionStyle.Render(clamp(item.Description, 2, m.cardWidth()-4))
		cards = append(cards, style.Width(m.cardWidth()).Render(content))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func (m *model) viewDetail() string {
	content := titleStyle.Render(m.detail.Title) + "\n\n" + m.detail.Description
	return cardStyle.Width(m.cardWidth()).Render(content)
}

func (m *model) viewForm(heading string) string {
	var b strings.Builder
	b.WriteString(selectedTitleStyle.Render(heading))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Title"))
	b.WriteString("\n")
	b.WriteString(m.title.View())
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Description"))
	b.WriteString("\n")
	b.WriteString(m.description.View())
	if m.saving {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("Saving..."))
	}
	return formStyle.Width(m.cardWidth()).Render(b.String())
}

func (m *model) viewHelp() string {
	var bindings []key.Binding
	switch m.screen {
	case screenDetail:
		bindings = []key.Binding{m.keys.Edit, m.keys.Copy, m.keys.Back, m.keys.Close}
	case screenEdit, screenAdd:
		bindings = []key.Binding{m.keys.Save, m.keys.Next, m.keys.Back}
	default:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Open, m.keys.Add, m.keys.Copy, m.keys.Refresh, m.keys.Close}
	}

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}

func (m *model) renderToast() string {
	if m.toast.message == "" || m.now().After(m.toast.showUntil) {
		return ""
	}
	color := mintGreen
	if m.toast.isError {
		color = errorRed
	}
	return lipgloss.NewStyle().Foreground(color).Render(m.toast.message)
}

// clamp wraps text to width and keeps at most lines lines.
func clamp(text string, lines, width int) string {
	wrapped := lipgloss.NewStyle().Width(width).Render(text)
	parts := strings.Split(wrapped, "\n")
	if len(parts) <= lines {
		return wrapped
	}
	parts = parts[:lines]
	parts[lines-1] = strings.TrimRight(parts[lines-1], " ") + "…"
	return strings.Join(parts, "\n")
}
