package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// contextHelp returns the bindings shown in the footer for the current view.
func (m Model) contextHelp() []key.Binding {
	switch {
	case m.form != nil:
		return []key.Binding{m.keys.NextField, m.keys.PrevField, m.keys.Submit, m.keys.Escape}
	case m.confirmDelete != nil:
		return []key.Binding{m.keys.Yes, m.keys.Escape}
	}
	switch m.currentView {
	case ViewBooks:
		return []key.Binding{m.keys.Up, m.keys.Down, m.keys.Add, m.keys.Edit, m.keys.Del, m.keys.Sort, m.keys.Help}
	case ViewSearch:
		return []key.Binding{m.keys.Escape}
	case ViewLogs:
		return []key.Binding{m.keys.Up, m.keys.Down, m.keys.Refresh, m.keys.Help}
	default:
		return m.keys.ShortHelp()
	}
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	h := m.help
	h.ShowAll = true
	b.WriteString(h.View(m.keys))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
