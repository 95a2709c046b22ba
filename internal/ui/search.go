package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/shelf/internal/lookup"
)

// handleSearchKey routes keys to the lookup input. Every edit is forwarded
// to the debounced controller; only the last one in a burst is sent.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		return m.switchView(ViewDashboard)
	case key.Matches(msg, m.keys.Tab):
		return m.switchView(nextView(m.currentView))
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if q := m.searchInput.Value(); q != m.lastQuery {
		m.lastQuery = q
		if m.store != nil {
			m.store.Search(q)
		}
	}
	return m, cmd
}

// renderSearch renders the lookup input and the latest visible result.
func (m Model) renderSearch() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	query := strings.TrimSpace(m.lastQuery)
	snap := m.snapshot
	if query != "" && (!snap.HasLookup || snap.Lookup.Query != query) {
		b.WriteString(styles.FaintText.Render("searching..."))
		b.WriteString("\n\n")
	}
	if !snap.HasLookup {
		b.WriteString(styles.FaintText.Render("Type to look up book metadata."))
		return b.String()
	}
	b.WriteString(m.renderLookupResult(snap.Lookup))
	return b.String()
}

func (m Model) renderLookupResult(r lookup.Result) string {
	styles := m.theme.Styles()
	var b strings.Builder

	b.WriteString(styles.MutedText.Render("Result for "))
	b.WriteString(styles.AccentText.Render(r.Query))
	b.WriteString("\n")

	if r.Type == lookup.ResultError {
		b.WriteString(styles.DangerText.Render(r.Message))
		return styles.Panel.Render(b.String())
	}

	rec := r.Payload.Record
	if !r.Payload.Found {
		b.WriteString(styles.WarningText.Render("No match found."))
		return styles.Panel.Render(b.String())
	}

	b.WriteString(styles.Text.Bold(true).Render(rec.Title))
	b.WriteString("\n")
	if authors := rec.AuthorLine(); authors != "" {
		b.WriteString(styles.MutedText.Render("by "))
		b.WriteString(styles.Text.Render(authors))
		b.WriteString("\n")
	}
	if rec.PublishedDate != "" {
		b.WriteString(styles.MutedText.Render("published "))
		b.WriteString(styles.Text.Render(rec.PublishedDate))
		b.WriteString("\n")
	}
	if rec.Description != "" {
		b.WriteString("\n")
		b.WriteString(styles.Text.Width(max(20, m.width-8)).Render(truncate(rec.Description, 600)))
		b.WriteString("\n")
	}
	if r.Payload.SavedToCollection {
		b.WriteString("\n")
		b.WriteString(styles.SuccessText.Render("Saved to collection"))
	}
	return styles.Panel.Render(b.String())
}
