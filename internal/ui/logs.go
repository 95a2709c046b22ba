package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/five82/shelf/internal/logtail"
)

// handleLogs replaces the log viewport content, keeping the view pinned to
// the bottom when it already was.
func (m *Model) handleLogs(msg logsMsg) {
	if msg.err != nil {
		m.setFlash("logs: "+msg.err.Error(), true)
		return
	}
	follow := m.logViewport.AtBottom() || m.logEntries == 0
	m.logEntries = len(msg.entries)
	m.logViewport.SetContent(m.formatLogs(msg.entries))
	if follow {
		m.logViewport.GotoBottom()
	}
}

func (m Model) formatLogs(entries []logtail.Entry) string {
	styles := m.theme.Styles()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Level == "" {
			lines = append(lines, styles.FaintText.Render(e.Raw))
			continue
		}
		var b strings.Builder
		if !e.Time.IsZero() {
			b.WriteString(styles.MutedText.Render(e.Time.Local().Format("15:04:05")))
			b.WriteString(" ")
		}
		b.WriteString(styles.LevelStyle(e.Level).Render(strings.ToUpper(e.Level)))
		b.WriteString(" ")
		if e.Logger != "" {
			b.WriteString(styles.AccentText.Render(e.Logger + ":"))
			b.WriteString(" ")
		}
		b.WriteString(styles.Text.Render(e.Message))
		if fields := logFields(e); fields != "" {
			b.WriteString(" ")
			b.WriteString(styles.FaintText.Render(fields))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// logFields renders the structured fields as sorted key=value pairs.
func logFields(e logtail.Entry) string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return strings.Join(parts, " ")
}

// renderLogs renders the log viewport.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	if m.logPath == "" {
		return styles.FaintText.Render("Logging to file is disabled.")
	}
	if m.logEntries == 0 {
		return styles.FaintText.Render("No log entries in " + m.logPath)
	}
	return m.logViewport.View()
}
