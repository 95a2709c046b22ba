package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/library"
)

// renderHeader renders the status bar: logo, per-resource status badges,
// book count, last refresh and the most recent error.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	sep := "  "

	parts := []string{
		styles.Logo.Render("shelf"),
		styles.MutedText.Render("books") + " " + styles.StatusStyle(m.snapshot.BooksStatus.String()).Render(m.snapshot.BooksStatus.String()),
		styles.MutedText.Render("stats") + " " + styles.StatusStyle(m.snapshot.StatsStatus.String()).Render(m.snapshot.StatsStatus.String()),
		styles.MutedText.Render("Books:") + " " + styles.Text.Render(fmt.Sprintf("%d", len(m.snapshot.Books))),
	}

	if pending := pendingCount(m.snapshot.Books); pending > 0 {
		parts = append(parts, styles.InfoText.Render(fmt.Sprintf("saving %d", pending)))
	}

	if ts := formatTimestamp(m.snapshot.LastUpdated, time.Now()); ts != "" {
		parts = append(parts, styles.MutedText.Render(ts))
	}

	if m.snapshot.IsOffline() {
		parts = append(parts, styles.DangerText.Render(classifyConnectionError(m.snapshot.LastError))+" "+
			styles.WarningText.Render("Retrying..."))
	} else if m.snapshot.LastError != nil {
		maxErr := 80
		if m.width < 100 {
			maxErr = 40
		}
		parts = append(parts, styles.DangerText.Render("ERROR")+" "+
			styles.DangerText.UnsetBold().Render(truncate(m.snapshot.LastError.Error(), maxErr)))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// renderTabs renders the view switcher line.
func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	tabs := make([]string, 0, len(viewOrder))
	for i, v := range viewOrder {
		label := fmt.Sprintf(" %d %s ", i+1, v)
		if v == m.currentView {
			tabs = append(tabs, styles.Selected.Bold(true).Render(label))
			continue
		}
		tabs = append(tabs, styles.MutedText.Render(label))
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.currentView == ViewBooks {
		line += "  " + styles.FaintText.Render("sort: "+string(m.sort))
	}
	return line
}

// renderFooter renders the short help line and the flash message.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	line := m.help.ShortHelpView(m.contextHelp())
	if m.flash != "" {
		flash := styles.SuccessText.UnsetBold()
		if m.flashError {
			flash = styles.DangerText.UnsetBold()
		}
		line += "  " + flash.Render(truncate(m.flash, max(20, m.width/2)))
	}
	line += "  " + styles.AccentText.Render("T") + styles.FaintText.Render(":"+m.theme.Name)
	return styles.Footer.Width(m.width).Render(line)
}

func pendingCount(books []library.Book) int {
	n := 0
	for _, b := range books {
		if b.Pending() {
			n++
		}
	}
	return n
}

func (m Model) statusOf(key string) cache.Status {
	switch key {
	case library.KeyBooks:
		return m.snapshot.BooksStatus
	case library.KeyStats:
		return m.snapshot.StatsStatus
	default:
		return cache.StatusIdle
	}
}

// formatTimestamp formats t with a relative age.
func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	age := now.Sub(t)
	s := t.Format("15:04:05")
	switch {
	case age < time.Minute:
		s += " (now)"
	case age < time.Hour:
		s += fmt.Sprintf(" (%dm ago)", int(age.Minutes()))
	case age < 24*time.Hour:
		s += fmt.Sprintf(" (%dh ago)", int(age.Hours()))
	}
	return s
}

// classifyConnectionError returns a short description of a refresh failure.
func classifyConnectionError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	var libErr *library.Error
	if errors.As(err, &libErr) {
		switch libErr.Kind {
		case library.KindNetwork:
			msg := libErr.Error()
			switch {
			case strings.Contains(msg, "no such host"):
				return "HOST NOT FOUND"
			case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
				return "TIMEOUT"
			}
			return "OFFLINE"
		case library.KindServer:
			return "SERVER ERROR"
		}
	}
	return "ERROR"
}

// truncate truncates a string to max runes with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
