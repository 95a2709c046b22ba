package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/prefs"
)

const (
	barWidth       = 24
	recentListSize = 5
)

// renderDashboard renders the statistics overview.
func (m Model) renderDashboard() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	if !snap.HasStats {
		switch snap.StatsStatus {
		case cache.StatusError:
			return styles.DangerText.Render("Statistics unavailable: " + errText(snap.StatsError))
		default:
			return styles.WarningText.Render("Loading statistics...")
		}
	}

	stats := snap.Stats
	topAuthor := "-"
	if len(stats.TopAuthors) > 0 {
		topAuthor = stats.TopAuthors[0].Author
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderCard("Total Books", fmt.Sprintf("%d", stats.TotalBooks)),
		m.renderCard("Average Rating", fmt.Sprintf("%.2f", stats.AverageRating)),
		m.renderCard("Added (30d)", fmt.Sprintf("%d", snap.RecentAdditions)),
		m.renderCard("Top Author", truncate(topAuthor, 20)),
	)

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Panel.Render(m.renderRatingBars(stats)),
		styles.Panel.Render(m.renderTopAuthors(stats)),
		styles.Panel.Render(m.renderRecent()),
	)

	var b strings.Builder
	b.WriteString(cards)
	b.WriteString("\n")
	b.WriteString(panels)
	if snap.StatsStatus == cache.StatusStale || snap.StatsStatus == cache.StatusLoading {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("updating..."))
	}
	if m.showChart && m.chartURL != "" {
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Render("Rating chart: "))
		b.WriteString(styles.InfoText.Render(m.chartURL))
	}
	return b.String()
}

func (m Model) renderCard(label, value string) string {
	styles := m.theme.Styles()
	body := styles.MutedText.Render(label) + "\n" + styles.AccentText.Bold(true).Render(value)
	return styles.Card.Width(22).Render(body)
}

// renderRatingBars draws the rating histogram from MinRating to MaxRating,
// scaled to the largest bucket.
func (m Model) renderRatingBars(stats library.Statistics) string {
	styles := m.theme.Styles()
	counts := make(map[int]int, len(stats.RatingDistribution))
	peak := 0
	for _, rc := range stats.RatingDistribution {
		counts[rc.Rating] = rc.Count
		peak = max(peak, rc.Count)
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Ratings"))
	for r := library.MaxRating; r >= library.MinRating; r-- {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render(stars(r)))
		b.WriteString(" ")
		b.WriteString(styles.InfoText.Render(bar(counts[r], peak, barWidth)))
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("%d", counts[r])))
	}
	return b.String()
}

func (m Model) renderTopAuthors(stats library.Statistics) string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Top Authors"))
	if len(stats.TopAuthors) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("none yet"))
	}
	for i, a := range stats.TopAuthors {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("%d. ", i+1)))
		b.WriteString(styles.Text.Render(truncate(a.Author, 24)))
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("(%d)", a.BookCount)))
	}
	return b.String()
}

func (m Model) renderRecent() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Recently Added"))
	recent := prefs.SortRecent.Apply(m.snapshot.Books)
	if len(recent) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("no books"))
	}
	for i, book := range recent {
		if i == recentListSize {
			break
		}
		b.WriteString("\n")
		b.WriteString(styles.Text.Render(truncate(book.Title, 28)))
		if book.Pending() {
			b.WriteString(" ")
			b.WriteString(styles.InfoText.Render("saving"))
		}
	}
	return b.String()
}

func stars(n int) string {
	n = max(0, min(n, library.MaxRating))
	return strings.Repeat("★", n) + strings.Repeat("☆", library.MaxRating-n)
}

func bar(count, peak, width int) string {
	if peak <= 0 || width <= 0 {
		return strings.Repeat("░", max(width, 0))
	}
	filled := count * width / peak
	if count > 0 && filled == 0 {
		filled = 1
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
