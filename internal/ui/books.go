package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/mutation"
)

// sortedBooks returns the collection in the current display order.
func (m Model) sortedBooks() []library.Book {
	return m.sort.Apply(m.snapshot.Books)
}

func (m Model) selectedBook() (library.Book, bool) {
	books := m.sortedBooks()
	if m.selectedRow < 0 || m.selectedRow >= len(books) {
		return library.Book{}, false
	}
	return books[m.selectedRow], true
}

func (m Model) handleBooksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.snapshot.Books)
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < n-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = max(0, n-1)
	case key.Matches(msg, m.keys.Sort):
		m.sort = m.sort.Next()
		m.savePrefs()
	case key.Matches(msg, m.keys.Add):
		m.form = newBookForm(nil)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Edit):
		book, ok := m.selectedBook()
		if !ok {
			return m, nil
		}
		if book.Pending() {
			m.setFlash("still saving, try again shortly", true)
			return m, nil
		}
		m.form = newBookForm(&book)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Del):
		book, ok := m.selectedBook()
		if !ok {
			return m, nil
		}
		if book.Pending() {
			m.setFlash("still saving, try again shortly", true)
			return m, nil
		}
		m.confirmDelete = &book
	}
	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.form = nil
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submitForm()
	case key.Matches(msg, m.keys.NextField):
		return m, f.move(1)
	case key.Matches(msg, m.keys.PrevField):
		return m, f.move(-1)
	}
	return m, f.update(msg)
}

// submitForm hands the form to the mutation pipeline. The form stays open
// until its input parses and validates.
func (m Model) submitForm() (tea.Model, tea.Cmd) {
	f := m.form
	in, err := f.input()
	if err == nil {
		err = in.Validate()
	}
	if err != nil {
		f.err = formError(err)
		return m, nil
	}

	req := mutation.Request{Kind: mutation.KindCreate, Input: in}
	verb := "adding"
	if f.editing() {
		req = mutation.Request{Kind: mutation.KindUpdate, ID: f.editID, Input: in}
		verb = "saving"
	}
	m.form = nil
	m.setFlash(fmt.Sprintf("%s %q...", verb, in.Title), false)
	return m, m.mutateCmd(req)
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	book := m.confirmDelete
	m.confirmDelete = nil
	if !key.Matches(msg, m.keys.Yes) {
		return m, nil
	}
	m.setFlash(fmt.Sprintf("deleting %q...", book.Title), false)
	return m, m.mutateCmd(mutation.Request{Kind: mutation.KindDelete, ID: book.ID})
}

func (m *Model) handleMutationResult(r mutation.Result) {
	m.refreshSnapshot()
	if r.OK() {
		switch r.Kind {
		case mutation.KindCreate:
			m.setFlash(fmt.Sprintf("added %q", r.Book.Title), false)
		case mutation.KindUpdate:
			m.setFlash(fmt.Sprintf("saved %q", r.Book.Title), false)
		default:
			m.setFlash("deleted", false)
		}
		return
	}
	m.logger.Debug("mutation not committed",
		zap.Stringer("kind", r.Kind),
		zap.Stringer("state", r.State),
		zap.Error(r.Err),
	)
	m.setFlash(fmt.Sprintf("%s failed: %s", r.Kind, formError(r.Err)), true)
}

// formError renders a library error without its operation prefix.
func formError(err error) string {
	var libErr *library.Error
	if errors.As(err, &libErr) && libErr.Message != "" {
		return libErr.Message
	}
	return errText(err)
}

// renderBooks renders the collection table.
func (m Model) renderBooks() string {
	styles := m.theme.Styles()
	snap := m.snapshot
	books := m.sortedBooks()

	if len(books) == 0 {
		switch snap.BooksStatus {
		case cache.StatusError:
			return styles.DangerText.Render("Books unavailable: " + errText(snap.BooksError))
		case cache.StatusIdle, cache.StatusLoading:
			return styles.WarningText.Render("Loading books...")
		default:
			return styles.FaintText.Render("No books yet. Press a to add one.")
		}
	}

	titleW := max(16, m.width-56)
	header := fmt.Sprintf("%-*s  %-20s  %-10s  %-7s", titleW, "Title", "Author", "Published", "Rating")

	height := max(1, m.contentHeight()-1)
	start := 0
	if m.selectedRow >= height {
		start = m.selectedRow - height + 1
	}
	end := min(len(books), start+height)

	rows := make([]string, 0, end-start+1)
	rows = append(rows, styles.MutedText.Bold(true).Render(header))
	for i := start; i < end; i++ {
		b := books[i]
		title := truncate(b.Title, titleW)
		if b.Pending() {
			title = truncate("… "+b.Title, titleW)
		}
		line := fmt.Sprintf("%-*s  %-20s  %-10s  %-7s",
			titleW, title, truncate(b.Author, 20), b.PublishedDate.String(), stars(b.Rating))
		switch {
		case i == m.selectedRow:
			rows = append(rows, styles.Selected.Render(line))
		case b.Pending():
			rows = append(rows, styles.InfoText.Render(line))
		default:
			rows = append(rows, styles.Text.Render(line))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderConfirm renders the delete confirmation.
func (m Model) renderConfirm() string {
	styles := m.theme.Styles()
	book := m.confirmDelete
	var b strings.Builder
	b.WriteString(styles.DangerText.Render("Delete book?"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(book.Title))
	b.WriteString(styles.MutedText.Render(" by " + book.Author))
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Render("y"))
	b.WriteString(styles.MutedText.Render(" delete   "))
	b.WriteString(styles.AccentText.Render("any other key"))
	b.WriteString(styles.MutedText.Render(" cancel"))
	return styles.Panel.Render(b.String())
}
