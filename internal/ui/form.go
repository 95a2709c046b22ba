package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/shelf/internal/library"
)

const (
	fieldTitle = iota
	fieldAuthor
	fieldPublished
	fieldRating
	fieldDescription
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldTitle:       "Title",
	fieldAuthor:      "Author",
	fieldPublished:   "Published",
	fieldRating:      "Rating",
	fieldDescription: "Description",
}

// bookForm edits the writable fields of a book. editID is zero for a new book.
type bookForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	editID int64
	err    string
}

func newBookForm(book *library.Book) *bookForm {
	f := &bookForm{}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		in.Width = 48
		f.inputs[i] = in
	}
	f.inputs[fieldPublished].Placeholder = "YYYY-MM-DD"
	f.inputs[fieldPublished].CharLimit = 10
	f.inputs[fieldRating].Placeholder = fmt.Sprintf("%d-%d", library.MinRating, library.MaxRating)
	f.inputs[fieldRating].CharLimit = 1
	f.inputs[fieldDescription].CharLimit = 2000

	if book != nil {
		f.editID = book.ID
		f.inputs[fieldTitle].SetValue(book.Title)
		f.inputs[fieldAuthor].SetValue(book.Author)
		f.inputs[fieldPublished].SetValue(book.PublishedDate.String())
		if book.Rating > 0 {
			f.inputs[fieldRating].SetValue(strconv.Itoa(book.Rating))
		}
		f.inputs[fieldDescription].SetValue(book.Description)
	}
	f.inputs[fieldTitle].Focus()
	return f
}

func (f *bookForm) editing() bool {
	return f.editID != 0
}

func (f *bookForm) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f.inputs[f.focus].Focus()
}

func (f *bookForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// input parses the form into a BookInput. Format errors are reported here;
// field rules are left to BookInput.Validate.
func (f *bookForm) input() (library.BookInput, error) {
	in := library.BookInput{
		Title:       strings.TrimSpace(f.inputs[fieldTitle].Value()),
		Author:      strings.TrimSpace(f.inputs[fieldAuthor].Value()),
		Description: strings.TrimSpace(f.inputs[fieldDescription].Value()),
	}
	date, err := library.ParseDate(f.inputs[fieldPublished].Value())
	if err != nil {
		return in, fmt.Errorf("published: use YYYY-MM-DD")
	}
	in.PublishedDate = date
	if raw := strings.TrimSpace(f.inputs[fieldRating].Value()); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			return in, fmt.Errorf("rating: not a number")
		}
		in.Rating = rating
	}
	return in, nil
}

// renderForm renders the add/edit form.
func (m Model) renderForm() string {
	styles := m.theme.Styles()
	f := m.form

	title := "Add Book"
	if f.editing() {
		title = fmt.Sprintf("Edit Book #%d", f.editID)
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(title))
	b.WriteString("\n\n")
	for i := range f.inputs {
		label := fmt.Sprintf("%-12s", fieldLabels[i])
		if i == f.focus {
			b.WriteString(styles.WarningText.Render(label))
		} else {
			b.WriteString(styles.MutedText.Render(label))
		}
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(f.err))
	}
	return styles.Panel.Render(b.String())
}
