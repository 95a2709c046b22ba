// Package prefs handles shelf user preferences persistence.
// Preferences are stored in ~/.config/shelf/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/shelf/internal/library"
)

// SortOrder selects how the book list is ordered.
type SortOrder string

const (
	SortTitle  SortOrder = "title"
	SortAuthor SortOrder = "author"
	SortRating SortOrder = "rating"
	SortRecent SortOrder = "recent"
)

// SortOrders lists the orders in cycling sequence.
var SortOrders = []SortOrder{SortTitle, SortAuthor, SortRating, SortRecent}

// Prefs holds user preferences for shelf.
type Prefs struct {
	Theme string    `toml:"theme"`
	Sort  SortOrder `toml:"sort"`
}

const (
	defaultPrefsPath = "~/.config/shelf/prefs.toml"
	defaultTheme     = "Dracula"
	defaultSort      = SortTitle
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

func defaults() Prefs {
	return Prefs{Theme: defaultTheme, Sort: defaultSort}
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return defaults(), nil
	}

	prefs := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return defaults(), nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	if !prefs.Sort.Valid() {
		prefs.Sort = defaultSort
	}

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// Valid reports whether s is a known order.
func (s SortOrder) Valid() bool {
	for _, o := range SortOrders {
		if s == o {
			return true
		}
	}
	return false
}

// Next returns the order after s, wrapping around.
func (s SortOrder) Next() SortOrder {
	for i, o := range SortOrders {
		if s == o {
			return SortOrders[(i+1)%len(SortOrders)]
		}
	}
	return defaultSort
}

// Apply returns a sorted copy of books. Ties keep the collection order.
func (s SortOrder) Apply(books []library.Book) []library.Book {
	out := library.CloneBooks(books)
	var less func(a, b library.Book) bool
	switch s {
	case SortAuthor:
		less = func(a, b library.Book) bool { return strings.ToLower(a.Author) < strings.ToLower(b.Author) }
	case SortRating:
		less = func(a, b library.Book) bool { return a.Rating > b.Rating }
	case SortRecent:
		less = func(a, b library.Book) bool { return a.CreatedAt.After(b.CreatedAt) }
	default:
		less = func(a, b library.Book) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
