package library

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date encoded as YYYY-MM-DD on the wire.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string. Blank input yields the zero Date.
func ParseDate(value string) (Date, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return Date{Time: t}, nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. It also accepts full RFC3339
// timestamps since some endpoints return those for date fields.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t := parseTime(raw); !t.IsZero() {
		*d = Date{Time: t}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Book mirrors a record of the book collection.
type Book struct {
	ID            int64     `json:"id,omitempty"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	PublishedDate Date      `json:"published_date"`
	Rating        int       `json:"rating"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`

	// Correlation is set only on optimistic placeholders, which carry a
	// negative ID until the server assigns one.
	Correlation string `json:"-"`
}

// Pending reports whether b is an optimistic placeholder awaiting its server id.
func (b Book) Pending() bool {
	return b.ID < 0 || b.Correlation != ""
}

// BookInput is the writable subset of Book sent on create and update.
type BookInput struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedDate Date   `json:"published_date"`
	Rating        int    `json:"rating"`
	Description   string `json:"description,omitempty"`
}

// InputFrom extracts the writable fields of b.
func InputFrom(b Book) BookInput {
	return BookInput{
		Title:         b.Title,
		Author:        b.Author,
		PublishedDate: b.PublishedDate,
		Rating:        b.Rating,
		Description:   b.Description,
	}
}

// Apply returns b with the writable fields replaced by in. Identity and
// creation time are preserved.
func (in BookInput) Apply(b Book) Book {
	b.Title = in.Title
	b.Author = in.Author
	b.PublishedDate = in.PublishedDate
	b.Rating = in.Rating
	b.Description = in.Description
	return b
}

// Validate rejects input the collection service would refuse.
func (in BookInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, "title: required")
	}
	if strings.TrimSpace(in.Author) == "" {
		problems = append(problems, "author: required")
	}
	if in.PublishedDate.IsZero() {
		problems = append(problems, "published_date: required")
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		problems = append(problems, fmt.Sprintf("rating: must be between %d and %d", MinRating, MaxRating))
	}
	if len(problems) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Op: "validate book", Message: strings.Join(problems, "; ")}
}

// Rating bounds accepted by the collection service.
const (
	MinRating = 1
	MaxRating = 5
)

// Statistics mirrors /api/report/. It is derived server-side from the collection.
type Statistics struct {
	TotalBooks         int           `json:"total_books"`
	AverageRating      float64       `json:"average_rating"`
	TopAuthors         []AuthorCount `json:"top_authors"`
	RatingDistribution []RatingCount `json:"rating_distribution"`
}

// AuthorCount is one row of the top-authors ranking.
type AuthorCount struct {
	Author    string `json:"author"`
	BookCount int    `json:"book_count"`
}

// RatingCount is one bucket of the rating histogram.
type RatingCount struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

// Clone returns a deep copy of s.
func (s Statistics) Clone() Statistics {
	dup := s
	if s.TopAuthors != nil {
		dup.TopAuthors = append([]AuthorCount(nil), s.TopAuthors...)
	}
	if s.RatingDistribution != nil {
		dup.RatingDistribution = append([]RatingCount(nil), s.RatingDistribution...)
	}
	return dup
}

// VolumeInfo is the metadata record returned by the external lookup.
type VolumeInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"published_date"`
	Description   string   `json:"description"`
}

// AuthorLine joins the authors for display.
func (v VolumeInfo) AuthorLine() string {
	return strings.Join(v.Authors, ", ")
}

// LookupResult is the outcome of a metadata lookup.
type LookupResult struct {
	Found             bool
	Record            VolumeInfo
	SavedToCollection bool
}

// lookupResponse mirrors /api/fetch-book-info/{query}/.
type lookupResponse struct {
	VolumeInfo
	SavedToDB bool   `json:"saved_to_db"`
	Error     string `json:"error"`
}

// CloneBooks copies a book slice so callers cannot alias cached state.
func CloneBooks(books []Book) []Book {
	if books == nil {
		return nil
	}
	dup := make([]Book, len(books))
	copy(dup, books)
	return dup
}

// RecentCount counts books created within window of now.
func RecentCount(books []Book, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	count := 0
	for _, b := range books {
		if b.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
