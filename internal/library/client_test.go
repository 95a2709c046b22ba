package library

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "127.0.0.1:8000", u.Host)

	u, err = parseBaseURL("example.com:1234/path?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:1234", u.String())
}

func newTestAPI(t *testing.T) (*Client, *mux.Router) {
	t.Helper()
	router := mux.NewRouter()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, ClientOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c, router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_BookEndpoints(t *testing.T) {
	t.Parallel()

	c, router := newTestAPI(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var gotCreate BookInput
	var gotUpdate BookInput
	var deleted string
	var userAgent string
	var contentType string

	router.HandleFunc("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		writeJSON(w, http.StatusOK, []Book{{ID: 1, Title: "A", Author: "X", Rating: 3, PublishedDate: MustDate("2001-02-03"), CreatedAt: created}})
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotCreate)
		writeJSON(w, http.StatusCreated, gotCreate.Apply(Book{ID: 2, CreatedAt: created}))
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/books/{id}/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotUpdate)
		writeJSON(w, http.StatusOK, gotUpdate.Apply(Book{ID: 7}))
	}).Methods(http.MethodPut)
	router.HandleFunc("/api/books/{id}/", func(w http.ResponseWriter, r *http.Request) {
		deleted = mux.Vars(r)["id"]
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	books, err := c.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, int64(1), books[0].ID)
	assert.Equal(t, "2001-02-03", books[0].PublishedDate.String())
	assert.True(t, books[0].CreatedAt.Equal(created))
	assert.True(t, strings.HasPrefix(userAgent, "shelf/"), "User-Agent = %q", userAgent)

	in := BookInput{Title: "B", Author: "Y", PublishedDate: MustDate("2020-01-01"), Rating: 4}
	book, err := c.CreateBook(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, in, gotCreate)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, int64(2), book.ID)
	assert.Equal(t, "B", book.Title)

	in.Rating = 5
	book, err = c.UpdateBook(ctx, 7, in)
	require.NoError(t, err)
	assert.Equal(t, 5, gotUpdate.Rating)
	assert.Equal(t, int64(7), book.ID)

	require.NoError(t, c.DeleteBook(ctx, 9))
	assert.Equal(t, "9", deleted)
}

func TestClient_FetchStats(t *testing.T) {
	t.Parallel()

	c, router := newTestAPI(t)
	router.HandleFunc("/api/report/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"total_books": 3,
			"average_rating": 4.33,
			"top_authors": [{"author": "X", "book_count": 2}, {"author": "Y", "book_count": 1}],
			"rating_distribution": [{"rating": 4, "count": 2}, {"rating": 5, "count": 1}]
		}`))
	})

	stats, err := c.FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBooks)
	assert.InDelta(t, 4.33, stats.AverageRating, 0.001)
	assert.Equal(t, []AuthorCount{{"X", 2}, {"Y", 1}}, stats.TopAuthors)
	assert.Equal(t, []RatingCount{{4, 2}, {5, 1}}, stats.RatingDistribution)
}

func TestClient_LookupEncodesQueryAndPersistFlag(t *testing.T) {
	t.Parallel()

	c, router := newTestAPI(t)
	var gotQuery, gotSave string
	router.HandleFunc("/api/fetch-book-info/{query}/", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = mux.Vars(r)["query"]
		gotSave = r.URL.Query().Get("save")
		writeJSON(w, http.StatusOK, map[string]any{
			"title":       "Dune",
			"authors":     []string{"Frank Herbert"},
			"saved_to_db": gotSave == "true",
		})
	})

	res, err := c.Lookup(context.Background(), "  dune messiah ", true)
	require.NoError(t, err)
	assert.Equal(t, "dune messiah", gotQuery)
	assert.Equal(t, "true", gotSave)
	assert.True(t, res.Found)
	assert.True(t, res.SavedToCollection)
	assert.Equal(t, "Frank Herbert", res.Record.AuthorLine())

	res, err = c.Lookup(context.Background(), "dune", false)
	require.NoError(t, err)
	assert.Empty(t, gotSave)
	assert.False(t, res.SavedToCollection)
}

func TestClient_LookupRejectsBlankQuery(t *testing.T) {
	c, err := NewClient("127.0.0.1:1", ClientOptions{})
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "   ", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	t.Parallel()

	c, router := newTestAPI(t)
	router.HandleFunc("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"rating": {"Ensure this value is less than or equal to 5."},
			"author": {"This field may not be blank."},
		})
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/books/{id}/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Book matches the given query."})
	}).Methods(http.MethodPut, http.MethodDelete)
	router.HandleFunc("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/report/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not-json"))
	})
	router.HandleFunc("/api/fetch-book-info/{query}/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No book found"})
	})

	ctx := context.Background()

	_, err := c.CreateBook(ctx, BookInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "author: This field may not be blank.; rating: Ensure this value is less than or equal to 5.")

	_, err = c.UpdateBook(ctx, 42, BookInput{})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "No Book matches the given query.")

	err = c.DeleteBook(ctx, 42)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = c.ListBooks(ctx)
	assert.True(t, errors.Is(err, ErrServer))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	_, err = c.FetchStats(ctx)
	assert.True(t, errors.Is(err, ErrServer))
	assert.Contains(t, err.Error(), "decode response")

	_, err = c.Lookup(ctx, "nothing", true)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "No book found")
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c, err := NewClient(addr, ClientOptions{Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.ListBooks(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.False(t, errors.Is(err, ErrServer))
}

func TestClient_ChartURL(t *testing.T) {
	c, err := NewClient("http://books.local:8000/ignored", ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, "http://books.local:8000/api/chart/", c.ChartURL())
}
