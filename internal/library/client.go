// Package library is the HTTP client and wire types for the book collection API.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BookService is the book collection collaborator.
type BookService interface {
	ListBooks(ctx context.Context) ([]Book, error)
	CreateBook(ctx context.Context, in BookInput) (Book, error)
	UpdateBook(ctx context.Context, id int64, in BookInput) (Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// StatsService is the read-only statistics collaborator.
type StatsService interface {
	FetchStats(ctx context.Context) (Statistics, error)
}

// LookupService is the external metadata lookup collaborator.
type LookupService interface {
	Lookup(ctx context.Context, query string, persist bool) (LookupResult, error)
}

// Ensure Client implements the collaborator interfaces at compile time.
var (
	_ BookService   = (*Client)(nil)
	_ StatsService  = (*Client)(nil)
	_ LookupService = (*Client)(nil)
)

// Client talks to the library HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	logger    *zap.Logger
}

// ClientOptions tune a Client. The zero value is usable.
type ClientOptions struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

const (
	defaultAPIBase   = "http://127.0.0.1:8000"
	defaultUserAgent = "shelf/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
)

// NewClient builds a Client for the API rooted at apiBase.
func NewClient(apiBase string, opts ClientOptions) (*Client, error) {
	base, err := parseBaseURL(apiBase)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent: defaultUserAgent,
		logger:    logger,
	}, nil
}

// ListBooks retrieves the whole collection.
func (c *Client) ListBooks(ctx context.Context) ([]Book, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []Book
	if err := c.do(ctx, "list books", http.MethodGet, "/api/books/", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CreateBook stores a new record and returns the server's authoritative copy.
func (c *Client) CreateBook(ctx context.Context, in BookInput) (Book, error) {
	if c == nil {
		return Book{}, fmt.Errorf("client is nil")
	}
	var payload Book
	if err := c.do(ctx, "create book", http.MethodPost, "/api/books/", in, &payload); err != nil {
		return Book{}, err
	}
	return payload, nil
}

// UpdateBook replaces the writable fields of book id.
func (c *Client) UpdateBook(ctx context.Context, id int64, in BookInput) (Book, error) {
	if c == nil {
		return Book{}, fmt.Errorf("client is nil")
	}
	var payload Book
	if err := c.do(ctx, "update book", http.MethodPut, bookPath(id), in, &payload); err != nil {
		return Book{}, err
	}
	return payload, nil
}

// DeleteBook removes book id.
func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, "delete book", http.MethodDelete, bookPath(id), nil, nil)
}

// FetchStats retrieves the aggregate report.
func (c *Client) FetchStats(ctx context.Context) (Statistics, error) {
	if c == nil {
		return Statistics{}, fmt.Errorf("client is nil")
	}
	var payload Statistics
	if err := c.do(ctx, "fetch stats", http.MethodGet, "/api/report/", nil, &payload); err != nil {
		return Statistics{}, err
	}
	return payload, nil
}

// Lookup asks the service to resolve query against the external metadata
// provider. With persist set the service also saves the match into the
// collection and reports so via SavedToCollection.
func (c *Client) Lookup(ctx context.Context, query string, persist bool) (LookupResult, error) {
	if c == nil {
		return LookupResult{}, fmt.Errorf("client is nil")
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return LookupResult{}, &Error{Kind: KindValidation, Op: "lookup", Message: "query is empty"}
	}
	rel := &url.URL{
		Path:    "/api/fetch-book-info/" + trimmed + "/",
		RawPath: "/api/fetch-book-info/" + url.PathEscape(trimmed) + "/",
	}
	if persist {
		rel.RawQuery = url.Values{"save": []string{"true"}}.Encode()
	}
	var payload lookupResponse
	if err := c.doURL(ctx, "lookup", http.MethodGet, rel, nil, &payload); err != nil {
		return LookupResult{}, err
	}
	if payload.Error != "" {
		return LookupResult{}, &Error{Kind: KindNotFound, Op: "lookup", Message: payload.Error}
	}
	return LookupResult{
		Found:             true,
		Record:            payload.VolumeInfo,
		SavedToCollection: payload.SavedToDB,
	}, nil
}

// ChartURL is the server-rendered rating chart download link.
func (c *Client) ChartURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL.ResolveReference(&url.URL{Path: "/api/chart/"}).String()
}

func bookPath(id int64) string {
	return "/api/books/" + strconv.FormatInt(id, 10) + "/"
}

func (c *Client) do(ctx context.Context, op, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, op, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, op, method string, rel *url.URL, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("op", op),
			zap.String("url", reqURL.String()),
			zap.Error(err))
		return &Error{Kind: KindNetwork, Op: op, Message: "execute request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request complete",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", reqURL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Kind:    kindForStatus(resp.StatusCode),
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(rel.Path, resp.StatusCode, raw),
		}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// errorMessage extracts the server's explanation from an error body so it can
// be surfaced verbatim.
func errorMessage(path string, status int, raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return fmt.Sprintf("api %s returned status %d", path, status)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return trimmed
	}
	for _, key := range []string{"error", "detail", "message"} {
		if v, ok := obj[key]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				return s
			}
		}
	}

	// Field-error maps: {"rating": ["Ensure this value is less than or equal to 5."]}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		var list []string
		if json.Unmarshal(obj[k], &list) == nil && len(list) > 0 {
			parts = append(parts, k+": "+strings.Join(list, " "))
			continue
		}
		var s string
		if json.Unmarshal(obj[k], &s) == nil && s != "" {
			parts = append(parts, k+": "+s)
		}
	}
	if len(parts) == 0 {
		return trimmed
	}
	return strings.Join(parts, "; ")
}

func parseBaseURL(apiBase string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBase)
	if trimmed == "" {
		trimmed = defaultAPIBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", apiBase, err)
	}
	u.Path = ""
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
