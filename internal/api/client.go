// Package api is the REST side of a live table: the paginated fetch, the
// create/update/delete mutations, the batched sort update and the routing of
// mutation results to field handlers and toasts.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"

	"github.com/studiowebux/tablesync/internal/types"
)

// DefaultTimeout bounds a single REST call
const DefaultTimeout = 30 * time.Second

var (
	// ErrUnauthorized is returned when a request is rejected with 401 and the
	// token could not be refreshed
	ErrUnauthorized = errors.New("unauthorized")
)

// Refresher renews the access token after a 401
type Refresher interface {
	RefreshToken(ctx context.Context) error
}

// StatusError is a non-2xx response without a mutation result body
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error! Status: %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Client talks to the table REST endpoints
type Client struct {
	baseURL string
	http    *http.Client
	auth    Refresher
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client, typically one that adds the
// bearer token
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRefresher enables one token refresh and retry on 401
func WithRefresher(r Refresher) Option {
	return func(cl *Client) { cl.auth = r }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a client for the API at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch loads one page of a resource. recordsPath is a JMESPath expression
// selecting the record array in the response body.
func (c *Client) Fetch(ctx context.Context, resource, recordsPath string, p types.QueryParams) (types.Page, error) {
	q := url.Values{}
	q.Set("searchQuery", p.SearchText)
	q.Set("currentPage", strconv.Itoa(p.Page))
	q.Set("itemsPerPage", strconv.Itoa(p.PageSize))

	status, body, err := c.do(ctx, http.MethodGet, resource+"?"+q.Encode(), nil)
	if err != nil {
		return types.Page{}, err
	}
	if status < 200 || status >= 300 {
		return types.Page{}, &StatusError{Status: status, Body: strings.TrimSpace(string(body))}
	}

	return ParsePage(body, recordsPath)
}

// Fetcher binds Fetch to one resource
func (c *Client) Fetcher(resource, recordsPath string) func(context.Context, types.QueryParams) (types.Page, error) {
	return func(ctx context.Context, p types.QueryParams) (types.Page, error) {
		return c.Fetch(ctx, resource, recordsPath, p)
	}
}

// ParsePage decodes a list response
func ParsePage(body []byte, recordsPath string) (types.Page, error) {
	var data interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&data); err != nil {
		return types.Page{}, fmt.Errorf("failed to parse response: %w", err)
	}

	result, err := jmespath.Search(recordsPath, data)
	if err != nil {
		return types.Page{}, fmt.Errorf("invalid records path %q: %w", recordsPath, err)
	}
	if result == nil {
		return types.Page{}, fmt.Errorf("records path %q not found in response", recordsPath)
	}

	items, ok := result.([]interface{})
	if !ok {
		return types.Page{}, fmt.Errorf("records path %q is not an array", recordsPath)
	}

	rows, err := ToRecordSet(items)
	if err != nil {
		return types.Page{}, err
	}

	page := types.Page{Rows: rows, TotalCount: len(rows)}
	if obj, ok := data.(map[string]interface{}); ok {
		if total, ok := obj["totalCount"].(float64); ok {
			page.TotalCount = int(total)
		}
	}
	return page, nil
}

// ToRecordSet converts decoded JSON items into records
func ToRecordSet(items []interface{}) (types.RecordSet, error) {
	rows := make(types.RecordSet, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		rows = append(rows, types.Record(obj))
	}
	if err := rows.Validate(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Create posts a new record
func (c *Client) Create(ctx context.Context, resource string, rec types.Record) (types.APIResult, error) {
	return c.mutate(ctx, http.MethodPost, resource, rec)
}

// Update replaces the record with the given id
func (c *Client) Update(ctx context.Context, resource string, id types.ID, rec types.Record) (types.APIResult, error) {
	return c.mutate(ctx, http.MethodPut, resource+"/"+url.PathEscape(string(id)), rec)
}

// Delete removes the record with the given id
func (c *Client) Delete(ctx context.Context, resource string, id types.ID) (types.APIResult, error) {
	return c.mutate(ctx, http.MethodDelete, resource+"/"+url.PathEscape(string(id)), nil)
}

// Sort persists a full sort assignment in one call
func (c *Client) Sort(ctx context.Context, resource string, assignments []types.SortAssignment) (types.APIResult, error) {
	return c.mutate(ctx, http.MethodPut, resource+"/sort", assignments)
}

func (c *Client) mutate(ctx context.Context, method, path string, payload interface{}) (types.APIResult, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return types.APIResult{}, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	status, respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return types.APIResult{}, err
	}

	// Failed mutations still carry {success, message, field}
	var result types.APIResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		if status < 200 || status >= 300 {
			return types.APIResult{}, &StatusError{Status: status, Body: strings.TrimSpace(string(respBody))}
		}
		return types.APIResult{}, fmt.Errorf("failed to parse result: %w", err)
	}
	if status < 200 || status >= 300 {
		result.Success = false
		if result.Message == "" {
			result.Message = (&StatusError{Status: status}).Error()
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	status, respBody, err := c.send(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}

	if status == http.StatusUnauthorized && c.auth != nil {
		c.logger.Debug("request unauthorized, refreshing token", "method", method, "path", path)
		if err := c.auth.RefreshToken(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		status, respBody, err = c.send(ctx, method, path, body)
		if err != nil {
			return 0, nil, err
		}
	}

	if status == http.StatusUnauthorized {
		return 0, nil, ErrUnauthorized
	}
	return status, respBody, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
