// Package notion implements the sync target over the Notion API: the
// paginated identity listing the dedupe index is built from, and page
// creation and update for fetched records.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oncospatial/litsync/internal/dedupe"
	"github.com/oncospatial/litsync/internal/domain"
	"github.com/oncospatial/litsync/internal/sources"
)

const (
	// DefaultBaseURL is the Notion API base URL.
	DefaultBaseURL = "https://api.notion.com"

	// apiVersion is the Notion-Version header value.
	apiVersion = "2022-06-28"

	// DefaultRateLimit matches the API's advertised average of 3
	// requests per second per integration.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// queryPageSize is the page size for database query pagination.
	queryPageSize = 100

	// maxResponseBytes caps the response body size read per request.
	maxResponseBytes = 10 << 20

	// sourceName is the human-readable name for this target.
	sourceName = "Notion"
)

// Config holds the configuration for the Notion client.
type Config struct {
	// Token is the integration token. Required.
	Token string

	// DatabaseID is the target database. Required.
	DatabaseID string

	// BaseURL overrides the API base URL; used in tests.
	BaseURL string

	// Timeout is the request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize.
	BurstSize int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client talks to the Notion API.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// New creates a new Notion client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Headers: map[string]string{
			"Authorization":  "Bearer " + cfg.Token,
			"Notion-Version": apiVersion,
		},
	}

	return &Client{
		config:     cfg,
		httpClient: sources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new Notion client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// queryRequest is the body for the database query endpoint.
type queryRequest struct {
	PageSize    int    `json:"page_size,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
}

// queryResponse is the paginated response from the database query endpoint.
type queryResponse struct {
	Results    []pageObject `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// pageObject is one page in a query response, reduced to what the index
// needs.
type pageObject struct {
	ID         string                    `json:"id"`
	Properties map[string]propertyObject `json:"properties"`
}

// propertyObject is a loosely-typed page property value.
type propertyObject struct {
	Type     string           `json:"type"`
	RichText []richTextObject `json:"rich_text"`
	Date     *dateObject      `json:"date"`
	URL      string           `json:"url"`
}

// richTextObject is one span of a rich text property.
type richTextObject struct {
	PlainText string `json:"plain_text"`
}

// dateObject is a date property value.
type dateObject struct {
	Start string `json:"start"`
}

// plainText joins a rich text property into one string.
func (p *propertyObject) plainText() string {
	var b strings.Builder
	for _, rt := range p.RichText {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

// errorResponse is the API's error payload.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListEntries enumerates every page in the database and returns its
// identity projection. Pagination follows next_cursor until has_more is
// false; a large database costs one request per hundred pages.
func (c *Client) ListEntries(ctx context.Context) ([]dedupe.StoredEntry, error) {
	var entries []dedupe.StoredEntry
	cursor := ""

	for {
		reqBody := queryRequest{PageSize: queryPageSize, StartCursor: cursor}
		body, err := c.do(ctx, http.MethodPost,
			fmt.Sprintf("/v1/databases/%s/query", c.config.DatabaseID), reqBody)
		if err != nil {
			return nil, fmt.Errorf("database query failed: %w", err)
		}

		var resp queryResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse query response: %w", err)
		}

		for _, page := range resp.Results {
			entries = append(entries, pageToEntry(page))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			return entries, nil
		}
		cursor = resp.NextCursor
	}
}

// pageToEntry projects a page onto its identity fields.
func pageToEntry(page pageObject) dedupe.StoredEntry {
	entry := dedupe.StoredEntry{PageID: page.ID}

	if p, ok := page.Properties["DedupeKey"]; ok {
		entry.DedupeKey = p.plainText()
	}
	if p, ok := page.Properties["PMID"]; ok {
		entry.PMID = p.plainText()
	}
	if p, ok := page.Properties["DOI"]; ok {
		entry.DOI = p.plainText()
	}
	if p, ok := page.Properties["LastChecked"]; ok && p.Date != nil {
		if t, err := time.Parse(time.RFC3339, p.Date.Start); err == nil {
			entry.LastChecked = &t
		}
	}
	return entry
}

// CreatePage creates a page for the record and returns the new page ID.
func (c *Client) CreatePage(ctx context.Context, rec domain.Record, fields *domain.EnrichedFields) (string, error) {
	reqBody := map[string]any{
		"parent":     map[string]any{"database_id": c.config.DatabaseID},
		"properties": PageProperties(rec, fields, time.Now()),
	}

	body, err := c.do(ctx, http.MethodPost, "/v1/pages", reqBody)
	if err != nil {
		return "", fmt.Errorf("page create failed: %w", err)
	}

	var page pageObject
	if err := json.Unmarshal(body, &page); err != nil {
		return "", fmt.Errorf("failed to parse create response: %w", err)
	}
	return page.ID, nil
}

// UpdatePage refreshes an existing page with the record's current
// metadata and LastChecked timestamp. Annotation properties are touched
// only when fields is non-nil.
func (c *Client) UpdatePage(ctx context.Context, pageID string, rec domain.Record, fields *domain.EnrichedFields) error {
	reqBody := map[string]any{
		"properties": PageProperties(rec, fields, time.Now()),
	}

	if _, err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, reqBody); err != nil {
		return fmt.Errorf("page update failed: %w", err)
	}
	return nil
}

// do executes one API request and returns the response body. Rate
// limiting and Retry-After-aware retries happen inside the shared HTTP
// client; only terminal failures surface here.
func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		message := string(body)
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			message = errResp.Message
		}
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}
	return body, nil
}
