package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"

	// maxRetries bounds how many times a single API call is attempted
	// when the workspace is rate limited.
	maxRetries = 5

	// initialBackoff is the first retry delay when the 429 response
	// carries no usable Retry-After header. Subsequent delays double,
	// capped at maxBackoff.
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second

	// pageSize is the Notion API maximum for paginated list endpoints.
	pageSize = 100
)

// Config carries the settings for a Client.
type Config struct {
	// Token is the Notion integration token.
	Token string

	// BaseURL overrides the Notion API endpoint, primarily for tests.
	// Defaults to the public API when empty.
	BaseURL string

	// RateLimit is the sustained requests-per-second budget. The client
	// never exceeds it regardless of caller concurrency.
	RateLimit float64

	// BlockBatchSize caps how many blocks a single append call carries.
	BlockBatchSize int

	// HTTPClient overrides the underlying HTTP client, primarily for
	// tests. A default with a 30s timeout is used when nil.
	HTTPClient *http.Client
}

// Client is a rate-limited Notion API client. Every request first waits
// on the shared token bucket, then retries on 429 responses with the
// server-suggested delay when present. All other API errors surface to
// the caller unchanged.
type Client struct {
	baseURL    string
	token      string
	batchSize  int
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Notion client from the given config.
// If logger is nil, a default logger will be used.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 3
	}

	batchSize := cfg.BlockBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		batchSize:  batchSize,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "notion_client")),
	}
}

// do performs one API call with rate limiting and 429 retry. body is
// JSON-encoded when non-nil; the response is decoded into out when
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	backoff := initialBackoff
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", apiVersion)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			delay := backoff
			if header := resp.Header.Get("Retry-After"); header != "" {
				if seconds, parseErr := strconv.ParseFloat(header, 64); parseErr == nil {
					delay = time.Duration(seconds * float64(time.Second))
				}
			}
			c.logger.Warn("rate limited by notion api",
				slog.Duration("retry_in", delay),
				slog.Int("attempt", attempt))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		return decodeResponse(resp, out)
	}

	return ErrRetriesExhausted
}

// decodeResponse consumes the response body, mapping non-2xx statuses to
// an APIError.
func decodeResponse(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = "failed to decode error response"
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode notion response: %w", err)
	}
	return nil
}

// listResponse is the envelope of paginated list endpoints.
type listResponse[T any] struct {
	Results    []T    `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// GetPage retrieves a page with its property map.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/pages/"+pageID, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// createPageRequest is the payload for page creation under either parent
// kind.
type createPageRequest struct {
	Parent     Parent                   `json:"parent"`
	Properties map[string]PropertyValue `json:"properties"`
	Icon       *Icon                    `json:"icon,omitempty"`
	Children   []Block                  `json:"children,omitempty"`
}

// CreatePage creates a page under a parent page with the given title,
// extra properties, and optional emoji icon.
func (c *Client) CreatePage(
	ctx context.Context,
	parentPageID, title string,
	properties map[string]PropertyValue,
	icon string,
) (*Page, error) {
	props := map[string]PropertyValue{
		"title": TitleProperty(title),
	}
	for name, value := range properties {
		props[name] = value
	}

	req := createPageRequest{
		Parent:     Parent{Type: "page_id", PageID: parentPageID},
		Properties: props,
	}
	if icon != "" {
		req.Icon = &Icon{Type: "emoji", Emoji: icon}
	}

	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", req, &page); err != nil {
		return nil, err
	}

	c.logger.Debug("page created",
		slog.String("page_id", page.ID),
		slog.String("title", title))
	return &page, nil
}

// CreateDatabasePage creates a row in a database with the given
// properties.
func (c *Client) CreateDatabasePage(
	ctx context.Context,
	databaseID string,
	properties map[string]PropertyValue,
) (*Page, error) {
	req := createPageRequest{
		Parent:     Parent{Type: "database_id", DatabaseID: databaseID},
		Properties: properties,
	}

	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdatePageProperties patches the given properties on a page.
func (c *Client) UpdatePageProperties(
	ctx context.Context,
	pageID string,
	properties map[string]PropertyValue,
) (*Page, error) {
	req := struct {
		Properties map[string]PropertyValue `json:"properties"`
	}{Properties: properties}

	var page Page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetBlocks fetches the full block tree under the given block or page.
// Nested children are attached to their parent's Children field. The
// traversal uses an explicit work stack, so arbitrarily deep documents
// cannot exhaust the call stack.
func (c *Client) GetBlocks(ctx context.Context, blockID string) ([]Block, error) {
	top, err := c.listChildren(ctx, blockID)
	if err != nil {
		return nil, err
	}

	stack := make([]*Block, 0, len(top))
	for i := range top {
		if top[i].HasChildren {
			stack = append(stack, &top[i])
		}
	}

	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := c.listChildren(ctx, parent.ID)
		if err != nil {
			return nil, err
		}
		parent.Children = children

		for i := range parent.Children {
			if parent.Children[i].HasChildren {
				stack = append(stack, &parent.Children[i])
			}
		}
	}

	return top, nil
}

// listChildren fetches one level of children, following pagination
// cursors until exhausted.
func (c *Client) listChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		path := fmt.Sprintf("/blocks/%s/children?page_size=%d", blockID, pageSize)
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}

		var resp listResponse[Block]
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}

		blocks = append(blocks, resp.Results...)
		if !resp.HasMore {
			return blocks, nil
		}
		cursor = resp.NextCursor
	}
}

// AppendBlocks appends blocks under a parent, splitting them into
// batches no larger than the configured batch size. Returns the created
// blocks in order.
func (c *Client) AppendBlocks(ctx context.Context, parentID string, blocks []Block) ([]Block, error) {
	var created []Block
	for start := 0; start < len(blocks); start += c.batchSize {
		end := start + c.batchSize
		if end > len(blocks) {
			end = len(blocks)
		}

		req := struct {
			Children []Block `json:"children"`
		}{Children: blocks[start:end]}

		var resp listResponse[Block]
		err := c.do(ctx, http.MethodPatch, "/blocks/"+parentID+"/children", req, &resp)
		if err != nil {
			return nil, err
		}
		created = append(created, resp.Results...)
	}
	return created, nil
}

// DeleteChildren removes every top-level block under a page, leaving the
// page itself in place.
func (c *Client) DeleteChildren(ctx context.Context, pageID string) error {
	blocks, err := c.listChildren(ctx, pageID)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		if err := c.do(ctx, http.MethodDelete, "/blocks/"+block.ID, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// QueryDatabase queries a database with an optional filter and sorts,
// following pagination until all matching pages are collected.
func (c *Client) QueryDatabase(
	ctx context.Context,
	databaseID string,
	filter any,
	sorts []map[string]string,
) ([]Page, error) {
	var pages []Page
	cursor := ""
	for {
		req := map[string]any{"page_size": pageSize}
		if filter != nil {
			req["filter"] = filter
		}
		if len(sorts) > 0 {
			req["sorts"] = sorts
		}
		if cursor != "" {
			req["start_cursor"] = cursor
		}

		var resp listResponse[Page]
		err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", req, &resp)
		if err != nil {
			return nil, err
		}

		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
