// Package picker talks to the Google Photos Picker API: picking sessions,
// picked items, polling for completion and downloading item bytes.
package picker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/credential"
)

// Credentials supplies the bearer token and is cleared when the API
// rejects it. *credential.Store satisfies it.
type Credentials interface {
	credential.TokenSource
	Clear(ctx context.Context) error
}

// Client is a Picker API client bound to one credential store.
type Client struct {
	baseURL    *url.URL
	creds      Credentials
	httpClient *http.Client
	pageSize   int
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageSize sets the page size requested when listing items.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid picker API URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid picker API URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:    parsed,
		creds:      creds,
		httpClient: http.DefaultClient,
		pageSize:   constants.DefaultPageSize,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSession starts a new picking session.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	session, err := doJSON[Session](ctx, c, OpCreateSession, http.MethodPost, "sessions", nil, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("session_id", session.ID).Msg("picking session created")
	return session, nil
}

// GetSession fetches the current state of a session.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	return doJSON[Session](ctx, c, OpGetSession, http.MethodGet, "sessions/"+url.PathEscape(id), nil, http.StatusOK)
}

// ListPickedItems returns one page of the items picked in a session. An
// empty pageToken requests the first page.
func (c *Client) ListPickedItems(ctx context.Context, sessionID, pageToken string) (*ItemsPage, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	query := url.Values{}
	query.Set("sessionId", sessionID)
	query.Set("pageSize", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	resp, err := doJSON[itemsResponse](ctx, c, OpListItems, http.MethodGet, "mediaItems", query, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return resp.toPage(), nil
}

// ListAllPickedItems follows page tokens until every picked item is read.
func (c *Client) ListAllPickedItems(ctx context.Context, sessionID string) ([]PickedMediaItem, error) {
	var (
		all       []PickedMediaItem
		pageToken string
		seen      = map[string]bool{}
	)
	for {
		page, err := c.ListPickedItems(ctx, sessionID, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.NextPageToken == "" || seen[page.NextPageToken] {
			break
		}
		seen[page.NextPageToken] = true
		pageToken = page.NextPageToken
	}

	c.logger.Debug().Str("session_id", sessionID).Int("items", len(all)).Msg("listed picked items")
	return all, nil
}

// DeleteSession removes a session. It is cleanup: it is a no-op without a
// credential, and failures are logged and never returned.
func (c *Client) DeleteSession(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if _, err := c.creds.AccessToken(); err != nil {
		return
	}

	err := doRequestRaw(ctx, c, OpDeleteSession, http.MethodDelete, "sessions/"+url.PathEscape(id), http.StatusOK, http.StatusNoContent)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", id).Msg("failed to delete picking session")
		return
	}
	c.logger.Debug().Str("session_id", id).Msg("picking session deleted")
}
