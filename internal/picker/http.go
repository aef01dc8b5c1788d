package picker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/kozaktomas/photo-picker/internal/apierror"
)

// doJSON performs an authenticated request against the Picker API and
// unmarshals the JSON response into T. The token is checked before any
// network call; a 401 clears the stored credential and returns
// ErrAuthExpired.
func doJSON[T any](ctx context.Context, c *Client, op Op, method, endpoint string, query url.Values, expectedStatuses ...int) (*T, error) {
	resp, err := c.do(ctx, op, method, endpoint, query, expectedStatuses...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: could not read response body: %w", op, err)
	}

	var result T
	if len(body) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%s: could not unmarshal response: %w", op, err)
	}
	return &result, nil
}

// doRequestRaw performs a request whose response body is ignored.
func doRequestRaw(ctx context.Context, c *Client, op Op, method, endpoint string, expectedStatuses ...int) error {
	resp, err := c.do(ctx, op, method, endpoint, nil, expectedStatuses...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, op Op, method, endpoint string, query url.Values, expectedStatuses ...int) (*http.Response, error) {
	token, err := c.creds.AccessToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(endpoint, query), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: could not create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from the configured API base via resolveURL
	if err != nil {
		return nil, fmt.Errorf("%s: could not send request: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.clearAuth(ctx, op)
		return nil, fmt.Errorf("%s: %w", op, ErrAuthExpired)
	}
	if !slices.Contains(expectedStatuses, resp.StatusCode) {
		defer resp.Body.Close()
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: apierror.Read(resp.StatusCode, resp.Body)}
	}
	return resp, nil
}

func (c *Client) clearAuth(ctx context.Context, op Op) {
	c.logger.Warn().Str("op", string(op)).Msg("picker API rejected the access token, clearing credential")
	if err := c.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear rejected credential")
	}
}

// resolveURL joins endpoint onto the API base URL and attaches the query.
func (c *Client) resolveURL(endpoint string, query url.Values) string {
	u := c.baseURL.JoinPath(endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
