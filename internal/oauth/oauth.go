// Package oauth implements the Google OAuth2 authorization-code flow and
// hands the resulting credential to the credential store.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/kozaktomas/photo-picker/internal/apierror"
	"github.com/kozaktomas/photo-picker/internal/config"
	"github.com/kozaktomas/photo-picker/internal/credential"
)

// ErrNoRefreshToken is returned by Refresh when the held credential has no
// refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

// ExchangeError is a non-2xx response from the token endpoint.
type ExchangeError struct {
	StatusCode int
	Message    string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Message)
}

// CredentialStore is the subset of credential.Store used by the client.
type CredentialStore interface {
	Set(ctx context.Context, cred *credential.Credential) error
	Get() *credential.Credential
	Clear(ctx context.Context) error
}

// Client builds authorization URLs and exchanges codes for credentials.
type Client struct {
	cfg        oauth2.Config
	store      CredentialStore
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the time source used to stamp issued credentials.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates an OAuth client for the given Google settings. Empty
// endpoint URLs fall back to Google's published endpoints.
func NewClient(cfg config.GoogleConfig, store CredentialStore, opts ...Option) *Client {
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// Client credentials go in the form body so a failed exchange is never retried with another auth style.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	c := &Client{
		cfg: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.GetClientSecret(),
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), cfg.Scopes...),
		},
		store:      store,
		httpClient: http.DefaultClient,
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RedirectURL resolves the callback URI for a caller origin such as
// "https://photos.example.com". The callback path of the configured default
// is kept; an empty or unparsable origin yields the default unchanged.
func (c *Client) RedirectURL(origin string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return c.cfg.RedirectURL
	}
	o, err := url.Parse(origin)
	if err != nil || o.Scheme == "" || o.Host == "" {
		return c.cfg.RedirectURL
	}

	path := "/"
	if def, err := url.Parse(c.cfg.RedirectURL); err == nil && def.Path != "" {
		path = def.Path
	}
	return (&url.URL{Scheme: o.Scheme, Host: o.Host, Path: path}).String()
}

// BuildAuthorizationURL returns the consent URL for state. Offline access
// and forced consent are always requested so every authorization yields a
// refresh token.
func (c *Client) BuildAuthorizationURL(state, origin string) string {
	cfg := c.cfg
	cfg.RedirectURL = c.RedirectURL(origin)
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for a credential and stores it.
// redirectURL must be the URI used to build the authorization URL; empty
// means the configured default.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURL string) (*credential.Credential, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("authorization code is required")
	}

	cfg := c.cfg
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}

	tok, err := cfg.Exchange(c.tokenContext(ctx), code)
	if err != nil {
		return nil, c.tokenError(err)
	}

	cred := toCredential(tok, "")
	cred.Stamp(c.now())
	if err := c.store.Set(ctx, cred); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}

	c.logger.Info().Time("expires_at", cred.ExpiresAt).Bool("refresh_token", cred.RefreshToken != "").Msg("authorization code exchanged")
	return cred, nil
}

// Refresh obtains a new access token with the stored refresh token. A
// rejected refresh clears the stored credential.
func (c *Client) Refresh(ctx context.Context) (*credential.Credential, error) {
	current := c.store.Get()
	if current == nil {
		return nil, credential.ErrNotAuthenticated
	}
	if current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	ts := c.cfg.TokenSource(c.tokenContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		exErr := c.tokenError(err)
		var ex *ExchangeError
		if errors.As(exErr, &ex) {
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				c.logger.Warn().Err(clearErr).Msg("failed to clear rejected credential")
			}
		}
		return nil, exErr
	}

	cred := toCredential(tok, current.Scope)
	if cred.RefreshToken == "" {
		cred.RefreshToken = current.RefreshToken
	}
	cred.Stamp(c.now())
	if err := c.store.Set(ctx, cred); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}

	c.logger.Info().Time("expires_at", cred.ExpiresAt).Msg("access token refreshed")
	return cred, nil
}

// Disconnect forgets the stored credential.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	c.logger.Info().Msg("disconnected")
	return nil
}

func (c *Client) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// tokenError converts a token endpoint failure into an ExchangeError when
// the server answered, and wraps transport errors otherwise.
func (c *Client) tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		msg := re.ErrorDescription
		if msg == "" {
			msg = apierror.Message(re.Response.StatusCode, re.Body)
		}
		return &ExchangeError{StatusCode: re.Response.StatusCode, Message: msg}
	}
	return fmt.Errorf("token request failed: %w", err)
}

func toCredential(tok *oauth2.Token, fallbackScope string) *credential.Credential {
	scope, _ := tok.Extra("scope").(string)
	if scope == "" {
		scope = fallbackScope
	}
	return &credential.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        scope,
		ExpiresIn:    tok.ExpiresIn,
	}
}
