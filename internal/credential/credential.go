// Package credential holds the single OAuth credential used to talk to
// Google and persists it through a pluggable backend.
package credential

import (
	"errors"
	"time"

	"github.com/kozaktomas/photo-picker/internal/constants"
)

// ErrNotAuthenticated is returned when an operation needs a valid credential
// and none is held. It is checked locally and never costs a network call.
var ErrNotAuthenticated = errors.New("not authenticated")

// Credential is an OAuth access/refresh token pair plus its computed expiry.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresIn    int64     `json:"expires_in"` // lifetime in seconds, relative to IssuedAt
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Stamp fills in the defaults for fields the token endpoint may omit and
// computes ExpiresAt as issuedAt + ExpiresIn.
func (c *Credential) Stamp(issuedAt time.Time) {
	if c.TokenType == "" {
		c.TokenType = constants.DefaultTokenType
	}
	if c.ExpiresIn <= 0 {
		c.ExpiresIn = int64(constants.DefaultTokenLifetime / time.Second)
	}
	c.IssuedAt = issuedAt
	c.ExpiresAt = issuedAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}

// ExpiredAt reports whether the credential is expired at now. A credential
// without an expiry timestamp is always expired.
func (c *Credential) ExpiredAt(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// TokenSource yields the bearer token for outgoing API calls.
type TokenSource interface {
	AccessToken() (string, error)
}

// StaticToken is a TokenSource for a token supplied by the caller, such as
// the access token posted to the image creation endpoint.
type StaticToken string

// AccessToken returns the token, or ErrNotAuthenticated when it is empty.
func (t StaticToken) AccessToken() (string, error) {
	if t == "" {
		return "", ErrNotAuthenticated
	}
	return string(t), nil
}
