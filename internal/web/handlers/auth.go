package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/web/middleware"
)

// OAuthClient is the authorization flow used by AuthHandler.
type OAuthClient interface {
	RedirectURL(origin string) string
	BuildAuthorizationURL(state, origin string) string
	ExchangeCode(ctx context.Context, code, redirectURL string) (*credential.Credential, error)
	Refresh(ctx context.Context) (*credential.Credential, error)
	Disconnect(ctx context.Context) error
}

// CredentialReader exposes the stored credential state.
type CredentialReader interface {
	Get() *credential.Credential
	IsValid() bool
}

// AuthHandler handles Google authorization endpoints
type AuthHandler struct {
	client OAuthClient
	store  CredentialReader
	states *middleware.StateManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(client OAuthClient, store CredentialReader, states *middleware.StateManager) *AuthHandler {
	return &AuthHandler{
		client: client,
		store:  store,
		states: states,
	}
}

// AuthURLResponse is returned by the authorization URL endpoint.
type AuthURLResponse struct {
	URL         string `json:"url"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
}

// AuthStatusResponse describes the stored credential.
type AuthStatusResponse struct {
	Authenticated   bool       `json:"authenticated"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Scope           string     `json:"scope,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
}

// URL returns the Google consent URL. The redirect URI is derived from the
// request Origin when present. The state is also set as a cookie, and the
// callback only accepts it from the same browser.
func (h *AuthHandler) URL(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	redirectURI := h.client.RedirectURL(origin)

	state, err := h.states.Issue(r.URL.Query().Get("state"), redirectURI)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}
	setStateCookie(w, r, state, int(constants.OAuthStateLifetime.Seconds()))

	respondJSON(w, http.StatusOK, AuthURLResponse{
		URL:         h.client.BuildAuthorizationURL(state, origin),
		State:       state,
		RedirectURI: redirectURI,
	})
}

// Callback exchanges the authorization code returned by Google.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		respondError(w, http.StatusBadRequest, "authorization denied: "+errCode)
		return
	}

	code := q.Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	state := q.Get("state")
	cookie, err := r.Cookie(constants.OAuthStateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		respondError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}
	redirectURI, ok := h.states.Consume(state)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}
	setStateCookie(w, r, "", -1)

	cred, err := h.client.ExchangeCode(r.Context(), code, redirectURI)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("authorization code exchange failed")
		respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, statusFor(cred, true))
}

// Status reports whether a valid credential is stored.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusFor(h.store.Get(), h.store.IsValid()))
}

// Logout forgets the stored credential.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Disconnect(r.Context()); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: false})
}

// Refresh obtains a new access token with the stored refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cred, err := h.client.Refresh(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, statusFor(cred, true))
}

// setStateCookie stores state for the callback. SameSite=Lax keeps
// cross-site subrequests from planting it while still sending it on the
// top-level redirect back from Google. A negative maxAge deletes it.
func setStateCookie(w http.ResponseWriter, r *http.Request, state string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     constants.OAuthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func statusFor(cred *credential.Credential, valid bool) AuthStatusResponse {
	if cred == nil {
		return AuthStatusResponse{}
	}
	expiresAt := cred.ExpiresAt
	return AuthStatusResponse{
		Authenticated:   valid,
		ExpiresAt:       &expiresAt,
		Scope:           cred.Scope,
		HasRefreshToken: cred.RefreshToken != "",
	}
}
