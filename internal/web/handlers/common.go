package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/imagestore"
	"github.com/kozaktomas/photo-picker/internal/oauth"
	"github.com/kozaktomas/photo-picker/internal/picker"
	"github.com/kozaktomas/photo-picker/internal/recognizer"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	var (
		exchangeErr   *oauth.ExchangeError
		apiErr        *picker.APIError
		downloadErr   *picker.DownloadError
		recognizerErr *recognizer.APIError
	)
	switch {
	case errors.Is(err, credential.ErrNotAuthenticated), errors.Is(err, picker.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, oauth.ErrNoRefreshToken):
		return http.StatusConflict
	case errors.Is(err, imagestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, imagestore.ErrFileMissing):
		return http.StatusGone
	case errors.Is(err, imagestore.ErrEmptyData):
		return http.StatusBadRequest
	case errors.Is(err, imagestore.ErrNoAnalyzer):
		return http.StatusServiceUnavailable
	case errors.Is(err, picker.ErrSessionTimedOut):
		return http.StatusGatewayTimeout
	case errors.As(err, &exchangeErr):
		return http.StatusBadGateway
	case errors.As(err, &apiErr), errors.As(err, &downloadErr), errors.As(err, &recognizerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with the status chosen by statusForError. Internal
// errors are logged and reported with a generic message; unknown images
// always get the same 404 body.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	switch status {
	case http.StatusInternalServerError:
		hlog.FromRequest(r).Error().Err(err).Str("path", sanitizeForLog(r.URL.Path)).Msg("request failed")
		respondError(w, status, "internal error")
	case http.StatusNotFound:
		respondError(w, status, imagestore.ErrNotFound.Error())
	default:
		respondError(w, status, err.Error())
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
