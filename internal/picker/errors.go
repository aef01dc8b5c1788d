package picker

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-picker/internal/credential"
)

var (
	// ErrAuthExpired is returned when the API rejects the bearer token. The
	// stored credential has already been cleared when it is returned.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrSessionTimedOut is returned by the poller when the session's
	// timeout elapses before the user finishes picking.
	ErrSessionTimedOut = errors.New("picking session timed out")

	// ErrAlreadyPolling is returned by Poller.Start while a loop is running.
	ErrAlreadyPolling = errors.New("poller is already running")
)

// Op identifies the Picker API call that failed.
type Op string

// Picker API operations.
const (
	OpCreateSession Op = "create_session"
	OpGetSession    Op = "get_session"
	OpListItems     Op = "list_items"
	OpDeleteSession Op = "delete_session"
)

// APIError is a non-2xx response from the Picker API.
type APIError struct {
	Op         Op
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// DownloadError is a non-2xx response when fetching an item's bytes.
type DownloadError struct {
	StatusCode int
	Message    string
	ItemLabel  string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed with status %d: %s", e.ItemLabel, e.StatusCode, e.Message)
}

// IsAuthError reports whether err means the credential is missing or was
// rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthExpired) || errors.Is(err, credential.ErrNotAuthenticated)
}
