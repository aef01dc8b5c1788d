// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// OAuth constants
const (
	// DefaultTokenType is used when the token endpoint omits token_type
	DefaultTokenType = "Bearer"

	// DefaultTokenLifetime is used when the token endpoint omits expires_in
	DefaultTokenLifetime = 3600 * time.Second

	// OAuthStateLifetime is how long an issued authorization state stays valid
	OAuthStateLifetime = 10 * time.Minute
)

// OAuthStateCookie binds an issued authorization state to the browser that
// asked for it.
const OAuthStateCookie = "picker_oauth_state"

// Picker constants
const (
	// DefaultPollInterval is used when the picking session has no recommended interval
	DefaultPollInterval = 2000 * time.Millisecond

	// DefaultPageSize is the default number of picked items to fetch per API page
	DefaultPageSize = 100

	// PhotoDownloadSuffix is appended to a photo base URL to request the original bytes
	PhotoDownloadSuffix = "=d"

	// VideoDownloadSuffix is appended to a video base URL to request the original bytes
	VideoDownloadSuffix = "=dv"
)

// Storage constants
const (
	// DefaultImageExtension is used when the original filename has no extension
	DefaultImageExtension = ".jpg"

	// SourceGooglePhotos tags records imported through the Google Photos picker
	SourceGooglePhotos = "google_photos_picker"

	// MetadataLockRetry is the delay between attempts to take the metadata file lock
	MetadataLockRetry = 25 * time.Millisecond
)

// Processing constants
const (
	// DefaultImportConcurrency keeps imports sequential unless configured otherwise
	DefaultImportConcurrency = 1

	// MaxImportConcurrency bounds outstanding downloads against the remote API
	MaxImportConcurrency = 8
)
