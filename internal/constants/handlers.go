// Package constants provides shared constants used across the codebase.
package constants

// Handler constants
const (
	// EventChannelBuffer is the buffer size for job event listener channels
	EventChannelBuffer = 100

	// MaxUploadSize bounds multipart image uploads (15 MB)
	MaxUploadSize = 15 << 20

	// MaxRequestBodySize bounds JSON request bodies
	MaxRequestBodySize = 1 << 20
)
