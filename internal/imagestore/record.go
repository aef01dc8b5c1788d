// Package imagestore keeps downloaded photos on disk together with a
// metadata collection describing them.
package imagestore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("image not found")

	// ErrFileMissing is returned when a record exists but its file is gone.
	ErrFileMissing = errors.New("image file missing")

	// ErrDuplicateID is returned when appending a record whose id is taken.
	ErrDuplicateID = errors.New("duplicate image id")

	// ErrEmptyData is returned when saving zero bytes.
	ErrEmptyData = errors.New("image data is empty")

	// ErrNoAnalyzer is returned by Analyze when no recognition service is set.
	ErrNoAnalyzer = errors.New("recognition service is not configured")
)

// Record describes one stored image. Records are never modified after
// they are written.
type Record struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Path             string    `json:"path"`
	CreatedAt        time.Time `json:"created_at"`
	Source           string    `json:"source"`
	ContentType      string    `json:"content_type,omitempty"`
	Size             int64     `json:"size"`
	Width            int       `json:"width,omitempty"`
	Height           int       `json:"height,omitempty"`
}

// MetadataRepository is the system of record for image metadata. List
// returns records in insertion order and an empty slice when nothing has
// been stored. Append must be safe for concurrent callers.
type MetadataRepository interface {
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Append(ctx context.Context, rec Record) error
}
