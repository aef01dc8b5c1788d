package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for DecodeConfig
	_ "image/jpeg" // register decoder for DecodeConfig
	_ "image/png"  // register decoder for DecodeConfig
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"  // register decoder for DecodeConfig
	_ "golang.org/x/image/tiff" // register decoder for DecodeConfig
	_ "golang.org/x/image/webp" // register decoder for DecodeConfig

	"github.com/kozaktomas/photo-picker/internal/fileutil"
	"github.com/kozaktomas/photo-picker/internal/recognizer"
)

// Analyzer forwards image bytes to the recognition service.
type Analyzer interface {
	Recognize(ctx context.Context, filename string, data []byte) ([]recognizer.Result, error)
}

// Store writes image files under one directory and their metadata to a
// MetadataRepository.
type Store struct {
	dir      string
	repo     MetadataRepository
	analyzer Analyzer
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithAnalyzer sets the recognition client used by Analyze.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Store) { s.analyzer = a }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, repo MetadataRepository, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// List returns every stored record in insertion order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Get returns the record with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.repo.Get(ctx, id)
}

// Save writes data to a new file and appends its record. originalFilename
// only contributes its extension to the storage name.
func (s *Store) Save(ctx context.Context, originalFilename string, data []byte, source string) (*Record, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	id := s.newID()
	name := id + extensionFor(originalFilename)
	path := filepath.Join(s.dir, name)

	if err := fileutil.WriteAtomic(path, data, 0o640); err != nil {
		return nil, fmt.Errorf("writing image file: %w", err)
	}

	rec := Record{
		ID:               id,
		Filename:         name,
		OriginalFilename: NormalizeFilename(originalFilename),
		Path:             path,
		CreatedAt:        s.now(),
		Source:           source,
		ContentType:      http.DetectContentType(data),
		Size:             int64(len(data)),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		rec.Width, rec.Height = cfg.Width, cfg.Height
	}

	if err := s.repo.Append(ctx, rec); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("path", path).Msg("failed to remove orphaned image file")
		}
		return nil, fmt.Errorf("saving image metadata: %w", err)
	}

	s.logger.Info().Str("id", id).Str("original", rec.OriginalFilename).Int64("bytes", rec.Size).Msg("image saved")
	return &rec, nil
}

// Open returns the record and file content for id. It fails with
// ErrNotFound for an unknown id and ErrFileMissing when the file is gone.
func (s *Store) Open(ctx context.Context, id string) (*Record, []byte, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rec, nil, fmt.Errorf("%w: %s", ErrFileMissing, rec.Filename)
		}
		return rec, nil, fmt.Errorf("reading image file: %w", err)
	}
	return rec, data, nil
}

// Analyze sends the stored image to the recognition service and returns
// its results unchanged.
func (s *Store) Analyze(ctx context.Context, id string) ([]recognizer.Result, error) {
	if s.analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	rec, data, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}

	results, err := s.analyzer.Recognize(ctx, rec.Filename, data)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", id, err)
	}
	s.logger.Debug().Str("id", id).Int("faces", len(results)).Msg("image analyzed")
	return results, nil
}
