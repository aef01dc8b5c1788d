package imagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/fileutil"
)

// FileRepository keeps the metadata collection as a JSON array in one file.
// Appends are serialised in-process by a mutex and across processes by an
// advisory lock on "<path>.lock"; the file is replaced atomically so
// readers never take the lock.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a repository backed by the file at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// List returns all records; a missing file yields an empty list.
func (r *FileRepository) List(_ context.Context) ([]Record, error) {
	return r.load()
}

// Get returns the record with id or ErrNotFound.
func (r *FileRepository) Get(_ context.Context, id string) (*Record, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Append adds rec to the end of the collection.
func (r *FileRepository) Append(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := fileutil.Lock(ctx, r.path+".lock", constants.MetadataLockRetry)
	if err != nil {
		return err
	}
	defer unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.ID == rec.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := fileutil.WriteAtomic(r.path, data, 0o640); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (r *FileRepository) load() ([]Record, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	if len(data) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse metadata file: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
