package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/photo-picker/internal/imagestore"
)

const (
	imageColumns      = `id, filename, original_filename, path, created_at, source, content_type, size, width, height`
	errDuplicateEntry = 1062
)

// ImageRepository is a MariaDB-backed imagestore.MetadataRepository.
type ImageRepository struct {
	pool *Pool
}

// NewImageRepository creates a repository on an open pool.
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// List returns all records in insertion order.
func (r *ImageRepository) List(ctx context.Context) ([]imagestore.Record, error) {
	rows, err := r.pool.db.QueryContext(ctx, "SELECT "+imageColumns+" FROM images ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	records := []imagestore.Record{}
	for rows.Next() {
		var rec imagestore.Record
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.OriginalFilename, &rec.Path, &rec.CreatedAt,
			&rec.Source, &rec.ContentType, &rec.Size, &rec.Width, &rec.Height); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return records, nil
}

// Get returns the record with id or imagestore.ErrNotFound.
func (r *ImageRepository) Get(ctx context.Context, id string) (*imagestore.Record, error) {
	var rec imagestore.Record
	err := r.pool.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id).Scan(
		&rec.ID, &rec.Filename, &rec.OriginalFilename, &rec.Path, &rec.CreatedAt,
		&rec.Source, &rec.ContentType, &rec.Size, &rec.Width, &rec.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", imagestore.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &rec, nil
}

// Append inserts rec; an existing id yields imagestore.ErrDuplicateID.
func (r *ImageRepository) Append(ctx context.Context, rec imagestore.Record) error {
	query := `INSERT INTO images (` + imageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.pool.db.ExecContext(ctx, query,
		rec.ID, rec.Filename, rec.OriginalFilename, rec.Path, rec.CreatedAt.UTC(),
		rec.Source, rec.ContentType, rec.Size, rec.Width, rec.Height,
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
		return fmt.Errorf("%w: %s", imagestore.ErrDuplicateID, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("append image: %w", err)
	}
	return nil
}
