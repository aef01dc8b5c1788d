package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/photo-picker/internal/imagestore"
)

const imageColumns = `id, filename, original_filename, path, created_at, source, content_type, size, width, height`

// ImageRepository is a SQLite-backed imagestore.MetadataRepository.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a repository on an open database.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// List returns all records in insertion order.
func (r *ImageRepository) List(ctx context.Context) ([]imagestore.Record, error) {
	rows, err := r.db.db.QueryContext(ctx, "SELECT "+imageColumns+" FROM images ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	records := []imagestore.Record{}
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return records, nil
}

// Get returns the record with id or imagestore.ErrNotFound.
func (r *ImageRepository) Get(ctx context.Context, id string) (*imagestore.Record, error) {
	row := r.db.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id)
	rec, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", imagestore.ErrNotFound, id)
	}
	return rec, err
}

// Append inserts rec; an existing id yields imagestore.ErrDuplicateID.
func (r *ImageRepository) Append(ctx context.Context, rec imagestore.Record) error {
	query := `INSERT INTO images (` + imageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`

	var inserted int64
	err := retryOnBusy(ctx, func() error {
		result, err := r.db.db.ExecContext(ctx, query,
			rec.ID, rec.Filename, rec.OriginalFilename, rec.Path,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			rec.Source, rec.ContentType, rec.Size, rec.Width, rec.Height,
		)
		if err != nil {
			return err
		}
		inserted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("append image: %w", err)
	}
	if inserted == 0 {
		return fmt.Errorf("%w: %s", imagestore.ErrDuplicateID, rec.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*imagestore.Record, error) {
	var (
		rec     imagestore.Record
		created string
	)
	err := s.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.OriginalFilename,
		&rec.Path,
		&created,
		&rec.Source,
		&rec.ContentType,
		&rec.Size,
		&rec.Width,
		&rec.Height,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan image: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
