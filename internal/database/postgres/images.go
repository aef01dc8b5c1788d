package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-picker/internal/imagestore"
)

const imageColumns = `id, filename, original_filename, path, created_at, source, content_type, size, width, height`

// ImageRepository is a PostgreSQL-backed imagestore.MetadataRepository.
type ImageRepository struct {
	pool *Pool
}

// NewImageRepository creates a new PostgreSQL image metadata repository.
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// List returns all records in insertion order.
func (r *ImageRepository) List(ctx context.Context) ([]imagestore.Record, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+imageColumns+" FROM images ORDER BY seq")
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
	row := r.pool.QueryRow(ctx, "SELECT "+imageColumns+" FROM images WHERE id = $1", id)
	rec, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", imagestore.ErrNotFound, id)
	}
	return rec, err
}

// Append inserts rec; an existing id yields imagestore.ErrDuplicateID.
func (r *ImageRepository) Append(ctx context.Context, rec imagestore.Record) error {
	query := `
		INSERT INTO images (` + imageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		rec.ID, rec.Filename, rec.OriginalFilename, rec.Path, rec.CreatedAt.UTC(),
		rec.Source, rec.ContentType, rec.Size, rec.Width, rec.Height,
	)
	if err != nil {
		return fmt.Errorf("append image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", imagestore.ErrDuplicateID, rec.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*imagestore.Record, error) {
	var rec imagestore.Record
	err := s.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.OriginalFilename,
		&rec.Path,
		&rec.CreatedAt,
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
	return &rec, nil
}
