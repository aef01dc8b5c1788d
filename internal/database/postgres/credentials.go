package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultCredentialName is the row used when a single account is stored.
const DefaultCredentialName = "default"

// CredentialRepository stores a serialised credential in one row of the
// credentials table.
type CredentialRepository struct {
	pool *Pool
	name string
}

// NewCredentialRepository creates a repository for the named credential row.
func NewCredentialRepository(pool *Pool, name string) *CredentialRepository {
	if name == "" {
		name = DefaultCredentialName
	}
	return &CredentialRepository{pool: pool, name: name}
}

// Load returns the stored payload, or nil when the row does not exist.
func (r *CredentialRepository) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, "SELECT payload FROM credentials WHERE name = $1", r.name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return payload, nil
}

// Save replaces the stored payload.
func (r *CredentialRepository) Save(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO credentials (name, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.Exec(ctx, query, r.name, string(data)); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Delete removes the row; deleting a missing row is not an error.
func (r *CredentialRepository) Delete(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM credentials WHERE name = $1", r.name); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
