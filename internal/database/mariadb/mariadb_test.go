//go:build integration

package mariadb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/photo-picker/internal/imagestore"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_USER":          "test",
			"MARIADB_PASSWORD":      "test",
			"MARIADB_DATABASE":      "testdb",
			"MARIADB_ROOT_PASSWORD": "root",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("test:test@tcp(%s:%s)/testdb", host, port.Port())

	// The port opens before the server accepts logins during first init.
	var pool *Pool
	for range 30 {
		if pool, err = NewPool(dsn); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	return pool, func() {
		pool.Close()
		container.Terminate(ctx)
	}
}

func TestImageRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewImageRepository(pool)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"b", "a"} {
		err := repo.Append(ctx, imagestore.Record{
			ID:               id,
			Filename:         id + ".jpg",
			OriginalFilename: "Žluťoučký " + id + ".jpg",
			Path:             "/images/" + id + ".jpg",
			CreatedAt:        created,
			Source:           "google_photos_picker",
			Size:             10,
		})
		if err != nil {
			t.Fatalf("Failed to append %s: %v", id, err)
		}
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 2 || records[0].ID != "b" {
		t.Fatalf("Expected insertion order, got %+v", records)
	}

	rec, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if rec.OriginalFilename != "Žluťoučký a.jpg" || !rec.CreatedAt.Equal(created) {
		t.Errorf("Unexpected record %+v", rec)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, imagestore.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := repo.Append(ctx, imagestore.Record{ID: "a", CreatedAt: created}); !errors.Is(err, imagestore.ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
}
