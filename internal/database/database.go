// Package database opens the credential and image metadata backends
// selected in the configuration.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-picker/internal/config"
	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/database/mariadb"
	"github.com/kozaktomas/photo-picker/internal/database/postgres"
	"github.com/kozaktomas/photo-picker/internal/database/sqlite"
	"github.com/kozaktomas/photo-picker/internal/imagestore"
)

// Backends holds the opened persistence layers. Close releases every
// connection that was opened for them.
type Backends struct {
	Credentials credential.Persister
	Images      imagestore.MetadataRepository

	closers []func() error
}

// Open connects the configured backends. A PostgreSQL pool is shared when
// both backends use it.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backends, error) {
	b := &Backends{}

	var pool *postgres.Pool
	if cfg.NeedsPostgres() {
		p, err := postgres.Open(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		pool = p
		b.closers = append(b.closers, p.Close)
	}

	switch cfg.Credentials.Backend {
	case config.BackendFile:
		b.Credentials = credential.NewFilePersister(cfg.Credentials.Path)
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.Credentials.RedisURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			b.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Credentials = credential.NewRedisPersister(client, cfg.Credentials.RedisKey)
	case config.BackendPostgres:
		b.Credentials = postgres.NewCredentialRepository(pool, postgres.DefaultCredentialName)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown credentials backend %q", cfg.Credentials.Backend)
	}

	switch cfg.Storage.MetadataBackend {
	case config.BackendFile:
		b.Images = imagestore.NewFileRepository(cfg.Storage.MetadataPath)
	case config.BackendPostgres:
		b.Images = postgres.NewImageRepository(pool)
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.Images = sqlite.NewImageRepository(db)
	case config.BackendMariaDB:
		p, err := mariadb.NewPool(cfg.Storage.MariaDBDSN)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, p.Close)
		b.Images = mariadb.NewImageRepository(p)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.Storage.MetadataBackend)
	}

	logger.Debug().
		Str("credentials", cfg.Credentials.Backend).
		Str("metadata", cfg.Storage.MetadataBackend).
		Msg("storage backends ready")
	return b, nil
}

// Close closes all opened connections in reverse order.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
