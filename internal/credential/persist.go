package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/fileutil"
)

// FilePersister stores the credential as a 0600 JSON file.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load reads the stored payload; a missing file is not an error.
func (p *FilePersister) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	return data, nil
}

// Save atomically replaces the credential file.
func (p *FilePersister) Save(ctx context.Context, data []byte) error {
	unlock, err := fileutil.Lock(ctx, p.path+".lock", constants.MetadataLockRetry)
	if err != nil {
		return err
	}
	defer unlock()

	return fileutil.WriteAtomic(p.path, data, 0o600)
}

// Delete removes the credential file; a missing file is not an error.
func (p *FilePersister) Delete(ctx context.Context) error {
	unlock, err := fileutil.Lock(ctx, p.path+".lock", constants.MetadataLockRetry)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

// RedisPersister stores the credential under a single Redis key.
type RedisPersister struct {
	client redis.Cmdable
	key    string
}

// NewRedisPersister returns a persister using key on client.
func NewRedisPersister(client redis.Cmdable, key string) *RedisPersister {
	return &RedisPersister{client: client, key: key}
}

// Load returns nil, nil when the key does not exist.
func (p *RedisPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", p.key, err)
	}
	return data, nil
}

// Save stores the payload without a TTL.
func (p *RedisPersister) Save(ctx context.Context, data []byte) error {
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p.key, err)
	}
	return nil
}

// Delete removes the key.
func (p *RedisPersister) Delete(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", p.key, err)
	}
	return nil
}
