package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Persister is the durable storage behind a Store. Load returns nil, nil
// when nothing has been persisted yet.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// Store owns the current credential. Every Set and Clear writes through to
// the persister; readers always observe a consistent snapshot.
type Store struct {
	mu        sync.RWMutex
	cred      *Credential
	persister Persister
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store and restores any persisted credential. A payload
// that cannot be parsed is discarded and deleted from storage, leaving the
// store unauthenticated. A nil persister keeps the credential in memory only.
func NewStore(ctx context.Context, persister Persister, opts ...Option) (*Store, error) {
	s := &Store{
		persister: persister,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	data, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.AccessToken == "" {
		s.logger.Warn().Err(err).Msg("discarding unreadable stored credential")
		if err := s.persister.Delete(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete unreadable stored credential")
		}
		return nil
	}

	s.cred = &cred
	s.logger.Debug().Time("expires_at", cred.ExpiresAt).Msg("restored stored credential")
	return nil
}

// Set replaces the held credential and persists it. The in-memory value is
// replaced even when persisting fails; the error is still returned.
func (s *Store) Set(ctx context.Context, cred *Credential) error {
	if cred == nil {
		return fmt.Errorf("credential is nil")
	}
	stored := *cred

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &stored

	if s.persister == nil {
		return nil
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := s.persister.Save(ctx, data); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Get returns a copy of the held credential, or nil.
func (s *Store) Get() *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

// IsValid reports whether a credential is held and has not yet expired.
func (s *Store) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred != nil && !s.cred.ExpiredAt(s.now())
}

// Clear forgets the credential in memory and in storage.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Delete(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// AccessToken returns the current access token, or ErrNotAuthenticated when
// no valid credential is held.
func (s *Store) AccessToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil || s.cred.ExpiredAt(s.now()) {
		return "", ErrNotAuthenticated
	}
	return s.cred.AccessToken, nil
}
