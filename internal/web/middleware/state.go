package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// StateManager issues single-use OAuth state values that expire after a
// fixed lifetime. Each state remembers the redirect URI it was issued for.
type StateManager struct {
	lifetime time.Duration
	now      func() time.Time
	states   map[string]issuedState
	mu       sync.Mutex
}

type issuedState struct {
	redirectURI string
	expiresAt   time.Time
}

// NewStateManager creates a state manager.
func NewStateManager(lifetime time.Duration) *StateManager {
	return &StateManager{
		lifetime: lifetime,
		now:      time.Now,
		states:   make(map[string]issuedState),
	}
}

// Issue registers state for redirectURI, generating a random state when
// state is empty.
func (sm *StateManager) Issue(state, redirectURI string) (string, error) {
	if state == "" {
		b := make([]byte, 24)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		state = base64.RawURLEncoding.EncodeToString(b)
	}

	now := sm.now()
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for s, issued := range sm.states {
		if !now.Before(issued.expiresAt) {
			delete(sm.states, s)
		}
	}
	sm.states[state] = issuedState{redirectURI: redirectURI, expiresAt: now.Add(sm.lifetime)}
	return state, nil
}

// Consume returns the redirect URI state was issued for and reports
// whether the state is known and unexpired. A state can be consumed once.
func (sm *StateManager) Consume(state string) (string, bool) {
	if state == "" {
		return "", false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	issued, ok := sm.states[state]
	if !ok {
		return "", false
	}
	delete(sm.states, state)
	if !sm.now().Before(issued.expiresAt) {
		return "", false
	}
	return issued.redirectURI, true
}
