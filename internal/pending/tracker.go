// Package pending tracks in-flight authorization requests, correlating the
// CSRF 'state' value carried through the OAuth redirect round-trip back to
// the request that generated it.
package pending

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/golden-vcr/creds"
)

// TTL is how long a registered state remains resolvable, measured from
// registration (not last access)
const TTL = 3600 * time.Second

// Authorization records what an in-flight authorization request was for, so
// that the eventual callback can be routed to the right provider and store
// key
type Authorization struct {
	Provider  creds.Provider
	Subkey    string
	CreatedAt time.Time
}

type entry struct {
	authorization Authorization
	expiresAt     time.Time
}

// Tracker is a short-lived correlation map from CSRF state values to the
// authorization requests that created them. Entries expire TTL after
// registration, and a successful Resolve consumes its entry: a state value
// can never be replayed through a second callback.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// GenerateState returns a fresh, cryptographically random state value to
// carry through an authorization redirect
func GenerateState() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)
}

// Register stores the given authorization under the given state value, with
// a TTL measured from now. Registering over an existing state replaces it;
// callers should generate fresh randomness per request.
func (t *Tracker) Register(state string, authorization Authorization) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.purgeLocked()
	t.entries[state] = entry{
		authorization: authorization,
		expiresAt:     t.now().Add(TTL),
	}
}

// Resolve returns the authorization registered under the given state, if one
// exists and has not yet expired, and consumes the entry so that the same
// state cannot be resolved twice
func (t *Tracker) Resolve(state string) (Authorization, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.purgeLocked()
	e, ok := t.entries[state]
	if !ok {
		return Authorization{}, false
	}
	delete(t.entries, state)
	return e.authorization, true
}

// purgeLocked drops all expired entries; the caller must hold t.mu
func (t *Tracker) purgeLocked() {
	now := t.now()
	for state, e := range t.entries {
		if e.expiresAt.Before(now) || e.expiresAt.Equal(now) {
			delete(t.entries, state)
		}
	}
}
