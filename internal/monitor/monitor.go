// Package monitor implements the background loop that watches the credential
// store for expired access tokens and publishes a TokenExpiredEvent for each
// one, so that a subscriber can refresh the credential before callers start
// failing requests with it.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/golden-vcr/creds"
	"github.com/golden-vcr/creds/internal/store"
)

const DefaultInterval = 10 * time.Second

type Options struct {
	// Interval is the fixed delay between scans
	Interval time.Duration
	// Backoff is the minimum delay before re-publishing an expiry event for a
	// credential whose refresh did not succeed; zero means strict
	// level-triggered behavior, re-firing on every tick
	Backoff time.Duration
	Logger  *slog.Logger
}

type PublishEventFunc func(event creds.TokenExpiredEvent)

// Monitor periodically scans a snapshot of the credential store and publishes
// one TokenExpiredEvent per stale credential per pass. Dispatch is
// synchronous, so by the time a pass moves on, the refresh subscriber has
// either replaced the credential or failed; failures are tracked per key and
// throttled by the configured backoff.
type Monitor struct {
	store        *store.Store
	publishEvent PublishEventFunc
	interval     time.Duration
	backoff      time.Duration
	logger       *slog.Logger

	now     func() time.Time
	records map[string]refreshRecord
}

// refreshRecord remembers the outcome of the last expiry event published for
// a store key; it's keyed to the access token it was recorded for, so
// replacing the credential resets the slate
type refreshRecord struct {
	accessToken string
	lastAttempt time.Time
	terminal    bool
}

func New(s *store.Store, publishEvent PublishEventFunc, opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:        s,
		publishEvent: publishEvent,
		interval:     interval,
		backoff:      opts.Backoff,
		logger:       logger,
		now:          time.Now,
		records:      make(map[string]refreshRecord),
	}
}

// Run scans once, then keeps scanning at the configured interval until the
// context is canceled
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.scan()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) scan() {
	now := m.now()
	snapshot := m.store.Values()

	// A record only constrains the credential it was made for: once the entry
	// is removed or replaced, forget it
	for key, record := range m.records {
		if credential, ok := snapshot[key]; !ok || credential.AccessToken != record.accessToken {
			delete(m.records, key)
		}
	}

	for key, credential := range snapshot {
		// No recorded expiry means non-expiring (or unknown): skip
		if credential.ExpiresAt == nil || !credential.Expired(now) {
			continue
		}

		if record, ok := m.records[key]; ok {
			if record.terminal {
				continue
			}
			if m.backoff > 0 && now.Before(record.lastAttempt.Add(m.backoff)) {
				continue
			}
		}

		m.dispatch(key, credential)

		// Dispatch was synchronous: if the refresh subscriber succeeded, the
		// store already holds a replacement and no record is needed
		if after, ok := m.store.Get(key); !ok || after.AccessToken != credential.AccessToken {
			delete(m.records, key)
			continue
		}
		if !credential.Refreshable() {
			// Without a refresh token the expiry is terminal: surface it once
			// and stop repeating ourselves
			m.records[key] = refreshRecord{accessToken: credential.AccessToken, lastAttempt: now, terminal: true}
			continue
		}
		m.logger.Warn("Credential was not refreshed after expiry event", "key", key)
		m.records[key] = refreshRecord{accessToken: credential.AccessToken, lastAttempt: now}
	}
}

// dispatch publishes a single expiry event, isolating the scan from a
// panicking subscriber: one bad credential must not abort the rest of the
// pass or kill the loop
func (m *Monitor) dispatch(key string, credential creds.Credential) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Token-expired subscriber panicked", "key", key, "panic", r)
		}
	}()
	m.logger.Info("Token expired", "key", key, "provider", credential.Provider)
	m.publishEvent(creds.TokenExpiredEvent{Key: key, Credential: credential})
}
