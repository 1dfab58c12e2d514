// Package store maintains the authoritative table of issued credentials,
// keyed by provider and identity, with optional persistence to a local JSON
// file so that credentials survive a process restart.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/golden-vcr/creds"
)

type Options struct {
	// FilePath, if set, is where the credential table is persisted; if the
	// file exists at construction time it repopulates the store before any
	// network activity occurs
	FilePath string
	// SaveOnPut enables writing the file as a side effect of every Put
	SaveOnPut bool
	Logger    *slog.Logger
}

// Store is a concurrency-safe credential table. Put replaces the entry under
// a key atomically; readers only ever observe a fully-written credential.
type Store struct {
	mu      sync.RWMutex
	entries map[string]creds.Credential

	filePath  string
	saveOnPut bool
	logger    *slog.Logger
}

func New(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		entries:   make(map[string]creds.Credential),
		filePath:  opts.FilePath,
		saveOnPut: opts.SaveOnPut,
		logger:    logger,
	}
	if opts.FilePath != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put stores the credential under the given key, evicting any previous entry.
// If save-on-put is enabled, the table is persisted afterwards; a persistence
// failure is logged but never fails the write.
func (s *Store) Put(key string, credential creds.Credential) {
	s.mu.Lock()
	s.entries[key] = copied(credential)
	s.mu.Unlock()

	s.logger.Debug("Stored credential", "key", key, "provider", credential.Provider)
	if s.saveOnPut && s.filePath != "" {
		if err := s.Save(); err != nil {
			s.logger.Error("Failed to save credentials file", "error", err)
		}
	}
}

// Get returns the credential stored under the given key. A missing key is a
// normal condition (no credential configured yet), not an error.
func (s *Store) Get(key string) (creds.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.entries[key]
	if !ok {
		return creds.Credential{}, false
	}
	return copied(credential), true
}

// GetIRC returns the provider's credential for the primary chat identity
func (s *Store) GetIRC(provider creds.Provider) (creds.Credential, bool) {
	return s.Get(creds.Key(provider, creds.KeyIRC))
}

// GetChannel returns the provider's credential for the given channel or user
// identifier
func (s *Store) GetChannel(provider creds.Provider, channelID string) (creds.Credential, bool) {
	return s.Get(creds.Key(provider, channelID))
}

func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Values returns a snapshot of the table; the expiry monitor iterates this
// snapshot so that a concurrent Put never disturbs a scan in progress
func (s *Store) Values() map[string]creds.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]creds.Credential, len(s.entries))
	for key, credential := range s.entries {
		snapshot[key] = copied(credential)
	}
	return snapshot
}

// Save writes the full credential table to the configured file
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	s.logger.Debug("Saved credentials file", "path", s.filePath, "numCredentials", len(s.entries))
	return nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read credentials file: %w", err)
	}
	entries := make(map[string]creds.Credential)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse credentials file at %s: %w", s.filePath, err)
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	s.logger.Info("Loaded credentials file", "path", s.filePath, "numCredentials", len(entries))
	return nil
}

// copied deep-copies a credential so that no caller shares slice or pointer
// state with the table
func copied(credential creds.Credential) creds.Credential {
	if credential.Scopes != nil {
		scopes := make([]string, len(credential.Scopes))
		copy(scopes, credential.Scopes)
		credential.Scopes = scopes
	}
	if credential.ExpiresAt != nil {
		expiresAt := *credential.ExpiresAt
		credential.ExpiresAt = &expiresAt
	}
	return credential
}
