package connect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golden-vcr/creds"
	"github.com/golden-vcr/creds/internal/bus"
	"github.com/golden-vcr/creds/internal/pending"
	"github.com/golden-vcr/creds/internal/store"
)

// Exchanger represents the subset of token-exchange functionality the manager
// drives for one provider
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*creds.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (*creds.Credential, error)
}

// IdentityResolver stamps user identity onto a freshly issued credential
type IdentityResolver interface {
	Resolve(credential *creds.Credential) error
}

type NotifyChangeFunc func(change creds.CredentialChange)

type Options struct {
	// FixedState, if set, accepts callbacks carrying this constant state
	// value on behalf of FixedStateTarget: the single-tenant desktop flow,
	// where the authorize URL was built out-of-band
	FixedState       string
	FixedStateTarget Target
	// NotifyChange, if set, is invoked after every credential lifecycle
	// change (e.g. to fan the change out over AMQP)
	NotifyChange NotifyChangeFunc
	Logger       *slog.Logger
}

// Target identifies where an issued credential should be stored
type Target struct {
	Provider creds.Provider
	Subkey   string
}

// Manager orchestrates the authorization flow from initiation through stored
// credential, and keeps stored credentials alive by handling expiry events
type Manager struct {
	store      *store.Store
	tracker    *pending.Tracker
	exchangers map[creds.Provider]Exchanger
	resolver   IdentityResolver

	fixedState       string
	fixedStateTarget Target
	notifyChange     NotifyChangeFunc
	logger           *slog.Logger
	now              func() time.Time
}

func NewManager(s *store.Store, tracker *pending.Tracker, exchangers map[creds.Provider]Exchanger, resolver IdentityResolver, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:            s,
		tracker:          tracker,
		exchangers:       exchangers,
		resolver:         resolver,
		fixedState:       opts.FixedState,
		fixedStateTarget: opts.FixedStateTarget,
		notifyChange:     opts.NotifyChange,
		logger:           logger,
		now:              time.Now,
	}
}

// Register subscribes the manager to the authorization and expiry topics
func (m *Manager) Register(authorizations *bus.Topic[creds.AuthorizationEvent], expirations *bus.Topic[creds.TokenExpiredEvent]) {
	authorizations.Subscribe(m.handleAuthorization)
	expirations.Subscribe(m.handleExpiry)
}

// BeginAuthorization registers a fresh CSRF state for the given target and
// returns the provider's authorize URL; the caller is responsible for
// getting the user's browser there
func (m *Manager) BeginAuthorization(provider creds.Provider, subkey string) (string, error) {
	exchanger, ok := m.exchangers[provider]
	if !ok {
		return "", fmt.Errorf("no exchange client configured for provider '%s'", provider)
	}
	state := pending.GenerateState()
	m.tracker.Register(state, pending.Authorization{
		Provider:  provider,
		Subkey:    subkey,
		CreatedAt: m.now(),
	})
	m.logger.Info("Initiated authorization flow", "provider", provider, "subkey", subkey)
	return exchanger.AuthCodeURL(state), nil
}

// handleAuthorization processes one callback event: it validates the CSRF
// state, exchanges the authorization code, resolves the user's identity, and
// stores the credential
func (m *Manager) handleAuthorization(event creds.AuthorizationEvent) {
	// A consent denial (or other provider-reported error) ends the flow here:
	// no token exchange is attempted
	if event.Error != "" {
		m.logger.Warn("Authorization was not granted",
			"error", event.Error,
			"errorDescription", event.ErrorDescription,
		)
		return
	}

	target, ok := m.resolveTarget(event.State)
	if !ok {
		return
	}
	exchanger, ok := m.exchangers[target.Provider]
	if !ok {
		m.logger.Error("No exchange client configured for authorized provider", "provider", target.Provider)
		return
	}

	credential, err := exchanger.Exchange(context.Background(), event.Code)
	if err != nil {
		m.logger.Error("Failed to exchange authorization code",
			"error", err,
			"provider", target.Provider,
		)
		return
	}

	// Identity is a labeling concern: if resolution fails, the credential is
	// stored anyway and identity stays unresolved until the next refresh
	if m.resolver != nil {
		if err := m.resolver.Resolve(credential); err != nil {
			m.logger.Warn("Failed to resolve identity for new credential",
				"error", err,
				"provider", target.Provider,
			)
		}
	}

	key := creds.Key(target.Provider, target.Subkey)
	m.store.Put(key, *credential)
	m.logger.Info("Issued credential",
		"key", key,
		"provider", target.Provider,
		"displayName", credential.DisplayName,
		"scopes", credential.Scopes,
	)
	m.notify(creds.CredentialChange{Key: key, Provider: target.Provider, Kind: creds.ChangeIssued})
}

// resolveTarget validates the CSRF state carried by a callback and determines
// which provider and store key the authorization was for
func (m *Manager) resolveTarget(state string) (Target, bool) {
	if authorization, ok := m.tracker.Resolve(state); ok {
		return Target{Provider: authorization.Provider, Subkey: authorization.Subkey}, true
	}
	if m.fixedState != "" {
		if state == m.fixedState {
			return m.fixedStateTarget, true
		}
		// Distinguishable in logs from the no-fixed-state case below
		m.logger.Warn("Discarding callback with mismatched state", "state", state)
		return Target{}, false
	}
	m.logger.Warn("Discarding callback with unknown or replayed state", "state", state)
	return Target{}, false
}

// handleExpiry processes one expiry event: it refreshes the credential and
// replaces it in the store, or surfaces the terminal condition when no
// refresh is possible. On a failed refresh the store is left untouched; the
// monitor decides when to try again.
func (m *Manager) handleExpiry(event creds.TokenExpiredEvent) {
	credential := event.Credential
	if !credential.Refreshable() {
		m.logger.Error("Credential has expired and has no refresh token; re-authorization is required",
			"key", event.Key,
			"provider", credential.Provider,
		)
		m.notify(creds.CredentialChange{Key: event.Key, Provider: credential.Provider, Kind: creds.ChangeExpiredTerminal})
		return
	}

	exchanger, ok := m.exchangers[credential.Provider]
	if !ok {
		m.logger.Error("No exchange client configured for expired credential", "provider", credential.Provider)
		return
	}
	refreshed, err := exchanger.Refresh(context.Background(), credential.RefreshToken)
	if err != nil {
		m.logger.Error("Failed to refresh credential",
			"error", err,
			"key", event.Key,
			"provider", credential.Provider,
		)
		return
	}

	// The refresh response carries no identity, and some providers don't
	// rotate refresh tokens or re-state scopes: carry forward what we knew
	refreshed.UserID = credential.UserID
	refreshed.Login = credential.Login
	refreshed.DisplayName = credential.DisplayName
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = credential.RefreshToken
	}
	if len(refreshed.Scopes) == 0 {
		refreshed.Scopes = credential.Scopes
	}

	m.store.Put(event.Key, *refreshed)
	m.logger.Info("Refreshed credential", "key", event.Key, "provider", credential.Provider)
	m.notify(creds.CredentialChange{Key: event.Key, Provider: credential.Provider, Kind: creds.ChangeRefreshed})
}

func (m *Manager) notify(change creds.CredentialChange) {
	if m.notifyChange != nil {
		m.notifyChange(change)
	}
}
