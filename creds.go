// Package creds defines the domain model for the credential manager: the
// providers we hold OAuth grants for, the credential record itself, the key
// conventions used to store credentials, and the events that flow between the
// lifecycle components.
package creds

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies the authorization server that issued a credential: each
// provider has its own token endpoint, client ID, and client secret
type Provider string

const (
	// ProviderTwitch is the primary service: its credentials authorize both
	// the Twitch API and the chat connection
	ProviderTwitch Provider = "twitch"
	// ProviderStreamlabs is the secondary integration service, used for
	// donation and alert access
	ProviderStreamlabs Provider = "streamlabs"
)

// KeyIRC is the well-known subkey for the primary chat identity: the
// credential stored under this key is used as the sender for all chat
// messages
const KeyIRC = "IRC"

// Key formats the store key for a credential, namespaced by provider, e.g.
// "TWITCH-IRC" or "STREAMLABS-90790761"
func Key(provider Provider, subkey string) string {
	return fmt.Sprintf("%s-%s", strings.ToUpper(string(provider)), subkey)
}

// Credential represents one issued OAuth grant: an access token plus the
// metadata required to refresh it and to identify the user it was issued for
type Credential struct {
	Provider     Provider   `json:"provider"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`

	// Identity fields are resolved lazily, after the token has been used
	// successfully for the first time
	UserID      string `json:"user_id,omitempty"`
	Login       string `json:"login,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Expired indicates whether the credential's access token is stale as of the
// given time; a credential with no recorded expiry never expires
func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Refreshable indicates whether the credential carries a refresh token: a
// credential without one can never be silently refreshed, so its expiry is
// terminal
func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}
