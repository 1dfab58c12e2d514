// Package exchange implements the out-of-band leg of the OAuth
// authorization-code flow: converting an authorization code or a refresh
// token into an access token by POSTing to a provider's token endpoint.
package exchange

import (
	"context"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"

	"github.com/golden-vcr/creds"
)

// StreamlabsEndpoint describes the secondary integration service's OAuth
// endpoints; the primary service's endpoints come from oauth2/twitch
var StreamlabsEndpoint = oauth2.Endpoint{
	AuthURL:   "https://streamlabs.com/api/v1.0/authorize",
	TokenURL:  "https://streamlabs.com/api/v1.0/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Config carries everything needed to run token exchanges against one
// provider. Endpoint may be left zero to use the provider's well-known
// endpoints; tests point it at a local server.
type Config struct {
	Provider     creds.Provider
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
}

// Client performs token exchanges against a single provider. It never
// retries: retry policy belongs to the caller, so that a flapping token
// endpoint isn't hammered from several layers at once.
type Client struct {
	provider creds.Provider
	cfg      *oauth2.Config
}

func NewClient(c Config) *Client {
	endpoint := c.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = defaultEndpoint(c.Provider)
	}
	// Both providers expect client credentials in the POST body rather than
	// via basic auth; pinning the style also keeps the underlying client from
	// probing with a throwaway request
	if endpoint.AuthStyle == oauth2.AuthStyleAutoDetect {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	return &Client{
		provider: c.Provider,
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Scopes:       c.Scopes,
			Endpoint:     endpoint,
		},
	}
}

func defaultEndpoint(provider creds.Provider) oauth2.Endpoint {
	switch provider {
	case creds.ProviderStreamlabs:
		return StreamlabsEndpoint
	default:
		return twitch.Endpoint
	}
}

// AuthCodeURL builds the URL of the provider's consent page for an
// authorization-code flow, carrying the given CSRF state: the caller is
// responsible for getting the user's browser there
func (c *Client) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state)
}

// Exchange converts an authorization code into a credential via an
// authorization_code grant against the provider's token endpoint. On failure
// no credential is produced and the error distinguishes transport failures,
// provider-reported errors, and unparseable responses.
func (c *Client) Exchange(ctx context.Context, code string) (*creds.Credential, error) {
	tok, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, classifyError(err)
	}
	return c.credentialFromToken(tok), nil
}

// Refresh converts a refresh token into a fresh credential via a
// refresh_token grant. If the provider doesn't rotate refresh tokens, the
// returned credential carries the refresh token it was given.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*creds.Credential, error) {
	tok, err := c.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classifyError(err)
	}
	return c.credentialFromToken(tok), nil
}

func (c *Client) credentialFromToken(tok *oauth2.Token) *creds.Credential {
	credential := &creds.Credential{
		Provider:     c.provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scopes:       parseScopes(tok.Extra("scope")),
	}
	if !tok.Expiry.IsZero() {
		expiresAt := tok.Expiry.UTC().Truncate(time.Second)
		credential.ExpiresAt = &expiresAt
	}
	return credential
}

// parseScopes normalizes the provider-reported scope value: the primary
// service returns a JSON array, the secondary a space-delimited string
func parseScopes(value any) []string {
	switch v := value.(type) {
	case string:
		return strings.Fields(v)
	case []any:
		scopes := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
