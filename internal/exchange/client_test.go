package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/golden-vcr/creds"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient(Config{
		Provider:     creds.ProviderTwitch,
		ClientID:     "my-client-id",
		ClientSecret: "my-client-secret",
		RedirectURI:  "http://127.0.0.1:7090/oauth/callback",
		Scopes:       []string{"chat:read", "chat:edit"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   server.URL + "/authorize",
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	})
	return c, server
}

func Test_Client_AuthCodeURL(t *testing.T) {
	c := NewClient(Config{
		Provider:     creds.ProviderTwitch,
		ClientID:     "my-client-id",
		ClientSecret: "my-client-secret",
		RedirectURI:  "http://127.0.0.1:7090/oauth/callback",
		Scopes:       []string{"chat:read", "chat:edit"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://id.example.com/authorize",
			TokenURL: "https://id.example.com/token",
		},
	})

	u, err := url.Parse(c.AuthCodeURL("Brinstar"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "my-client-id", q.Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:7090/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "chat:read chat:edit", q.Get("scope"))
	assert.Equal(t, "Brinstar", q.Get("state"))
}

func Test_Client_Exchange(t *testing.T) {
	var gotForm url.Values
	c, _ := newTestClient(t, func(res http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseForm())
		gotForm = req.PostForm
		res.Header().Set("Content-Type", "application/json")
		res.Write([]byte(`{
			"access_token": "my-access-token",
			"refresh_token": "my-refresh-token",
			"token_type": "bearer",
			"expires_in": 3600,
			"scope": ["chat:read", "chat:edit"]
		}`))
	})

	credential, err := c.Exchange(context.Background(), "abc123")
	require.NoError(t, err)

	// The token request is a form-encoded authorization_code grant carrying
	// our client credentials and redirect URI
	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "abc123", gotForm.Get("code"))
	assert.Equal(t, "my-client-id", gotForm.Get("client_id"))
	assert.Equal(t, "my-client-secret", gotForm.Get("client_secret"))
	assert.Equal(t, "http://127.0.0.1:7090/oauth/callback", gotForm.Get("redirect_uri"))

	assert.Equal(t, creds.ProviderTwitch, credential.Provider)
	assert.Equal(t, "my-access-token", credential.AccessToken)
	assert.Equal(t, "my-refresh-token", credential.RefreshToken)
	assert.Equal(t, []string{"chat:read", "chat:edit"}, credential.Scopes)
	require.NotNil(t, credential.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(3600*time.Second), *credential.ExpiresAt, 30*time.Second)
}

func Test_Client_Refresh(t *testing.T) {
	var gotForm url.Values
	c, _ := newTestClient(t, func(res http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseForm())
		gotForm = req.PostForm
		res.Header().Set("Content-Type", "application/json")
		res.Write([]byte(`{
			"access_token": "my-new-access-token",
			"token_type": "bearer",
			"expires_in": 3600,
			"scope": "chat:read chat:edit"
		}`))
	})

	credential, err := c.Refresh(context.Background(), "my-refresh-token")
	require.NoError(t, err)

	// The refresh request is a refresh_token grant with no redirect_uri
	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "my-refresh-token", gotForm.Get("refresh_token"))
	assert.Equal(t, "my-client-id", gotForm.Get("client_id"))
	assert.Equal(t, "my-client-secret", gotForm.Get("client_secret"))
	assert.Empty(t, gotForm.Get("redirect_uri"))
	assert.Empty(t, gotForm.Get("code"))

	assert.Equal(t, "my-new-access-token", credential.AccessToken)

	// A provider that doesn't rotate refresh tokens leaves ours intact, and a
	// space-delimited scope string is normalized to a list
	assert.Equal(t, "my-refresh-token", credential.RefreshToken)
	assert.Equal(t, []string{"chat:read", "chat:edit"}, credential.Scopes)
}

func Test_Client_Exchange_surfacesProviderError(t *testing.T) {
	c, _ := newTestClient(t, func(res http.ResponseWriter, req *http.Request) {
		res.Header().Set("Content-Type", "application/json")
		res.WriteHeader(http.StatusBadRequest)
		res.Write([]byte(`{"error": "invalid_grant", "error_description": "Invalid authorization code"}`))
	})

	credential, err := c.Exchange(context.Background(), "bogus")
	assert.Nil(t, credential)
	providerErr := &ProviderError{}
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
	assert.Equal(t, "invalid_grant", providerErr.Code)
	assert.Equal(t, "Invalid authorization code", providerErr.Description)
}

func Test_Client_Exchange_surfacesTransportError(t *testing.T) {
	c, server := newTestClient(t, func(res http.ResponseWriter, req *http.Request) {})
	server.Close()

	credential, err := c.Exchange(context.Background(), "abc123")
	assert.Nil(t, credential)
	transportErr := &TransportError{}
	assert.ErrorAs(t, err, &transportErr)
}

func Test_Client_Exchange_surfacesDecodeError(t *testing.T) {
	c, _ := newTestClient(t, func(res http.ResponseWriter, req *http.Request) {
		res.Header().Set("Content-Type", "application/json")
		res.Write([]byte("<html>this is not a token</html>"))
	})

	credential, err := c.Exchange(context.Background(), "abc123")
	assert.Nil(t, credential)
	decodeErr := &DecodeError{}
	assert.ErrorAs(t, err, &decodeErr)
}

func Test_parseScopes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseScopes("a b"))
	assert.Equal(t, []string{"a", "b"}, parseScopes([]any{"a", "b"}))
	assert.Empty(t, parseScopes(nil))
	assert.Empty(t, parseScopes(42))
}
