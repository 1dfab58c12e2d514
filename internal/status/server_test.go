package status

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golden-vcr/creds"
	"github.com/golden-vcr/creds/internal/store"
)

func Test_Server_handleGetStatus(t *testing.T) {
	now := time.Date(1997, 9, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(3600 * time.Second)
	past := now.Add(-1 * time.Second)

	tests := []struct {
		name        string
		credentials map[string]creds.Credential
		wantBody    string
	}{
		{
			"empty store is ok",
			nil,
			`{"ok":true,"credentials":[]}`,
		},
		{
			"valid and refreshable-but-expired credentials are ok",
			map[string]creds.Credential{
				"TWITCH-IRC": {
					Provider:     creds.ProviderTwitch,
					AccessToken:  "secret-token",
					RefreshToken: "secret-refresh-token",
					ExpiresAt:    &past,
					DisplayName:  "GoldenVCR",
					Scopes:       []string{"chat:read"},
				},
				"STREAMLABS-90790761": {
					Provider:    creds.ProviderStreamlabs,
					AccessToken: "secret-sl-token",
					ExpiresAt:   &future,
				},
			},
			`{"ok":true,"credentials":[` +
				`{"key":"STREAMLABS-90790761","provider":"streamlabs","expires_at":"1997-09-01T13:00:00Z","expired":false,"refreshable":false},` +
				`{"key":"TWITCH-IRC","provider":"twitch","display_name":"GoldenVCR","scopes":["chat:read"],"expires_at":"1997-09-01T11:59:59Z","expired":true,"refreshable":true}` +
				`]}`,
		},
		{
			"expired credential with no refresh token is not ok",
			map[string]creds.Credential{
				"TWITCH-IRC": {
					Provider:    creds.ProviderTwitch,
					AccessToken: "secret-token",
					ExpiresAt:   &past,
				},
			},
			`{"ok":false,"credentials":[` +
				`{"key":"TWITCH-IRC","provider":"twitch","expires_at":"1997-09-01T11:59:59Z","expired":true,"refreshable":false}` +
				`]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := store.New(store.Options{})
			require.NoError(t, err)
			for key, credential := range tt.credentials {
				s.Put(key, credential)
			}
			server := NewServer(s, slog.Default())
			server.now = func() time.Time { return now }

			r := mux.NewRouter()
			server.RegisterRoutes(r)
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			res := httptest.NewRecorder()
			r.ServeHTTP(res, req)

			b, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			body := strings.TrimSuffix(string(b), "\n")
			assert.Equal(t, http.StatusOK, res.Code)
			assert.Equal(t, tt.wantBody, body)

			// Token material must never leak through the status endpoint
			assert.NotContains(t, body, "secret")
		})
	}
}
