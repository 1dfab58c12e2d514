package creds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Key(t *testing.T) {
	assert.Equal(t, "TWITCH-IRC", Key(ProviderTwitch, KeyIRC))
	assert.Equal(t, "TWITCH-90790761", Key(ProviderTwitch, "90790761"))
	assert.Equal(t, "STREAMLABS-my-label", Key(ProviderStreamlabs, "my-label"))
}

func Test_Credential_Expired(t *testing.T) {
	now := time.Date(1997, 9, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-1 * time.Second)
	future := now.Add(3600 * time.Second)

	assert.False(t, Credential{}.Expired(now), "credential with no expiry never expires")
	assert.False(t, Credential{ExpiresAt: &future}.Expired(now))
	assert.True(t, Credential{ExpiresAt: &past}.Expired(now))
	assert.True(t, Credential{ExpiresAt: &now}.Expired(now), "expiry is inclusive of the boundary instant")
}

func Test_Credential_Refreshable(t *testing.T) {
	assert.True(t, Credential{RefreshToken: "refresh-me"}.Refreshable())
	assert.False(t, Credential{AccessToken: "implicit-grant"}.Refreshable())
}
