package pending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/golden-vcr/creds"
)

func Test_Tracker_Resolve(t *testing.T) {
	now := time.Date(1997, 9, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker()
	tracker.now = func() time.Time { return now }

	authorization := Authorization{
		Provider:  creds.ProviderTwitch,
		Subkey:    creds.KeyIRC,
		CreatedAt: now,
	}
	tracker.Register("Brinstar", authorization)

	// An unknown state never resolves
	_, ok := tracker.Resolve("evil")
	assert.False(t, ok)

	// A freshly-registered state resolves to its metadata...
	got, ok := tracker.Resolve("Brinstar")
	assert.True(t, ok)
	assert.Equal(t, authorization, got)

	// ...exactly once: states are consumed on resolve
	_, ok = tracker.Resolve("Brinstar")
	assert.False(t, ok)
}

func Test_Tracker_Resolve_honorsTTL(t *testing.T) {
	now := time.Date(1997, 9, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker()
	tracker.now = func() time.Time { return now }

	tracker.Register("Brinstar", Authorization{Provider: creds.ProviderTwitch, Subkey: creds.KeyIRC})

	// Just shy of the TTL, the state still resolves
	now = now.Add(TTL - time.Second)
	got, ok := tracker.Resolve("Brinstar")
	assert.True(t, ok)
	assert.Equal(t, creds.ProviderTwitch, got.Provider)

	// Once the TTL has elapsed (measured from registration), the state is
	// gone
	tracker.Register("Norfair", Authorization{Provider: creds.ProviderStreamlabs, Subkey: "donations"})
	now = now.Add(TTL + time.Second)
	_, ok = tracker.Resolve("Norfair")
	assert.False(t, ok)
}

func Test_GenerateState(t *testing.T) {
	a := GenerateState()
	b := GenerateState()
	assert.Len(t, a, 32)
	assert.Len(t, b, 32)
	assert.NotEqual(t, a, b)
}
