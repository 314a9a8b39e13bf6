package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/blackmichael/syndicator/internal/config"
)

func TestBuildTargets(t *testing.T) {
	targets, err := buildTargets([]config.TargetConfig{
		{Type: config.TargetMastodon, Instance: "https://mastodon.example", User: "me", AccessToken: "xyz", RatePerSec: 0.5},
		{Type: config.TargetBluesky, Handle: "me.example", Password: "pw"},
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "https://mastodon.example/@me", targets[0].Info().UID)
	assert.Equal(t, "https://bsky.app/profile/me.example", targets[1].Info().UID)
}

func TestBuildTargets_UnknownType(t *testing.T) {
	_, err := buildTargets([]config.TargetConfig{{Type: "myspace"}})
	assert.ErrorContains(t, err, `unknown type "myspace"`)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(0))

	l := newLimiter(2.5)
	require.NotNil(t, l)
	assert.Equal(t, rate.Limit(2.5), l.Limit())
	assert.Equal(t, 3, l.Burst())
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug")
	assert.NoError(t, err)

	_, err = newLogger("loud")
	assert.Error(t, err)
}
