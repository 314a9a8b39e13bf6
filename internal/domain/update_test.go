package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUpdate_DeletesPendingWhenSatisfied(t *testing.T) {
	u := NewUpdate("https://me.example/1", &Result{SyndicatedURLs: []string{"https://a.example/1"}})

	assert.Equal(t, "https://me.example/1", u.URL)
	assert.Equal(t, []string{PropSyndicateTo}, u.Delete)
	assert.NotContains(t, u.Replace, PropSyndicateTo)
	assert.Equal(t, []string{"https://a.example/1"}, u.Replace[PropSyndication])
}

func TestNewUpdate_ReplacesPendingWithFailures(t *testing.T) {
	u := NewUpdate("https://me.example/1", &Result{
		SyndicatedURLs: []string{"https://a.example/1"},
		FailedTargets:  []string{"https://b.example"},
	})

	assert.Empty(t, u.Delete)
	assert.Equal(t, []string{"https://b.example"}, u.Replace[PropSyndicateTo])
	assert.Equal(t, []string{"https://a.example/1"}, u.Replace[PropSyndication])
}
