package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPost(t *testing.T) {
	post, err := NewPost(Properties{
		PropURL:        "https://me.example/notes/1",
		PropPublished:  "2024-05-01T10:00:00+02:00",
		PropPostStatus: "draft",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://me.example/notes/1", post.URL)
	assert.Equal(t, StatusDraft, post.Status)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), post.Published)
}

func TestNewPost_DefaultsToPublished(t *testing.T) {
	post, err := NewPost(Properties{PropURL: []any{"https://me.example/notes/2"}})
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, post.Status)
	assert.Equal(t, "https://me.example/notes/2", post.URL)
}

func TestNewPost_Errors(t *testing.T) {
	_, err := NewPost(Properties{})
	assert.Error(t, err)

	_, err = NewPost(Properties{PropURL: "https://me.example/1", PropPublished: "yesterday"})
	assert.Error(t, err)
}

func TestStatusText(t *testing.T) {
	t.Run("note fits", func(t *testing.T) {
		props := Properties{PropURL: "https://me.example/1", PropContent: "Hello world"}
		assert.Equal(t, "Hello world", StatusText(props, 300))
	})

	t.Run("content object", func(t *testing.T) {
		props := Properties{PropContent: map[string]any{"text": "plain", "html": "<p>plain</p>"}}
		assert.Equal(t, "plain", StatusText(props, 300))
	})

	t.Run("article links to post", func(t *testing.T) {
		props := Properties{PropURL: "https://me.example/2", PropName: "My article", PropContent: "Long body"}
		assert.Equal(t, "My article https://me.example/2", StatusText(props, 300))
	})

	t.Run("long note is truncated with link", func(t *testing.T) {
		props := Properties{PropURL: "https://me.example/3", PropContent: strings.Repeat("á", 100)}
		got := StatusText(props, 50)
		assert.Equal(t, 50, len([]rune(got)))
		assert.True(t, strings.HasSuffix(got, "… https://me.example/3"))
	})
}
