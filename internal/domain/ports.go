package domain

import (
	"context"
	"errors"
)

// ErrPostNotFound is returned by PostStore.FindOne when no post has the URL.
var ErrPostNotFound = errors.New("post not found")

// PostStore defines the read operations the engine needs from the post store.
type PostStore interface {
	// FindOne returns the post whose identity URL equals url, or
	// ErrPostNotFound.
	FindOne(ctx context.Context, url string) (*Post, error)

	// FindPending returns every non-draft post that still has a
	// syndicate-to property, most recently published first.
	FindPending(ctx context.Context) ([]*Post, error)

	// FindLatestPending returns the most recently published pending post, or
	// ErrPostNotFound if there is none.
	FindLatestPending(ctx context.Context) (*Post, error)
}

// PostUpdater commits a post's new state through the update endpoint.
type PostUpdater interface {
	// UpdatePost applies the update. Any rejection is returned as an error.
	UpdatePost(ctx context.Context, update *Update) error
}

// CursorRepository defines persistence operations for event stream cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed cursor for the given stream.
	// Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, stream string) (int64, error)

	// UpdateCursor persists the cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, stream string, cursor int64) error
}
