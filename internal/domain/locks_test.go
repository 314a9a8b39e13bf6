package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostLocks(t *testing.T) {
	var locks postLocks
	ctx := context.Background()

	release, err := locks.acquire(ctx, "https://me.example/1")
	require.NoError(t, err)

	other, err := locks.acquire(ctx, "https://me.example/2")
	require.NoError(t, err)
	other()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(waitCtx, "https://me.example/1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 1, locks.held())
	release()
	assert.Zero(t, locks.held())

	release, err = locks.acquire(ctx, "https://me.example/1")
	require.NoError(t, err)
	release()
}
