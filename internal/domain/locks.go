package domain

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// postLocks hands out one lock per post URL. Entries are dropped once no
// caller holds or waits for them.
type postLocks struct {
	mu    sync.Mutex
	locks map[string]*postLock
}

type postLock struct {
	sem  *semaphore.Weighted
	refs int
}

// acquire blocks until the lock for url is held or ctx is done.
func (l *postLocks) acquire(ctx context.Context, url string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*postLock)
	}
	pl, ok := l.locks[url]
	if !ok {
		pl = &postLock{sem: semaphore.NewWeighted(1)}
		l.locks[url] = pl
	}
	pl.refs++
	l.mu.Unlock()

	if err := pl.sem.Acquire(ctx, 1); err != nil {
		l.unref(url, pl)
		return nil, err
	}

	return func() {
		pl.sem.Release(1)
		l.unref(url, pl)
	}, nil
}

func (l *postLocks) unref(url string, pl *postLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, url)
	}
}

// held reports how many URLs currently have a lock entry.
func (l *postLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
