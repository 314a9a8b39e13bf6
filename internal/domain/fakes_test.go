package domain

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeTarget returns a fixed URL or error and records each delivery.
type fakeTarget struct {
	uid    string
	result string
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fakeTarget) Info() TargetInfo {
	return TargetInfo{UID: f.uid, Name: f.uid}
}

func (f *fakeTarget) Syndicate(_ context.Context, _ Properties, _ *Publication) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeTarget) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memoryStore is an in-memory PostStore.
type memoryStore struct {
	mu    sync.Mutex
	posts []*Post
	err   error
}

func (m *memoryStore) FindOne(_ context.Context, url string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.posts {
		if p.URL == url {
			return p, nil
		}
	}
	return nil, ErrPostNotFound
}

func (m *memoryStore) FindPending(_ context.Context) ([]*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var pending []*Post
	for _, p := range m.posts {
		if p.Properties.Has(PropSyndicateTo) && p.Status != StatusDraft {
			pending = append(pending, p)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Published.After(pending[j].Published)
	})
	return pending, nil
}

func (m *memoryStore) FindLatestPending(ctx context.Context) (*Post, error) {
	pending, err := m.FindPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrPostNotFound
	}
	return pending[0], nil
}

// recordingUpdater records updates and fails for URLs in failFor.
type recordingUpdater struct {
	mu      sync.Mutex
	updates []*Update
	failFor map[string]bool
}

func (r *recordingUpdater) UpdatePost(_ context.Context, u *Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[u.URL] {
		return errors.New("endpoint returned 500")
	}
	r.updates = append(r.updates, u)
	return nil
}

// storeUpdater applies updates to a memoryStore the way the update
// endpoint would, replacing each post's property map.
type storeUpdater struct {
	store *memoryStore
}

func (s *storeUpdater) UpdatePost(_ context.Context, u *Update) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, p := range s.store.posts {
		if p.URL != u.URL {
			continue
		}
		props := make(Properties, len(p.Properties))
		for k, v := range p.Properties {
			props[k] = v
		}
		for k, values := range u.Replace {
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			props[k] = list
		}
		for _, k := range u.Delete {
			delete(props, k)
		}
		p.Properties = props
		return nil
	}
	return ErrPostNotFound
}

// gatedTarget blocks every delivery until release is closed and tracks how
// many deliveries overlap.
type gatedTarget struct {
	uid     string
	result  string
	started chan struct{}
	release chan struct{}

	mu        sync.Mutex
	calls     int
	active    int
	maxActive int
}

func newGatedTarget(uid, result string) *gatedTarget {
	return &gatedTarget{
		uid:     uid,
		result:  result,
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (g *gatedTarget) Info() TargetInfo {
	return TargetInfo{UID: g.uid, Name: g.uid}
}

func (g *gatedTarget) Syndicate(ctx context.Context, _ Properties, _ *Publication) (string, error) {
	g.mu.Lock()
	g.calls++
	g.active++
	g.maxActive = max(g.maxActive, g.active)
	g.mu.Unlock()
	g.started <- struct{}{}

	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	select {
	case <-g.release:
		return g.result, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedTarget) stats() (calls, maxActive int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.maxActive
}
