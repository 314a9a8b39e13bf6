package bluesky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/syndicator/internal/domain"
)

// fakePDS serves createSession and createRecord. expireFirst makes the first
// createRecord call fail with ExpiredToken.
type fakePDS struct {
	logins      atomic.Int32
	records     atomic.Int32
	expireFirst bool

	mu         sync.Mutex
	lastRecord createRecordRequest
	lastAuth   string
}

func (f *fakePDS) last() (createRecordRequest, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRecord, f.lastAuth
}

func (f *fakePDS) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "app-password" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
			return
		}
		n := f.logins.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accessJwt": "jwt-" + string(rune('0'+n)),
			"did":       "did:plc:abc123",
			"handle":    body["identifier"],
		})
	})
	mux.HandleFunc("POST /xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		n := f.records.Add(1)
		if f.expireFirst && n == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"ExpiredToken","message":"Token has expired"}`))
			return
		}
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastRecord))
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uri": "at://did:plc:abc123/app.bsky.feed.post/3kxyz",
			"cid": "bafyrei",
		})
	})
	return mux
}

func TestSyndicator_Info(t *testing.T) {
	s := NewSyndicator(NewClient("", nil), "@me.example.com", "pw")
	info := s.Info()
	assert.Equal(t, "https://bsky.app/profile/me.example.com", info.UID)
	assert.Equal(t, "@me.example.com on Bluesky", info.Name)
}

func TestSyndicator_Syndicate(t *testing.T) {
	pds := &fakePDS{}
	server := httptest.NewServer(pds.handler(t))
	defer server.Close()

	s := NewSyndicator(NewClient(server.URL, nil), "me.example.com", "app-password")
	props := domain.Properties{
		"url":  "https://me.example.com/articles/1",
		"name": "A new article",
		"lang": "en",
	}

	got, err := s.Syndicate(context.Background(), props, &domain.Publication{})
	require.NoError(t, err)

	assert.Equal(t, "https://bsky.app/profile/me.example.com/post/3kxyz", got)
	lastRecord, lastAuth := pds.last()
	assert.Equal(t, int32(1), pds.logins.Load())
	assert.Equal(t, "Bearer jwt-1", lastAuth)
	assert.Equal(t, "did:plc:abc123", lastRecord.Repo)
	assert.Equal(t, "app.bsky.feed.post", lastRecord.Collection)

	record := lastRecord.Record.(map[string]any)
	assert.Equal(t, "A new article https://me.example.com/articles/1", record["text"])
	assert.Equal(t, []any{"en"}, record["langs"])
	facets := record["facets"].([]any)
	require.Len(t, facets, 1)
	index := facets[0].(map[string]any)["index"].(map[string]any)
	assert.Equal(t, float64(14), index["byteStart"])
	assert.Equal(t, float64(47), index["byteEnd"])

	// Second delivery reuses the session.
	_, err = s.Syndicate(context.Background(), props, &domain.Publication{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), pds.logins.Load())
}

func TestSyndicator_RenewsExpiredSession(t *testing.T) {
	pds := &fakePDS{expireFirst: true}
	server := httptest.NewServer(pds.handler(t))
	defer server.Close()

	client := NewClient(server.URL, nil)
	require.NoError(t, client.Login(context.Background(), "me.example.com", "app-password"))
	s := NewSyndicator(client, "me.example.com", "app-password")

	got, err := s.Syndicate(context.Background(), domain.Properties{"content": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://bsky.app/profile/me.example.com/post/3kxyz", got)
	_, lastAuth := pds.last()
	assert.Equal(t, int32(2), pds.logins.Load())
	assert.Equal(t, "Bearer jwt-2", lastAuth)
}

func TestSyndicator_LoginFailure(t *testing.T) {
	server := httptest.NewServer((&fakePDS{}).handler(t))
	defer server.Close()

	s := NewSyndicator(NewClient(server.URL, nil), "me.example.com", "wrong")
	_, err := s.Syndicate(context.Background(), domain.Properties{"content": "hi"}, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "AuthenticationRequired", apiErr.Code)
}

func TestSyndicator_EmptyPost(t *testing.T) {
	s := NewSyndicator(NewClient("http://127.0.0.1:1", nil), "me.example.com", "pw")
	_, err := s.Syndicate(context.Background(), domain.Properties{}, nil)
	assert.Error(t, err)
}

func TestPostURL(t *testing.T) {
	got, err := PostURL("me.example.com", "at://did:plc:abc/app.bsky.feed.post/3k")
	require.NoError(t, err)
	assert.Equal(t, "https://bsky.app/profile/me.example.com/post/3k", got)

	_, err = PostURL("me.example.com", "https://bsky.app/x")
	assert.Error(t, err)
	_, err = PostURL("me.example.com", "at://did:plc:abc/app.bsky.feed.like/3k")
	assert.Error(t, err)
}
