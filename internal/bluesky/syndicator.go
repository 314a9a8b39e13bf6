package bluesky

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blackmichael/syndicator/internal/domain"
)

// maxGraphemes is the Bluesky post length limit. Runes are used as an
// approximation.
const maxGraphemes = 300

// Syndicator delivers posts to a Bluesky account. It implements
// domain.Target.
type Syndicator struct {
	client   *Client
	handle   string
	password string

	// mu serializes session handling on the shared client.
	mu sync.Mutex
}

// NewSyndicator creates a Syndicator that posts as handle, logging in lazily
// with the given app password.
func NewSyndicator(client *Client, handle, password string) *Syndicator {
	return &Syndicator{
		client:   client,
		handle:   strings.TrimPrefix(handle, "@"),
		password: password,
	}
}

// Info returns the profile URL of the account as the target identity.
func (s *Syndicator) Info() domain.TargetInfo {
	return domain.TargetInfo{
		UID:  "https://bsky.app/profile/" + s.handle,
		Name: "@" + s.handle + " on Bluesky",
	}
}

// Syndicate creates a Bluesky post for the given properties and returns its
// bsky.app URL.
func (s *Syndicator) Syndicate(ctx context.Context, props domain.Properties, _ *domain.Publication) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := domain.StatusText(props, maxGraphemes)
	if text == "" {
		return "", fmt.Errorf("post has no text to syndicate")
	}

	record := PostRecord{
		Text:      text,
		Facets:    linkFacets(text, props.String(domain.PropURL)),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if lang := props.String("lang"); lang != "" {
		record.Langs = []string{lang}
	}

	if !s.client.Authenticated() {
		if err := s.client.Login(ctx, s.handle, s.password); err != nil {
			return "", err
		}
	}

	ref, err := s.client.CreatePost(ctx, record)
	if isExpiredToken(err) {
		if err := s.client.Login(ctx, s.handle, s.password); err != nil {
			return "", err
		}
		ref, err = s.client.CreatePost(ctx, record)
	}
	if err != nil {
		return "", err
	}

	return PostURL(s.handle, ref.URI)
}

// PostURL converts an at://did/app.bsky.feed.post/rkey URI into the public
// bsky.app URL for the post.
func PostURL(handle, uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return "", fmt.Errorf("invalid AT-URI %q", uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "app.bsky.feed.post" || parts[2] == "" {
		return "", fmt.Errorf("invalid post AT-URI %q", uri)
	}
	return "https://bsky.app/profile/" + handle + "/post/" + parts[2], nil
}

// linkFacets marks the first occurrence of link in text as a link facet so
// it is clickable in Bluesky clients.
func linkFacets(text, link string) []Facet {
	if link == "" {
		return nil
	}
	start := strings.Index(text, link)
	if start < 0 {
		return nil
	}
	return []Facet{{
		Index: FacetIndex{ByteStart: start, ByteEnd: start + len(link)},
		Features: []FacetFeature{{
			Type: "app.bsky.richtext.facet#link",
			URI:  link,
		}},
	}}
}
