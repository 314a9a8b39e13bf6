package domain

import (
	"fmt"
	"strings"
	"time"
)

// Property names used by the syndication engine. Posts are stored as
// Micropub-style property bags, so these match the JF2/mf2 vocabulary.
const (
	PropURL         = "url"
	PropName        = "name"
	PropContent     = "content"
	PropPublished   = "published"
	PropPostStatus  = "post-status"
	PropSyndicateTo = "syndicate-to"
	PropSyndication = "syndication"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusPublished PostStatus = "published"
	StatusDraft     PostStatus = "draft"
)

// Properties holds a post's properties as decoded from JSON. Values are
// strings, numbers, bools, []any or map[string]any.
type Properties map[string]any

// Post represents a content item owned by the post store.
type Post struct {
	// URL is the stable identity URL of the post.
	URL string

	// Published is when the post was published. Used for ordering.
	Published time.Time

	// Status is the post-status; drafts are never selected for batches.
	Status PostStatus

	// Properties is the full property bag of the post.
	Properties Properties
}

// String returns the property as a string. A list yields its first string.
func (p Properties) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				return s
			}
		}
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// Strings returns the property as a list of strings. A scalar string is
// treated as a one-element list; non-string list items are dropped.
func (p Properties) Strings(key string) []string {
	switch v := p[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Has reports whether the property is present.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// ContentText returns the plain-text content of the post. Content may be a
// bare string or an object with text and html members.
func (p Properties) ContentText() string {
	switch v := p[PropContent].(type) {
	case string:
		return v
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
		if html, ok := v["html"].(string); ok {
			return html
		}
	}
	return ""
}

// StatusText composes the text a syndication target should publish for a
// post, limited to maxRunes characters. Articles (posts with a name) are
// shared as their name followed by the URL. Notes use their content and get
// the URL appended only when the content has to be truncated.
func StatusText(props Properties, maxRunes int) string {
	postURL := props.String(PropURL)

	if name := strings.TrimSpace(props.String(PropName)); name != "" {
		return withLink(name, postURL, maxRunes)
	}

	text := strings.TrimSpace(props.ContentText())
	if len([]rune(text)) <= maxRunes {
		return text
	}
	return withLink(text, postURL, maxRunes)
}

func withLink(text, link string, maxRunes int) string {
	if link == "" {
		return truncate(text, maxRunes)
	}
	budget := maxRunes - len([]rune(link)) - 1
	if budget <= 0 {
		return truncate(link, maxRunes)
	}
	return truncate(text, budget) + " " + link
}

// truncate returns the first n runes of s, ending in an ellipsis if cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

// NewPost builds a Post from a property bag, deriving the identity URL,
// published time and status from the properties themselves.
func NewPost(props Properties) (*Post, error) {
	postURL := props.String(PropURL)
	if postURL == "" {
		return nil, fmt.Errorf("post has no %s property", PropURL)
	}

	post := &Post{
		URL:        postURL,
		Status:     StatusPublished,
		Properties: props,
	}

	if s := props.String(PropPostStatus); s != "" {
		post.Status = PostStatus(s)
	}

	if s := props.String(PropPublished); s != "" {
		published, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", PropPublished, s, err)
		}
		post.Published = published.UTC()
	}

	return post, nil
}
