package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/blackmichael/syndicator/internal/domain"
)

// maxCharacters is the default status length limit of a Mastodon instance.
const maxCharacters = 500

// Syndicator delivers posts to a Mastodon account as public statuses. It
// implements domain.Target.
type Syndicator struct {
	instance    string
	user        string
	accessToken string
	limiter     *rate.Limiter
	httpClient  *http.Client
}

// NewSyndicator creates a Syndicator posting to the given instance URL as
// user. A nil limiter disables client-side rate limiting.
func NewSyndicator(instance, user, accessToken string, limiter *rate.Limiter) (*Syndicator, error) {
	u, err := url.Parse(instance)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid instance URL %q", instance)
	}
	return &Syndicator{
		instance:    u.Scheme + "://" + u.Host,
		user:        strings.TrimPrefix(user, "@"),
		accessToken: accessToken,
		limiter:     limiter,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Info returns the account's profile URL as the target identity.
func (s *Syndicator) Info() domain.TargetInfo {
	host := strings.TrimPrefix(strings.TrimPrefix(s.instance, "https://"), "http://")
	return domain.TargetInfo{
		UID:  s.instance + "/@" + s.user,
		Name: "@" + s.user + "@" + host,
	}
}

type statusRequest struct {
	Status     string `json:"status"`
	Visibility string `json:"visibility"`
	Language   string `json:"language,omitempty"`
}

type statusResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Syndicate publishes a status and returns its URL.
func (s *Syndicator) Syndicate(ctx context.Context, props domain.Properties, _ *domain.Publication) (string, error) {
	text := domain.StatusText(props, maxCharacters)
	if text == "" {
		return "", fmt.Errorf("post has no text to syndicate")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for rate limit: %w", err)
		}
	}

	payload, err := json.Marshal(statusRequest{
		Status:     text,
		Visibility: "public",
		Language:   props.String("lang"),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.instance+"/api/v1/statuses", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	// One key per delivery attempt.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return status.URL, nil
}
