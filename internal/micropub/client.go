package micropub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/blackmichael/syndicator/internal/domain"
)

// Client commits post updates through a Micropub endpoint. It implements
// domain.PostUpdater.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a Micropub client for the given endpoint and bearer
// token.
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type updateRequest struct {
	Action  string              `json:"action"`
	URL     string              `json:"url"`
	Replace map[string][]string `json:"replace,omitempty"`
	Delete  []string            `json:"delete,omitempty"`
}

// UpdatePost sends a Micropub update action. Any non-2xx response is an
// error.
func (c *Client) UpdatePost(ctx context.Context, update *domain.Update) error {
	payload, err := json.Marshal(updateRequest{
		Action:  "update",
		URL:     update.URL,
		Replace: update.Replace,
		Delete:  update.Delete,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("micropub error (status %d): %s", resp.StatusCode, describeError(body))
	}

	return nil
}

// describeError extracts error_description from a Micropub error body,
// falling back to the raw body.
func describeError(body []byte) string {
	var e struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		if e.Description != "" {
			return e.Error + ": " + e.Description
		}
		return e.Error
	}
	return string(body)
}
