// Package events publishes tool lifecycle events to an optional webhook so a
// frontend can render tool activity while the agent speaks.
package eventsx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResultChars = 200

type Config struct {
	URL     string        `split_words:"true"`
	Token   string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"5s"`
}

type Event struct {
	Type      string  `json:"type"` // "tool_start" or "tool_end"
	Tool      string  `json:"tool"`
	SessionID string  `json:"session_id"`
	Timestamp float64 `json:"timestamp"`
	Result    string  `json:"result,omitempty"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns nil with no error when no URL is configured; a nil
// *Client is safe to publish on and does nothing.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, nil
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Publish posts a single event. Long results are truncated before sending.
func (c *Client) Publish(ctx context.Context, ev Event) error {
	if c == nil {
		return nil
	}
	if strings.TrimSpace(ev.Tool) == "" {
		return errors.New("event tool name is empty")
	}
	if len(ev.Result) > maxResultChars {
		ev.Result = ev.Result[:maxResultChars]
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = float64(time.Now().UnixMilli()) / 1000
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("event webhook status=%d", resp.StatusCode)
	}
	return nil
}
