// Package render talks to the summary-image render service: HTML in, a
// hosted image handle out.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client posts announcement HTML to the render service.
type Client struct {
	httpClient *http.Client
	serviceURL string
}

// NewClient wires the service URL; a nil client gets a 30s timeout.
func NewClient(client *http.Client, serviceURL string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: client, serviceURL: serviceURL}
}

// Render submits HTML and returns the handle of the rendered image.
func (c *Client) Render(ctx context.Context, html string) (string, error) {
	body, err := json.Marshal(map[string]any{"html": html, "width": 1200})
	if err != nil {
		return "", fmt.Errorf("marshal render payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render service returned %s", resp.Status)
	}

	var parsed struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return parsed.Handle, nil
}
