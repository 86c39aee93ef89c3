package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"papertrends/internal/config"
	"papertrends/internal/domain"
	"papertrends/internal/ports"
)

const (
	twitterDefaultBaseURL = "https://api.twitter.com"

	// tweetLimit is measured in display columns, with east-asian characters
	// counted twice.
	tweetLimit = 280
)

// Twitter posts announcements through the v2 tweets endpoint.
type Twitter struct {
	client      *http.Client
	baseURL     string
	bearerToken string
}

var _ ports.Publisher = (*Twitter)(nil)

// NewTwitter wires the bearer token.
func NewTwitter(client *http.Client, cfg config.TwitterConfig) *Twitter {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Twitter{
		client:      client,
		baseURL:     twitterDefaultBaseURL,
		bearerToken: cfg.BearerToken,
	}
}

// Name identifies the channel in publish results.
func (t *Twitter) Name() string { return "twitter" }

// Publish sends the clipped plain-text announcement.
func (t *Twitter) Publish(ctx context.Context, a domain.Announcement) error {
	if t.bearerToken == "" {
		return permanentError(t.Name(), fmt.Errorf("twitter publisher misconfigured"))
	}

	payload, err := json.Marshal(map[string]string{
		"text": clip(announcementText(a), tweetLimit),
	})
	if err != nil {
		return permanentError(t.Name(), fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return permanentError(t.Name(), err)
	}
	req.Header.Set("Authorization", "Bearer "+t.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return transportError(t.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return statusError(t.Name(), resp.StatusCode)
	}
	return nil
}
