package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"papertrends/internal/config"
	"papertrends/internal/domain"
	"papertrends/internal/ports"
)

// postLimit is the ATP post grapheme budget, east-asian characters counted
// twice to stay under it in every locale.
const postLimit = 300

// Bluesky posts announcements via the ATP repo.createRecord endpoint,
// creating a session on first use.
type Bluesky struct {
	client     *http.Client
	service    string
	identifier string
	password   string

	mu        sync.Mutex
	accessJwt string
	did       string

	now func() time.Time
}

var _ ports.Publisher = (*Bluesky)(nil)

// NewBluesky wires ATP credentials against the configured PDS.
func NewBluesky(client *http.Client, cfg config.BlueskyConfig) *Bluesky {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Bluesky{
		client:     client,
		service:    cfg.Service,
		identifier: cfg.Identifier,
		password:   cfg.Password,
		now:        time.Now,
	}
}

// Name identifies the channel in publish results.
func (b *Bluesky) Name() string { return "bluesky" }

// Publish creates one app.bsky.feed.post record.
func (b *Bluesky) Publish(ctx context.Context, a domain.Announcement) error {
	if b.identifier == "" || b.password == "" {
		return permanentError(b.Name(), fmt.Errorf("bluesky publisher misconfigured"))
	}

	jwt, did, err := b.session(ctx)
	if err != nil {
		return err
	}

	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      clip(announcementText(a), postLimit),
		"createdAt": b.now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(map[string]any{
		"repo":       did,
		"collection": "app.bsky.feed.post",
		"record":     record,
	})
	if err != nil {
		return permanentError(b.Name(), fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.service+"/xrpc/com.atproto.repo.createRecord", bytes.NewReader(payload))
	if err != nil {
		return permanentError(b.Name(), err)
	}
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return transportError(b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			// Session may have expired; drop it so the retry logs in again.
			b.mu.Lock()
			b.accessJwt = ""
			b.mu.Unlock()
			return &Error{Channel: b.Name(), Status: resp.StatusCode, Retriable: true,
				Err: fmt.Errorf("session expired")}
		}
		return statusError(b.Name(), resp.StatusCode)
	}
	return nil
}

// session returns the cached access token, logging in when needed.
func (b *Bluesky) session(ctx context.Context) (string, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessJwt != "" {
		return b.accessJwt, b.did, nil
	}

	payload, err := json.Marshal(map[string]string{
		"identifier": b.identifier,
		"password":   b.password,
	})
	if err != nil {
		return "", "", permanentError(b.Name(), fmt.Errorf("marshal session payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.service+"/xrpc/com.atproto.server.createSession", bytes.NewReader(payload))
	if err != nil {
		return "", "", permanentError(b.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", "", transportError(b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", statusError(b.Name(), resp.StatusCode)
	}

	var parsed struct {
		AccessJwt string `json:"accessJwt"`
		Did       string `json:"did"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", transportError(b.Name(), fmt.Errorf("decode session: %w", err))
	}

	b.accessJwt = parsed.AccessJwt
	b.did = parsed.Did
	return b.accessJwt, b.did, nil
}
