// Package translate provides abstract translation through the DeepL API with
// a persistent cross-run cache.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DeepL is an HTTP client for the v2 translate endpoint.
type DeepL struct {
	httpClient *http.Client
	endpoint   string
	authKey    string
	targetLang string
	cache      *Cache
	now        func() time.Time
}

// NewDeepL wires the client; the cache may be nil, which disables caching.
func NewDeepL(client *http.Client, endpoint, authKey, targetLang string, cache *Cache) *DeepL {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &DeepL{
		httpClient: client,
		endpoint:   endpoint,
		authKey:    authKey,
		targetLang: targetLang,
		cache:      cache,
		now:        time.Now,
	}
}

// Translate returns the target-language rendition of text, served from the
// cache when the paper was translated in a previous run.
func (d *DeepL) Translate(ctx context.Context, paperID, text string) (string, error) {
	if d.cache != nil {
		if cached, ok, err := d.cache.Get(ctx, paperID, d.targetLang); err != nil {
			return "", err
		} else if ok {
			return cached, nil
		}
	}

	translated, err := d.request(ctx, text)
	if err != nil {
		return "", err
	}

	if d.cache != nil {
		if err := d.cache.Put(ctx, paperID, d.targetLang, translated, d.now()); err != nil {
			return "", err
		}
	}
	return translated, nil
}

func (d *DeepL) request(ctx context.Context, text string) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", d.targetLang)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.authKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("deepl error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Translations) == 0 {
		return "", fmt.Errorf("deepl returned no translations")
	}
	return parsed.Translations[0].Text, nil
}
