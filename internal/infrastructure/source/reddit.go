// Package source contains the per-platform collectors. Each one is a pure
// data-source adapter: fetch raw items in the trailing window, emit
// normalized mentions, share nothing.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"papertrends/internal/collect"
	"papertrends/internal/config"
	"papertrends/internal/domain"
	"papertrends/pkg/arxivid"
)

const userAgent = "papertrends/1.0"

// RedditCollector searches Reddit for submissions linking arXiv papers.
type RedditCollector struct {
	client   *http.Client
	endpoint string
	query    string
	depth    int
	now      func() time.Time
}

var _ collect.Collector = (*RedditCollector)(nil)

// NewRedditCollector wires an HTTP client; a nil client gets a 20s timeout.
func NewRedditCollector(client *http.Client, cfg config.SourceConfig) *RedditCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RedditCollector{client: client, endpoint: cfg.Endpoint, query: cfg.Query, depth: cfg.Depth, now: time.Now}
}

// Source identifies the collector inside the registry.
func (r *RedditCollector) Source() domain.Source {
	return domain.SourceReddit
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				URL         string  `json:"url"`
				Permalink   string  `json:"permalink"`
				Score       float64 `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Collect fetches top submissions for the window and emits one mention per
// distinct arXiv id a submission references.
func (r *RedditCollector) Collect(ctx context.Context, win collect.Window) ([]domain.SourceMention, error) {
	endpoint, err := url.Parse(r.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid reddit endpoint: %w", err)
	}

	q := endpoint.Query()
	q.Set("q", r.query)
	q.Set("sort", "top")
	q.Set("t", timeFilter(r.now(), win.Since))
	q.Set("limit", strconv.Itoa(r.depth))
	q.Set("raw_json", "1")
	endpoint.RawQuery = q.Encode()

	var listing redditListing
	if err := getJSON(ctx, r.client, endpoint.String(), "", &listing); err != nil {
		return nil, fmt.Errorf("reddit search: %w", err)
	}

	var mentions []domain.SourceMention
	for _, child := range listing.Data.Children {
		sub := child.Data
		observedAt := time.Unix(int64(sub.CreatedUTC), 0).UTC()
		if observedAt.Before(win.Since) {
			continue
		}

		ids := arxivid.ExtractAll(sub.Selftext + "\n" + sub.URL)
		for _, id := range ids {
			mentions = append(mentions, domain.SourceMention{
				Source:     domain.SourceReddit,
				RawID:      sub.ID,
				PaperID:    id,
				Title:      sub.Title,
				URL:        "https://www.reddit.com" + sub.Permalink,
				Engagement: sub.Score,
				Comments:   sub.NumComments,
				ObservedAt: observedAt,
			})
		}
	}

	return mentions, nil
}

// timeFilter maps the window start onto Reddit's coarse t parameter, measured
// against the same reference time the window was derived from.
func timeFilter(now, since time.Time) string {
	age := now.Sub(since)
	switch {
	case age <= 24*time.Hour:
		return "day"
	case age <= 7*24*time.Hour:
		return "week"
	case age <= 31*24*time.Hour:
		return "month"
	case age <= 366*24*time.Hour:
		return "year"
	default:
		return "all"
	}
}

// getJSON issues a GET with the shared user agent and decodes a JSON body.
func getJSON(ctx context.Context, client *http.Client, rawURL, accept string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
