package source

import (
	"context"
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

// HackerNewsCollector queries the Algolia HN search API for stories pointing
// at arXiv papers.
type HackerNewsCollector struct {
	client   *http.Client
	endpoint string
	query    string
	depth    int
}

var _ collect.Collector = (*HackerNewsCollector)(nil)

// NewHackerNewsCollector wires an HTTP client; a nil client gets a 20s timeout.
func NewHackerNewsCollector(client *http.Client, cfg config.SourceConfig) *HackerNewsCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HackerNewsCollector{client: client, endpoint: cfg.Endpoint, query: cfg.Query, depth: cfg.Depth}
}

// Source identifies the collector inside the registry.
func (h *HackerNewsCollector) Source() domain.Source {
	return domain.SourceHackerNews
}

type algoliaResponse struct {
	Hits []struct {
		ObjectID    string `json:"objectID"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		StoryText   string `json:"story_text"`
		Points      int    `json:"points"`
		NumComments int    `json:"num_comments"`
		CreatedAtI  int64  `json:"created_at_i"`
	} `json:"hits"`
}

// Collect fetches matching stories created inside the window. A story whose
// URL is an arXiv link resolves immediately; otherwise the mention is left
// unresolved for the identity resolver's lookup collaborator.
func (h *HackerNewsCollector) Collect(ctx context.Context, win collect.Window) ([]domain.SourceMention, error) {
	endpoint, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid hackernews endpoint: %w", err)
	}

	q := endpoint.Query()
	q.Set("query", h.query)
	q.Set("tags", "story")
	q.Set("numericFilters", "created_at_i>"+strconv.FormatInt(win.Since.Unix(), 10))
	q.Set("hitsPerPage", strconv.Itoa(h.depth))
	endpoint.RawQuery = q.Encode()

	var resp algoliaResponse
	if err := getJSON(ctx, h.client, endpoint.String(), "application/json", &resp); err != nil {
		return nil, fmt.Errorf("hackernews search: %w", err)
	}

	var mentions []domain.SourceMention
	for _, hit := range resp.Hits {
		mention := domain.SourceMention{
			Source:     domain.SourceHackerNews,
			RawID:      hit.ObjectID,
			Title:      hit.Title,
			URL:        "https://news.ycombinator.com/item?id=" + hit.ObjectID,
			Engagement: float64(hit.Points),
			Comments:   hit.NumComments,
			ObservedAt: time.Unix(hit.CreatedAtI, 0).UTC(),
		}

		if id, ok := arxivid.FromURL(hit.URL); ok {
			mention.PaperID = id
			mentions = append(mentions, mention)
			continue
		}

		if ids := arxivid.ExtractAll(hit.StoryText); len(ids) > 0 {
			for _, id := range ids {
				m := mention
				m.PaperID = id
				mentions = append(mentions, m)
			}
			continue
		}

		// No direct link; the resolver decides via title lookup.
		mentions = append(mentions, mention)
	}

	return mentions, nil
}
