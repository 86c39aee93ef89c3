package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"papertrends/internal/collect"
	"papertrends/internal/config"
	"papertrends/internal/domain"
	"papertrends/pkg/arxivid"
)

// HuggingFaceCollector scrapes the daily-papers listing. Paper cards carry a
// /papers/<arxiv-id> link, an upvote count, and optionally a <time> element.
type HuggingFaceCollector struct {
	client   *http.Client
	endpoint string
	depth    int
	now      func() time.Time
}

var _ collect.Collector = (*HuggingFaceCollector)(nil)

// NewHuggingFaceCollector wires an HTTP client; a nil client gets a 20s timeout.
func NewHuggingFaceCollector(client *http.Client, cfg config.SourceConfig) *HuggingFaceCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HuggingFaceCollector{client: client, endpoint: cfg.Endpoint, depth: cfg.Depth, now: time.Now}
}

// Source identifies the collector inside the registry.
func (h *HuggingFaceCollector) Source() domain.Source {
	return domain.SourceHuggingFace
}

// Collect fetches and parses the listing page, emitting one mention per paper
// card up to the configured depth.
func (h *HuggingFaceCollector) Collect(ctx context.Context, win collect.Window) ([]domain.SourceMention, error) {
	doc, err := h.fetchDocument(ctx, h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("huggingface papers: %w", err)
	}

	seen := map[string]struct{}{}
	var mentions []domain.SourceMention

	doc.Find("article").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(mentions) >= h.depth {
			return false
		}

		link := card.Find(`a[href^="/papers/"]`).First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		rawID := strings.TrimPrefix(href, "/papers/")
		if i := strings.IndexByte(rawID, '#'); i >= 0 {
			rawID = rawID[:i]
		}
		id, ok := arxivid.Normalize(rawID)
		if !ok {
			return true
		}
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}

		observedAt := h.parseObservedAt(card)
		if observedAt.Before(win.Since) {
			return true
		}

		mentions = append(mentions, domain.SourceMention{
			Source:     domain.SourceHuggingFace,
			RawID:      id,
			PaperID:    id,
			Title:      strings.TrimSpace(link.Text()),
			URL:        "https://huggingface.co" + href,
			Engagement: parseUpvotes(card),
			ObservedAt: observedAt,
		})
		return true
	})

	return mentions, nil
}

func (h *HuggingFaceCollector) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// parseObservedAt reads the card's <time datetime="..."> if present; the
// listing is a daily page, so collection time is an acceptable fallback.
func (h *HuggingFaceCollector) parseObservedAt(card *goquery.Selection) time.Time {
	if raw, ok := card.Find("time").First().Attr("datetime"); ok {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed.UTC()
			}
		}
	}
	return h.now().UTC()
}

// parseUpvotes returns the first all-digit leaf text inside the card, which
// is the vote counter on the listing markup.
func parseUpvotes(card *goquery.Selection) float64 {
	var votes float64
	card.Find("div,span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		if n, err := strconv.Atoi(text); err == nil && n >= 0 {
			votes = float64(n)
			return false
		}
		return true
	})
	return votes
}
