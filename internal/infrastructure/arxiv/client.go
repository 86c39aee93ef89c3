// Package arxiv speaks the export API: Atom metadata lookup for known ids
// and title search for unresolved mentions.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"papertrends/internal/domain"
	"papertrends/internal/ports"
	"papertrends/pkg/arxivid"
)

const (
	// chunkSize bounds id_list length per request, matching the export API's
	// comfortable page size.
	chunkSize = 100

	// The export API asks for no more than one request every three seconds.
	requestInterval = 3 * time.Second
)

// Paper is the metadata returned for one arXiv entry.
type Paper struct {
	ID          string
	Title       string
	Summary     string
	Authors     []string
	Categories  []string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// Client is a rate-limited export API client.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
}

var _ ports.Resolver = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a 30s timeout.
func NewClient(client *http.Client, endpoint string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: client,
		endpoint:   endpoint,
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// Metadata looks up entries for the given ids, chunked per request, keyed by
// normalized id. Ids the API does not return are simply absent.
func (c *Client) Metadata(ctx context.Context, ids []string) (map[string]Paper, error) {
	papers := make(map[string]Paper, len(ids))

	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		params := url.Values{}
		params.Set("id_list", strings.Join(chunk, ","))
		params.Set("max_results", strconv.Itoa(len(chunk)))

		feed, err := c.query(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("metadata chunk: %w", err)
		}

		for _, entry := range feed.Entries {
			paper, ok := entry.toPaper()
			if !ok {
				continue
			}
			papers[paper.ID] = paper
		}
	}

	return papers, nil
}

// Resolve maps a mention to a canonical id via exact title search.
func (c *Client) Resolve(ctx context.Context, mention domain.SourceMention) (string, error) {
	title := strings.TrimSpace(mention.Title)
	if title == "" {
		return "", ports.ErrNotFound
	}

	params := url.Values{}
	params.Set("search_query", `ti:"`+sanitizeQuery(title)+`"`)
	params.Set("max_results", "1")

	feed, err := c.query(ctx, params)
	if err != nil {
		return "", fmt.Errorf("title search: %w", err)
	}
	if len(feed.Entries) == 0 {
		return "", ports.ErrNotFound
	}

	id, ok := arxivid.FromURL(feed.Entries[0].ID)
	if !ok {
		return "", ports.ErrNotFound
	}
	return id, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*atomFeed, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "papertrends/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &feed, nil
}

func (e atomEntry) toPaper() (Paper, bool) {
	id, ok := arxivid.FromURL(e.ID)
	if !ok {
		return Paper{}, false
	}

	paper := Paper{
		ID:      id,
		Title:   collapseWhitespace(e.Title),
		Summary: collapseWhitespace(e.Summary),
	}
	for _, a := range e.Authors {
		paper.Authors = append(paper.Authors, a.Name)
	}
	for _, cat := range e.Categories {
		paper.Categories = append(paper.Categories, cat.Term)
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		paper.PublishedAt = t
	}
	if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
		paper.UpdatedAt = t
	}
	return paper, true
}

// collapseWhitespace flattens the newline-wrapped text the Atom feed emits.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sanitizeQuery strips quotes that would break the search expression.
func sanitizeQuery(s string) string {
	return strings.NewReplacer(`"`, "", `'`, "").Replace(s)
}
