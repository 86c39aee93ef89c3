package arxiv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"papertrends/internal/domain"
	"papertrends/internal/ports"
)

const atomFeedBody = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.00001v2</id>
    <title>Sparse Attention
  at Scale</title>
    <summary>We study sparse
  attention mechanisms.</summary>
    <published>2023-01-02T18:00:00Z</published>
    <updated>2023-01-10T08:30:00Z</updated>
    <author><name>A. Researcher</name></author>
    <author><name>B. Scientist</name></author>
    <category term="cs.LG"/>
    <category term="cs.CL"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2302.99999v1</id>
    <title>Instruction Tuning Survey</title>
    <summary>A survey.</summary>
    <published>2023-02-20T12:00:00Z</published>
    <updated>2023-02-20T12:00:00Z</updated>
    <author><name>C. Author</name></author>
    <category term="cs.CL"/>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL)
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	var gotIDList string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotIDList = r.URL.Query().Get("id_list")
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(atomFeedBody))
	})

	papers, err := c.Metadata(context.Background(), []string{"2301.00001", "2302.99999"})
	if err != nil {
		t.Fatalf("Metadata error: %v", err)
	}

	if gotIDList != "2301.00001,2302.99999" {
		t.Fatalf("unexpected id_list: %q", gotIDList)
	}
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}

	p, ok := papers["2301.00001"]
	if !ok {
		t.Fatal("version suffix must be stripped from the entry id")
	}
	if p.Title != "Sparse Attention at Scale" {
		t.Fatalf("whitespace not collapsed: %q", p.Title)
	}
	if p.Summary != "We study sparse attention mechanisms." {
		t.Fatalf("summary not collapsed: %q", p.Summary)
	}
	if len(p.Authors) != 2 || p.Authors[0] != "A. Researcher" {
		t.Fatalf("unexpected authors: %v", p.Authors)
	}
	if len(p.Categories) != 2 || p.Categories[0] != "cs.LG" {
		t.Fatalf("unexpected categories: %v", p.Categories)
	}
	if !p.PublishedAt.Equal(time.Date(2023, time.January, 2, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time: %v", p.PublishedAt)
	}
}

func TestMetadataMissingIDsAbsent(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	})

	papers, err := c.Metadata(context.Background(), []string{"2309.00000"})
	if err != nil {
		t.Fatalf("Metadata error: %v", err)
	}
	if len(papers) != 0 {
		t.Fatalf("unknown ids must be absent, got %v", papers)
	}
}

func TestResolveByTitle(t *testing.T) {
	t.Parallel()

	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Write([]byte(atomFeedBody))
	})

	id, err := c.Resolve(context.Background(), domain.SourceMention{
		Title: `Sparse "Attention" at Scale`,
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if id != "2301.00001" {
		t.Fatalf("unexpected id: %s", id)
	}
	if gotQuery != `ti:"Sparse Attention at Scale"` {
		t.Fatalf("quotes must be stripped from the title query, got %q", gotQuery)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	})

	_, err := c.Resolve(context.Background(), domain.SourceMention{Title: "No Such Paper"})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveEmptyTitle(t *testing.T) {
	t.Parallel()

	c := NewClient(nil, "http://127.0.0.1:0")
	if _, err := c.Resolve(context.Background(), domain.SourceMention{}); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("empty title must short-circuit to ErrNotFound, got %v", err)
	}
}
