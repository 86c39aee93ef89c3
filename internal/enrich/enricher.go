// Package enrich assembles announcement material for selected candidates
// from the metadata, translation, and rendering collaborators.
package enrich

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"papertrends/internal/domain"
	"papertrends/internal/infrastructure/arxiv"
	"papertrends/internal/ports"
)

// summaryLimit bounds the abstract text sent to translation and rendering.
const summaryLimit = 2000

// Metadata supplies paper metadata for canonical ids.
type Metadata interface {
	Metadata(ctx context.Context, ids []string) (map[string]arxiv.Paper, error)
}

// Translator renders the abstract in the deployment's target language.
type Translator interface {
	Translate(ctx context.Context, paperID, text string) (string, error)
}

// Renderer produces a hosted image handle from announcement HTML.
type Renderer interface {
	Render(ctx context.Context, html string) (string, error)
}

// Enricher is the ports.Enricher implementation. Metadata failure skips the
// candidate; translation and rendering failures degrade the announcement but
// never drop it.
type Enricher struct {
	metadata   Metadata
	translator Translator
	renderer   Renderer
	logger     *slog.Logger
}

var _ ports.Enricher = (*Enricher)(nil)

// New wires the collaborators; translator and renderer may be nil when the
// deployment disables them.
func New(metadata Metadata, translator Translator, renderer Renderer, log *slog.Logger) *Enricher {
	return &Enricher{metadata: metadata, translator: translator, renderer: renderer, logger: log}
}

// Enrich fetches metadata for the candidate and attaches translation and a
// rendered image where available.
func (e *Enricher) Enrich(ctx context.Context, candidate domain.Candidate) (domain.Enrichment, error) {
	papers, err := e.metadata.Metadata(ctx, []string{candidate.PaperID})
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("metadata %s: %w", candidate.PaperID, err)
	}
	paper, ok := papers[candidate.PaperID]
	if !ok {
		return domain.Enrichment{}, fmt.Errorf("metadata %s: %w", candidate.PaperID, ports.ErrNotFound)
	}

	summary := truncate(paper.Summary, summaryLimit)
	enrichment := domain.Enrichment{
		Title:       paper.Title,
		Authors:     paper.Authors,
		Summary:     summary,
		Categories:  paper.Categories,
		PublishedAt: paper.PublishedAt,
	}

	if e.translator != nil {
		translated, err := e.translator.Translate(ctx, candidate.PaperID, summary)
		if err != nil {
			e.warn("translation unavailable", "paper_id", candidate.PaperID, "error", err)
		} else {
			enrichment.Translation = translated
		}
	}

	if e.renderer != nil {
		handle, err := e.renderer.Render(ctx, summaryHTML(enrichment, candidate.PaperID))
		if err != nil {
			e.warn("image rendering unavailable", "paper_id", candidate.PaperID, "error", err)
		} else {
			enrichment.ImageHandle = handle
		}
	}

	return enrichment, nil
}

// summaryHTML is the render-service input for one paper card.
func summaryHTML(en domain.Enrichment, paperID string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h1>" + html.EscapeString(en.Title) + "</h1>")
	b.WriteString("<p><em>" + html.EscapeString(strings.Join(en.Authors, ", ")) + "</em></p>")
	if en.Translation != "" {
		b.WriteString("<p>" + html.EscapeString(en.Translation) + "</p>")
	}
	b.WriteString("<p>" + html.EscapeString(en.Summary) + "</p>")
	b.WriteString("<p>https://arxiv.org/abs/" + html.EscapeString(paperID) + "</p>")
	b.WriteString("</body></html>")
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func (e *Enricher) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
