// Package resolve implements identity resolution: folding per-platform
// mentions into one candidate per canonical paper identifier.
package resolve

import (
	"context"
	"log/slog"
	"sort"

	"papertrends/internal/domain"
	"papertrends/internal/ports"
	"papertrends/pkg/arxivid"
)

// Resolver merges source mentions into candidates keyed by canonical paper
// id. Mentions without a platform-level arXiv reference go through the lookup
// collaborator; a failed lookup drops that mention only.
type Resolver struct {
	lookup ports.Resolver
	logger *slog.Logger
}

// New wires the external lookup collaborator.
func New(lookup ports.Resolver, log *slog.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: log}
}

// Result carries the merged candidate set and the number of mentions dropped
// by failed resolution.
type Result struct {
	Candidates map[string]*domain.Candidate
	Dropped    int
}

// Merge produces at most one candidate per paper id. The output is identical
// for any permutation of the input: mentions are processed in collection
// order, defined as (ObservedAt, Source, RawID).
func (r *Resolver) Merge(ctx context.Context, mentions []domain.SourceMention) (Result, error) {
	ordered := make([]domain.SourceMention, len(mentions))
	copy(ordered, mentions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.Before(b.ObservedAt)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.RawID < b.RawID
	})

	result := Result{Candidates: map[string]*domain.Candidate{}}
	for _, mention := range ordered {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		id, ok := r.canonicalID(ctx, mention)
		if !ok {
			result.Dropped++
			continue
		}

		mention.PaperID = id
		if existing, found := result.Candidates[id]; found {
			existing.Mentions = append(existing.Mentions, mention)
			continue
		}
		result.Candidates[id] = &domain.Candidate{
			PaperID:  id,
			Title:    mention.Title,
			Mentions: []domain.SourceMention{mention},
		}
	}

	return result, nil
}

func (r *Resolver) canonicalID(ctx context.Context, mention domain.SourceMention) (string, bool) {
	if id, ok := arxivid.Normalize(mention.PaperID); ok {
		return id, true
	}
	if id, ok := arxivid.FromURL(mention.URL); ok {
		return id, true
	}

	if r.lookup == nil {
		r.warn("mention dropped, no lookup collaborator", "source", mention.Source, "raw_id", mention.RawID)
		return "", false
	}

	id, err := r.lookup.Resolve(ctx, mention)
	if err != nil {
		r.warn("mention dropped, resolution failed",
			"source", mention.Source, "raw_id", mention.RawID, "error", err)
		return "", false
	}

	normalized, ok := arxivid.Normalize(id)
	if !ok {
		r.warn("mention dropped, lookup returned invalid id",
			"source", mention.Source, "raw_id", mention.RawID, "id", id)
		return "", false
	}
	return normalized, true
}

func (r *Resolver) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
