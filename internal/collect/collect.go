package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"papertrends/internal/domain"
)

// Window bounds one collection pass to a trailing time window. Fetch depth
// (top-K raw items before merge) is per-platform configuration carried by
// each collector.
type Window struct {
	Since time.Time
}

// Collector pulls raw paper mentions from one discussion platform.
type Collector interface {
	Source() domain.Source
	Collect(ctx context.Context, win Window) ([]domain.SourceMention, error)
}

// Registry keeps the mapping from platform names to their collectors.
type Registry struct {
	collectors map[domain.Source]Collector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[domain.Source]Collector{}}
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[domain.Source]Collector{}
	}
	r.collectors[c.Source()] = c
}

// Resolve returns a collector by source or an error if it is absent.
func (r *Registry) Resolve(source domain.Source) (Collector, error) {
	if c, ok := r.collectors[source]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collector %s is not registered", source)
}

// Result is one collector's outcome inside a gather pass.
type Result struct {
	Source   domain.Source
	Mentions []domain.SourceMention
	Err      error
}

// Gatherer runs all registered collectors concurrently and merges their
// output. Collectors share no mutable state; results meet only here.
type Gatherer struct {
	registry *Registry
	logger   *slog.Logger
}

// NewGatherer wires the registry with a logger.
func NewGatherer(reg *Registry, log *slog.Logger) *Gatherer {
	return &Gatherer{registry: reg, logger: log}
}

// Gather executes every collector in its own goroutine and returns the merged
// mention set plus per-source errors. A failing source degrades the run, it
// never fails it; the caller decides whether an empty total is acceptable.
func (g *Gatherer) Gather(ctx context.Context, win Window) ([]domain.SourceMention, map[domain.Source]error) {
	sources := make([]Collector, 0, len(g.registry.collectors))
	for _, c := range g.registry.collectors {
		sources = append(sources, c)
	}

	results := make([]Result, len(sources))
	var wg sync.WaitGroup
	for i, c := range sources {
		wg.Add(1)
		go func(i int, c Collector) {
			defer wg.Done()
			mentions, err := c.Collect(ctx, win)
			results[i] = Result{Source: c.Source(), Mentions: mentions, Err: err}
		}(i, c)
	}
	wg.Wait()

	var merged []domain.SourceMention
	errs := map[domain.Source]error{}
	for _, res := range results {
		if res.Err != nil {
			g.warn("source collection failed", "source", res.Source, "error", res.Err)
			errs[res.Source] = res.Err
			continue
		}
		g.debug("source collected", "source", res.Source, "mentions", len(res.Mentions))
		merged = append(merged, res.Mentions...)
	}

	return merged, errs
}

func (g *Gatherer) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}

func (g *Gatherer) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}
