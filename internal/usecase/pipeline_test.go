package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"papertrends/internal/collect"
	"papertrends/internal/domain"
	"papertrends/internal/ledger"
	"papertrends/internal/ports"
	"papertrends/internal/rank"
	"papertrends/internal/resolve"
)

type fakeCollector struct {
	source   domain.Source
	mentions []domain.SourceMention
	err      error
}

func (c *fakeCollector) Source() domain.Source { return c.source }

func (c *fakeCollector) Collect(context.Context, collect.Window) ([]domain.SourceMention, error) {
	return c.mentions, c.err
}

type fakeEnricher struct {
	failIDs map[string]bool
}

func (e *fakeEnricher) Enrich(_ context.Context, candidate domain.Candidate) (domain.Enrichment, error) {
	if e.failIDs[candidate.PaperID] {
		return domain.Enrichment{}, errors.New("metadata unavailable")
	}
	return domain.Enrichment{Title: "enriched-" + candidate.PaperID}, nil
}

type recordingPublisher struct {
	name string

	mu       sync.Mutex
	paperIDs []string
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) Publish(_ context.Context, a domain.Announcement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paperIDs = append(p.paperIDs, a.Candidate.PaperID)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paperIDs...)
}

func newTestPipeline(collectors []collect.Collector, led ports.Ledger, enricher ports.Enricher, fan *Fanout, topN int) *Pipeline {
	reg := collect.NewRegistry()
	for _, c := range collectors {
		reg.Register(c)
	}
	return NewPipeline(PipelineDeps{
		Gatherer: collect.NewGatherer(reg, slog.New(slog.NewTextHandler(io.Discard, nil))),
		Resolver: resolve.New(nil, nil),
		Ranker: rank.New(rank.Policy{
			Weights: map[domain.Source]float64{
				domain.SourceReddit:      1.0,
				domain.SourceHackerNews:  1.0,
				domain.SourceHuggingFace: 1.0,
			},
			Normalization: rank.NormalizeNone,
		}),
		Ledger:   led,
		Enricher: enricher,
		Fanout:   fan,
	}, PipelineConfig{WindowDays: 30, TopN: topN})
}

func runMentions(base time.Time) ([]domain.SourceMention, []domain.SourceMention) {
	reddit := []domain.SourceMention{
		{Source: domain.SourceReddit, RawID: "r1", PaperID: "2301.00001", Title: "Paper A", Engagement: 90, ObservedAt: base},
		{Source: domain.SourceReddit, RawID: "r2", PaperID: "2301.00002", Title: "Paper B", Engagement: 50, ObservedAt: base},
	}
	hn := []domain.SourceMention{
		{Source: domain.SourceHackerNews, RawID: "h1", PaperID: "2301.00003", Title: "Paper C", Engagement: 20, ObservedAt: base},
	}
	return reddit, hn
}

func TestPipelineRunHappyPath(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	redditMentions, hnMentions := runMentions(base)
	led := ledger.NewMemory()
	channel := &recordingPublisher{name: "slack"}
	fan := newTestFanout(led, 1, channel)

	p := newTestPipeline([]collect.Collector{
		&fakeCollector{source: domain.SourceReddit, mentions: redditMentions},
		&fakeCollector{source: domain.SourceHackerNews, mentions: hnMentions},
	}, led, &fakeEnricher{}, fan, 2)

	report, err := p.Run(context.Background(), "run-1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Collected != 3 || report.Merged != 3 || report.Ranked != 3 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Announced != 2 || report.Skipped != 0 || report.Failed != 0 {
		t.Fatalf("unexpected outcome counts: %+v", report)
	}

	published := channel.published()
	if len(published) != 2 || published[0] != "2301.00001" || published[1] != "2301.00002" {
		t.Fatalf("expected top-2 by engagement, got %v", published)
	}
	if !led.Contains("2301.00001") || !led.Contains("2301.00002") {
		t.Fatal("announced papers missing from ledger")
	}
	if led.Contains("2301.00003") {
		t.Fatal("unselected paper must not enter the ledger")
	}
}

// A paper announced by an earlier run must never be announced again, no
// matter how well it ranks today.
func TestPipelineFiltersAnnouncedPapers(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	redditMentions, hnMentions := runMentions(base)
	led := ledger.NewMemory()
	led.Seed("2301.00001")
	channel := &recordingPublisher{name: "slack"}
	fan := newTestFanout(led, 1, channel)

	p := newTestPipeline([]collect.Collector{
		&fakeCollector{source: domain.SourceReddit, mentions: redditMentions},
		&fakeCollector{source: domain.SourceHackerNews, mentions: hnMentions},
	}, led, &fakeEnricher{}, fan, 2)

	report, err := p.Run(context.Background(), "run-1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	published := channel.published()
	for _, id := range published {
		if id == "2301.00001" {
			t.Fatal("already-announced paper was republished")
		}
	}
	if len(published) != 2 || report.Announced != 2 {
		t.Fatalf("expected the next two candidates to fill the slots, got %v", published)
	}
}

func TestPipelineEnrichFailureSkipsCandidate(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	redditMentions, hnMentions := runMentions(base)
	led := ledger.NewMemory()
	channel := &recordingPublisher{name: "slack"}
	fan := newTestFanout(led, 1, channel)

	p := newTestPipeline([]collect.Collector{
		&fakeCollector{source: domain.SourceReddit, mentions: redditMentions},
		&fakeCollector{source: domain.SourceHackerNews, mentions: hnMentions},
	}, led, &fakeEnricher{failIDs: map[string]bool{"2301.00001": true}}, fan, 2)

	report, err := p.Run(context.Background(), "run-1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Skipped != 1 || report.Announced != 1 {
		t.Fatalf("expected 1 skip and 1 announcement, got %+v", report)
	}
	if led.Contains("2301.00001") {
		t.Fatal("skipped paper must stay eligible for the next run")
	}
}

func TestPipelineSourceFailureDegrades(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	redditMentions, _ := runMentions(base)
	led := ledger.NewMemory()
	channel := &recordingPublisher{name: "slack"}
	fan := newTestFanout(led, 1, channel)

	p := newTestPipeline([]collect.Collector{
		&fakeCollector{source: domain.SourceReddit, mentions: redditMentions},
		&fakeCollector{source: domain.SourceHackerNews, err: errors.New("api down")},
	}, led, &fakeEnricher{}, fan, 5)

	report, err := p.Run(context.Background(), "run-1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("one failing source must not abort the run: %v", err)
	}

	if report.SourceErrors[domain.SourceHackerNews] == nil {
		t.Fatalf("expected hackernews error in report, got %v", report.SourceErrors)
	}
	if report.Announced != 2 {
		t.Fatalf("surviving source's papers must still be announced, got %+v", report)
	}
}

// With no channels configured nothing is attempted, so selected candidates
// count as skipped, never failed, and do not enter the ledger.
func TestPipelineNoChannelsSkips(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	redditMentions, _ := runMentions(base)
	led := ledger.NewMemory()
	fan := newTestFanout(led, 1)

	p := newTestPipeline([]collect.Collector{
		&fakeCollector{source: domain.SourceReddit, mentions: redditMentions},
	}, led, &fakeEnricher{}, fan, 2)

	report, err := p.Run(context.Background(), "run-1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Skipped != 2 || report.Failed != 0 || report.Announced != 0 {
		t.Fatalf("expected 2 skipped and nothing failed, got %+v", report)
	}
	if led.Contains("2301.00001") || led.Contains("2301.00002") {
		t.Fatal("unattempted papers must not enter the ledger")
	}
}

type brokenSnapshotLedger struct{}

func (brokenSnapshotLedger) Snapshot(context.Context) (map[string]bool, error) {
	return nil, errors.New("db locked")
}

func (brokenSnapshotLedger) Record(context.Context, string, time.Time) error { return nil }

func TestPipelineSnapshotErrorIsFatal(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	redditMentions, _ := runMentions(base)
	channel := &recordingPublisher{name: "slack"}
	fan := newTestFanout(brokenSnapshotLedger{}, 1, channel)

	p := newTestPipeline([]collect.Collector{
		&fakeCollector{source: domain.SourceReddit, mentions: redditMentions},
	}, brokenSnapshotLedger{}, &fakeEnricher{}, fan, 2)

	if _, err := p.Run(context.Background(), "run-1", base.Add(time.Hour)); err == nil {
		t.Fatal("expected snapshot failure to abort the run")
	}
	if got := channel.published(); len(got) != 0 {
		t.Fatalf("nothing may publish without a dedup snapshot, got %v", got)
	}
}

func TestPipelineLedgerWriteErrorAborts(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	redditMentions, _ := runMentions(base)
	channel := &recordingPublisher{name: "slack"}
	fan := newTestFanout(failingLedger{}, 1, channel)

	p := newTestPipeline([]collect.Collector{
		&fakeCollector{source: domain.SourceReddit, mentions: redditMentions},
	}, failingLedger{}, &fakeEnricher{}, fan, 2)

	report, err := p.Run(context.Background(), "run-1", base.Add(time.Hour))
	if err == nil {
		t.Fatal("expected ledger write failure to abort the run")
	}
	// The aborted run still reports the results collected so far.
	if len(report.Results) == 0 {
		t.Fatal("expected partial results in the aborted report")
	}
}
