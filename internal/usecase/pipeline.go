package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"papertrends/internal/collect"
	"papertrends/internal/domain"
	"papertrends/internal/ports"
	"papertrends/internal/rank"
	"papertrends/internal/resolve"
)

// PipelineDeps wires the stages and collaborators into the orchestration.
type PipelineDeps struct {
	Gatherer *collect.Gatherer
	Resolver *resolve.Resolver
	Ranker   *rank.Ranker
	Ledger   ports.Ledger
	Enricher ports.Enricher
	Fanout   *Fanout
	Logger   *slog.Logger
}

// PipelineConfig bounds one run.
type PipelineConfig struct {
	WindowDays int
	TopN       int
}

// Pipeline is the aggregation-dedup-publish workflow: collect, resolve,
// rank, filter against the ledger snapshot, enrich, fan out, record.
type Pipeline struct {
	deps PipelineDeps
	cfg  PipelineConfig
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	return &Pipeline{deps: deps, cfg: cfg}
}

// Run executes one bounded batch run. Only ledger I/O errors abort it;
// everything else degrades per item per the error taxonomy.
func (p *Pipeline) Run(ctx context.Context, runID string, now time.Time) (domain.RunReport, error) {
	report := domain.RunReport{RunID: runID, StartedAt: now.UTC()}
	log := p.deps.Logger

	// The snapshot comes first: without a trustworthy dedup state no
	// publishing may happen at all.
	snapshot, err := p.deps.Ledger.Snapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("ledger snapshot: %w", err)
	}

	win := collect.Window{Since: now.Add(-time.Duration(p.cfg.WindowDays) * 24 * time.Hour)}
	mentions, sourceErrs := p.deps.Gatherer.Gather(ctx, win)
	report.Collected = len(mentions)
	report.SourceErrors = sourceErrs

	merged, err := p.deps.Resolver.Merge(ctx, mentions)
	if err != nil {
		return report, fmt.Errorf("resolve mentions: %w", err)
	}
	report.Dropped = merged.Dropped
	report.Merged = len(merged.Candidates)

	ranked := p.deps.Ranker.Rank(merged.Candidates)
	report.Ranked = len(ranked)

	// Filter against the snapshot taken at run start; entries recorded later
	// in this run are not re-checked, so each paper is considered once.
	fresh := make(domain.RankedList, 0, len(ranked))
	for _, candidate := range ranked {
		if snapshot[candidate.PaperID] {
			continue
		}
		fresh = append(fresh, candidate)
	}
	selected := fresh.TopN(p.cfg.TopN)

	for i, candidate := range selected {
		enrichment, err := p.deps.Enricher.Enrich(ctx, candidate)
		if err != nil {
			// Not ledger-recorded; the paper stays eligible next run.
			report.Skipped++
			if log != nil {
				log.Warn("candidate skipped, enrichment failed",
					"paper_id", candidate.PaperID, "error", err)
			}
			continue
		}

		announcement := domain.Announcement{
			Candidate:  candidate,
			Enrichment: enrichment,
			Rank:       i + 1,
			Total:      len(selected),
		}

		results, err := p.deps.Fanout.Deliver(ctx, announcement)
		report.Results = append(report.Results, results...)
		if err != nil {
			return report, err
		}

		announced := false
		for _, res := range results {
			if res.Outcome == domain.OutcomeSuccess {
				announced = true
				break
			}
		}
		switch {
		case announced:
			report.Announced++
		case len(results) == 0:
			// No channels configured; nothing was attempted, so the paper is
			// skipped, not failed, and stays eligible next run.
			report.Skipped++
		default:
			report.Failed++
		}
	}

	if log != nil {
		log.Info("run complete",
			"run_id", report.RunID,
			"collected", report.Collected,
			"dropped", report.Dropped,
			"merged", report.Merged,
			"ranked", report.Ranked,
			"announced", report.Announced,
			"skipped", report.Skipped,
			"failed", report.Failed,
			"source_errors", len(report.SourceErrors))
	}

	return report, nil
}
