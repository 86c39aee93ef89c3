package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"papertrends/internal/collect"
	"papertrends/internal/config"
	"papertrends/internal/domain"
	"papertrends/internal/enrich"
	"papertrends/internal/infrastructure/arxiv"
	"papertrends/internal/infrastructure/publish"
	"papertrends/internal/infrastructure/render"
	"papertrends/internal/infrastructure/source"
	"papertrends/internal/infrastructure/translate"
	"papertrends/internal/ledger"
	"papertrends/internal/logging"
	"papertrends/internal/ports"
	"papertrends/internal/rank"
	"papertrends/internal/resolve"
	"papertrends/internal/usecase"
)

// Options adjust a single invocation without touching the config file.
type Options struct {
	// DryRun replaces the channel adapters with a logging stub and keeps the
	// ledger untouched.
	DryRun bool
	// TopN overrides the configured announcement count when positive.
	TopN int
}

// Application wires config to the pipeline and owns the ledger database.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	db       *sql.DB
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	var (
		db  *sql.DB
		led ports.Ledger
		err error
	)
	if opts.DryRun {
		led = ledger.NewMemory()
	} else {
		db, err = ledger.OpenDB(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		led, err = ledger.NewSQLite(db)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	arxivClient := arxiv.NewClient(nil, cfg.Arxiv.Endpoint)

	var translator enrich.Translator
	if cfg.Translation.Enabled && cfg.Translation.AuthKey != "" {
		var cache *translate.Cache
		if db != nil {
			cache, err = translate.NewCache(db)
			if err != nil {
				db.Close()
				return nil, err
			}
			cutoff := time.Now().AddDate(0, 0, -cfg.Translation.CacheExpiryDays)
			if pruned, err := cache.Prune(context.Background(), cutoff); err != nil {
				baseLogger.Warn("translation cache prune failed", "error", err)
			} else if pruned > 0 {
				baseLogger.Debug("translation cache pruned", "entries", pruned)
			}
		}
		translator = translate.NewDeepL(nil, cfg.Translation.Endpoint,
			cfg.Translation.AuthKey, cfg.Translation.TargetLang, cache)
	}

	var renderer enrich.Renderer
	if cfg.Render.Enabled && cfg.Render.ServiceURL != "" {
		renderer = render.NewClient(nil, cfg.Render.ServiceURL)
	}

	registry := collect.NewRegistry()
	if cfg.Sources.Reddit.Enabled {
		registry.Register(source.NewRedditCollector(nil, cfg.Sources.Reddit))
	}
	if cfg.Sources.HackerNews.Enabled {
		registry.Register(source.NewHackerNewsCollector(nil, cfg.Sources.HackerNews))
	}
	if cfg.Sources.HuggingFace.Enabled {
		registry.Register(source.NewHuggingFaceCollector(nil, cfg.Sources.HuggingFace))
	}

	publishers := buildPublishers(cfg.Channels, opts, baseLogger)
	if len(publishers) == 0 {
		baseLogger.Warn("no publishing channels enabled")
	}

	weights := make(map[domain.Source]float64, len(cfg.Ranking.Weights))
	for name, weight := range cfg.Ranking.Weights {
		weights[domain.Source(name)] = weight
	}

	topN := cfg.Ranking.TopN
	if opts.TopN > 0 {
		topN = opts.TopN
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Gatherer: collect.NewGatherer(registry, baseLogger.With("component", "collect")),
		Resolver: resolve.New(arxivClient, baseLogger.With("component", "resolve")),
		Ranker:   rank.New(rank.Policy{Weights: weights, Normalization: cfg.Ranking.Normalization}),
		Ledger:   led,
		Enricher: enrich.New(arxivClient, translator, renderer, baseLogger.With("component", "enrich")),
		Fanout: usecase.NewFanout(publishers, led, usecase.RetryPolicy{
			Attempts:    cfg.Retry.Attempts,
			BackoffBase: cfg.Retry.BackoffBase.Std(),
		}, baseLogger.With("component", "fanout")),
		Logger: baseLogger.With("component", "pipeline"),
	}, usecase.PipelineConfig{
		WindowDays: cfg.Window.Days,
		TopN:       topN,
	})

	return &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline, db: db}, nil
}

func buildPublishers(channels config.ChannelsConfig, opts Options, log *slog.Logger) []ports.Publisher {
	var publishers []ports.Publisher
	add := func(p ports.Publisher) {
		if opts.DryRun {
			p = &logPublisher{name: p.Name(), logger: log}
		}
		publishers = append(publishers, p)
	}

	if channels.Slack.Enabled {
		add(publish.NewSlack(nil, channels.Slack))
	}
	if channels.Twitter.Enabled {
		add(publish.NewTwitter(nil, channels.Twitter))
	}
	if channels.Bluesky.Enabled {
		add(publish.NewBluesky(nil, channels.Bluesky))
	}
	return publishers
}

// Run executes a single bounded batch run under the configured timeout.
func (a *Application) Run(ctx context.Context) (domain.RunReport, error) {
	if timeout := a.cfg.Run.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return a.pipeline.Run(ctx, uuid.NewString(), time.Now())
}

// Close releases the ledger database.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// logPublisher stands in for a real channel during dry runs.
type logPublisher struct {
	name   string
	logger *slog.Logger
}

func (l *logPublisher) Name() string { return l.name }

func (l *logPublisher) Publish(_ context.Context, a domain.Announcement) error {
	l.logger.Info("dry-run publish",
		"channel", l.name,
		"paper_id", a.Candidate.PaperID,
		"rank", fmt.Sprintf("%d/%d", a.Rank, a.Total),
		"title", a.Enrichment.Title)
	return nil
}
