package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "PAPERTRENDS_CONFIG"
	ledgerPathEnv   = "PAPERTRENDS_LEDGER_PATH"
	slackTokenEnv   = "SLACK_BOT_TOKEN"
	slackChannelEnv = "SLACK_CHANNEL"
	twitterBearer   = "TWITTER_BEARER_TOKEN"
	atpIdentifier   = "ATP_IDENTIFIER"
	atpPassword     = "ATP_PASSWORD"
	deeplAuthKeyEnv = "DEEPL_AUTH_KEY"
)

// Duration wraps time.Duration so YAML can carry values like "30s" or "10m".
type Duration time.Duration

// UnmarshalYAML parses the standard Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Window      WindowConfig      `yaml:"window"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Sources     SourcesConfig     `yaml:"sources"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Retry       RetryConfig       `yaml:"retry"`
	Run         RunConfig         `yaml:"run"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Arxiv       ArxivConfig       `yaml:"arxiv"`
	Translation TranslationConfig `yaml:"translation"`
	Render      RenderConfig      `yaml:"render"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// WindowConfig bounds the trailing collection window.
type WindowConfig struct {
	Days int `yaml:"days"`
}

// RankingConfig holds the composite-score policy. Weights and normalization
// are deployment policy, never hardcoded.
type RankingConfig struct {
	TopN          int                `yaml:"topN"`
	Normalization string             `yaml:"normalization"`
	Weights       map[string]float64 `yaml:"weights"`
}

// SourceConfig describes a single collector.
type SourceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Depth    int    `yaml:"depth"`
	Endpoint string `yaml:"endpoint"`
	Query    string `yaml:"query"`
}

// SourcesConfig groups the per-platform collectors.
type SourcesConfig struct {
	Reddit      SourceConfig `yaml:"reddit"`
	HackerNews  SourceConfig `yaml:"hackernews"`
	HuggingFace SourceConfig `yaml:"huggingface"`
}

// ChannelsConfig groups the outbound publishing channels.
type ChannelsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Twitter TwitterConfig `yaml:"twitter"`
	Bluesky BlueskyConfig `yaml:"bluesky"`
}

// SlackConfig wires the bot token and target channel.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Channel  string `yaml:"channel"`
	BotToken string `yaml:"botToken"`
}

// TwitterConfig wires the v2 API bearer token.
type TwitterConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BearerToken string `yaml:"bearerToken"`
}

// BlueskyConfig wires ATP session credentials.
type BlueskyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Service    string `yaml:"service"`
	Identifier string `yaml:"identifier"`
	Password   string `yaml:"password"`
}

// RetryConfig bounds publish retries for transient channel errors.
type RetryConfig struct {
	Attempts    int      `yaml:"attempts"`
	BackoffBase Duration `yaml:"backoffBase"`
}

// RunConfig bounds the whole batch run.
type RunConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// LedgerConfig locates the dedup ledger database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// ArxivConfig points at the metadata export API.
type ArxivConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// TranslationConfig controls the DeepL collaborator and its cache.
type TranslationConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	AuthKey         string `yaml:"authKey"`
	TargetLang      string `yaml:"targetLang"`
	CacheExpiryDays int    `yaml:"cacheExpiryDays"`
}

// RenderConfig points at the summary-image render service.
type RenderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ServiceURL string `yaml:"serviceUrl"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}

	if v := os.Getenv(slackTokenEnv); v != "" {
		c.Channels.Slack.BotToken = v
	}
	if v := os.Getenv(slackChannelEnv); v != "" {
		c.Channels.Slack.Channel = v
	}

	if v := os.Getenv(twitterBearer); v != "" {
		c.Channels.Twitter.BearerToken = v
	}

	if v := os.Getenv(atpIdentifier); v != "" {
		c.Channels.Bluesky.Identifier = v
	}
	if v := os.Getenv(atpPassword); v != "" {
		c.Channels.Bluesky.Password = v
	}

	if v := os.Getenv(deeplAuthKeyEnv); v != "" {
		c.Translation.AuthKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Window.Days > 0 {
		base.Window = override.Window
	}

	if override.Ranking.TopN > 0 {
		base.Ranking.TopN = override.Ranking.TopN
	}
	if override.Ranking.Normalization != "" {
		base.Ranking.Normalization = override.Ranking.Normalization
	}
	if len(override.Ranking.Weights) > 0 {
		base.Ranking.Weights = override.Ranking.Weights
	}

	base.Sources.Reddit = mergeSource(base.Sources.Reddit, override.Sources.Reddit)
	base.Sources.HackerNews = mergeSource(base.Sources.HackerNews, override.Sources.HackerNews)
	base.Sources.HuggingFace = mergeSource(base.Sources.HuggingFace, override.Sources.HuggingFace)

	if override.Channels.Slack.Channel != "" || override.Channels.Slack.BotToken != "" {
		enabled := base.Channels.Slack.Enabled || override.Channels.Slack.Enabled
		base.Channels.Slack = override.Channels.Slack
		base.Channels.Slack.Enabled = enabled
	}
	if override.Channels.Twitter.BearerToken != "" {
		enabled := base.Channels.Twitter.Enabled || override.Channels.Twitter.Enabled
		base.Channels.Twitter = override.Channels.Twitter
		base.Channels.Twitter.Enabled = enabled
	}
	if override.Channels.Bluesky.Identifier != "" {
		enabled := base.Channels.Bluesky.Enabled || override.Channels.Bluesky.Enabled
		base.Channels.Bluesky = override.Channels.Bluesky
		base.Channels.Bluesky.Enabled = enabled
	}

	if override.Retry.Attempts > 0 {
		base.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.BackoffBase > 0 {
		base.Retry.BackoffBase = override.Retry.BackoffBase
	}

	if override.Run.Timeout > 0 {
		base.Run = override.Run
	}

	if override.Ledger.Path != "" {
		base.Ledger = override.Ledger
	}

	if override.Arxiv.Endpoint != "" {
		base.Arxiv = override.Arxiv
	}

	if override.Translation.Endpoint != "" || override.Translation.AuthKey != "" || override.Translation.TargetLang != "" {
		enabled := base.Translation.Enabled || override.Translation.Enabled
		merged := base.Translation
		if override.Translation.Endpoint != "" {
			merged.Endpoint = override.Translation.Endpoint
		}
		if override.Translation.AuthKey != "" {
			merged.AuthKey = override.Translation.AuthKey
		}
		if override.Translation.TargetLang != "" {
			merged.TargetLang = override.Translation.TargetLang
		}
		if override.Translation.CacheExpiryDays > 0 {
			merged.CacheExpiryDays = override.Translation.CacheExpiryDays
		}
		merged.Enabled = enabled
		base.Translation = merged
	}

	if override.Render.ServiceURL != "" {
		base.Render = override.Render
	}

	return base
}

func mergeSource(base, override SourceConfig) SourceConfig {
	if override.Depth > 0 {
		base.Depth = override.Depth
	}
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.Query != "" {
		base.Query = override.Query
	}
	base.Enabled = base.Enabled || override.Enabled
	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Window:  WindowConfig{Days: 30},
		Ranking: RankingConfig{
			TopN:          5,
			Normalization: "rank",
			Weights: map[string]float64{
				"reddit":      1.0,
				"hackernews":  1.0,
				"huggingface": 1.0,
			},
		},
		Sources: SourcesConfig{
			Reddit: SourceConfig{
				Enabled:  true,
				Depth:    100,
				Endpoint: "https://www.reddit.com/search.json",
				Query:    "selftext:arxiv.org",
			},
			HackerNews: SourceConfig{
				Enabled:  true,
				Depth:    100,
				Endpoint: "https://hn.algolia.com/api/v1/search",
				Query:    "arxiv.org",
			},
			HuggingFace: SourceConfig{
				Enabled:  true,
				Depth:    50,
				Endpoint: "https://huggingface.co/papers",
			},
		},
		Channels: ChannelsConfig{
			Slack:   SlackConfig{Enabled: false},
			Twitter: TwitterConfig{Enabled: false},
			Bluesky: BlueskyConfig{Enabled: false, Service: "https://bsky.social"},
		},
		Retry:  RetryConfig{Attempts: 3, BackoffBase: Duration(2 * time.Second)},
		Run:    RunConfig{Timeout: Duration(10 * time.Minute)},
		Ledger: LedgerConfig{Path: "papertrends.db"},
		Arxiv:  ArxivConfig{Endpoint: "https://export.arxiv.org/api/query"},
		Translation: TranslationConfig{
			Enabled:         false,
			Endpoint:        "https://api-free.deepl.com/v2/translate",
			TargetLang:      "JA",
			CacheExpiryDays: 30,
		},
		Render: RenderConfig{Enabled: false},
	}
}
