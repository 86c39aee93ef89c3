package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()

	if cfg.Ranking.TopN != 5 || cfg.Ranking.Normalization != "rank" {
		t.Fatalf("unexpected ranking defaults: %+v", cfg.Ranking)
	}
	if cfg.Window.Days != 30 {
		t.Fatalf("unexpected window default: %d", cfg.Window.Days)
	}
	if cfg.Retry.Attempts != 3 || cfg.Retry.BackoffBase.Std() != 2*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if !cfg.Sources.Reddit.Enabled || !cfg.Sources.HackerNews.Enabled || !cfg.Sources.HuggingFace.Enabled {
		t.Fatalf("sources should default enabled: %+v", cfg.Sources)
	}
	if cfg.Channels.Slack.Enabled || cfg.Channels.Twitter.Enabled || cfg.Channels.Bluesky.Enabled {
		t.Fatalf("channels should default disabled: %+v", cfg.Channels)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
window:
  days: 7
ranking:
  topN: 3
  normalization: log
  weights:
    reddit: 2.0
sources:
  reddit:
    depth: 25
retry:
  attempts: 5
  backoffBase: 500ms
run:
  timeout: 2m
channels:
  slack:
    enabled: true
    channel: "#papers"
    botToken: xoxb-file
`)
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Window.Days != 7 {
		t.Fatalf("window override lost: %d", cfg.Window.Days)
	}
	if cfg.Ranking.TopN != 3 || cfg.Ranking.Normalization != "log" || cfg.Ranking.Weights["reddit"] != 2.0 {
		t.Fatalf("ranking override lost: %+v", cfg.Ranking)
	}
	if cfg.Sources.Reddit.Depth != 25 {
		t.Fatalf("source depth override lost: %d", cfg.Sources.Reddit.Depth)
	}
	// Unspecified fields keep their defaults.
	if cfg.Sources.Reddit.Endpoint != "https://www.reddit.com/search.json" {
		t.Fatalf("default endpoint lost: %s", cfg.Sources.Reddit.Endpoint)
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.BackoffBase.Std() != 500*time.Millisecond {
		t.Fatalf("retry override lost: %+v", cfg.Retry)
	}
	if cfg.Run.Timeout.Std() != 2*time.Minute {
		t.Fatalf("run timeout override lost: %v", cfg.Run.Timeout.Std())
	}
	if !cfg.Channels.Slack.Enabled || cfg.Channels.Slack.Channel != "#papers" {
		t.Fatalf("slack override lost: %+v", cfg.Channels.Slack)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(slackTokenEnv, "xoxb-env")
	t.Setenv(slackChannelEnv, "#env-papers")
	t.Setenv(twitterBearer, "bearer-env")
	t.Setenv(atpIdentifier, "bot.example.com")
	t.Setenv(atpPassword, "app-pass")
	t.Setenv(deeplAuthKeyEnv, "deepl-env")
	t.Setenv(ledgerPathEnv, "/var/lib/papertrends/ledger.db")

	cfg := Load()

	if cfg.Channels.Slack.BotToken != "xoxb-env" || cfg.Channels.Slack.Channel != "#env-papers" {
		t.Fatalf("slack env override lost: %+v", cfg.Channels.Slack)
	}
	if cfg.Channels.Twitter.BearerToken != "bearer-env" {
		t.Fatalf("twitter env override lost: %+v", cfg.Channels.Twitter)
	}
	if cfg.Channels.Bluesky.Identifier != "bot.example.com" || cfg.Channels.Bluesky.Password != "app-pass" {
		t.Fatalf("bluesky env override lost: %+v", cfg.Channels.Bluesky)
	}
	if cfg.Translation.AuthKey != "deepl-env" {
		t.Fatalf("deepl env override lost: %+v", cfg.Translation)
	}
	if cfg.Ledger.Path != "/var/lib/papertrends/ledger.db" {
		t.Fatalf("ledger path env override lost: %s", cfg.Ledger.Path)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := writeConfigFile(t, `
channels:
  slack:
    channel: "#from-file"
    botToken: xoxb-file
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(slackTokenEnv, "xoxb-env")

	cfg := Load()
	if cfg.Channels.Slack.BotToken != "xoxb-env" {
		t.Fatalf("env must win over file, got %s", cfg.Channels.Slack.BotToken)
	}
	if cfg.Channels.Slack.Channel != "#from-file" {
		t.Fatalf("file channel lost: %s", cfg.Channels.Slack.Channel)
	}
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.Ranking.TopN != 5 {
		t.Fatalf("expected defaults on unreadable file, got %+v", cfg.Ranking)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := writeConfigFile(t, `
retry:
  attempts: 2
  backoffBase: bogus
`)
	t.Setenv(configPathEnv, path)

	// A malformed duration invalidates the file; defaults survive.
	cfg := Load()
	if cfg.Retry.Attempts != 3 || cfg.Retry.BackoffBase.Std() != 2*time.Second {
		t.Fatalf("expected defaults after parse failure, got %+v", cfg.Retry)
	}
}
