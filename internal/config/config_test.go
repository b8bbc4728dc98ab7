package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  site_url: https://rym.example
  user_agent: real-agent
  profiles: ["alice", "bob"]
  delay_ms: 500
  timeout_seconds: 10
  failure_threshold: 2
  concurrent_dependencies: false
  fail_on_ledger_errors: true
  archive_pages: true
spotify:
  client_id: id
  client_secret: secret
  market: GB
storage:
  backend: local
  local_dir: /tmp/pages
db:
  dsn: postgres://localhost/music
  max_conns: 8
server:
  enabled: true
  port: 9090
logging:
  development: false
  level: debug
aggregate:
  output: out.csv
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawler.SiteURL != "https://rym.example" || len(cfg.Crawler.Profiles) != 2 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Crawler.FailureThreshold != 2 || cfg.Crawler.ConcurrentDependencies || !cfg.Crawler.FailOnLedgerErrors {
		t.Fatalf("expected crawler policy overrides to apply: %+v", cfg.Crawler)
	}
	if got := cfg.Crawler.Delay(); got != 500*time.Millisecond {
		t.Fatalf("expected delay 500ms, got %v", got)
	}
	if got := cfg.Crawler.Timeout(); got != 10*time.Second {
		t.Fatalf("expected timeout 10s, got %v", got)
	}
	if cfg.Spotify.Market != "GB" || cfg.Spotify.APIURL != "https://api.spotify.com/v1" {
		t.Fatalf("expected spotify override and default: %+v", cfg.Spotify)
	}
	if err := cfg.RequireSpotify(); err != nil {
		t.Fatalf("RequireSpotify() error = %v", err)
	}
	if cfg.Storage.Backend != StorageLocal || cfg.Storage.Prefix != "pages" {
		t.Fatalf("expected storage settings: %+v", cfg.Storage)
	}
	if cfg.DB.MaxConns != 8 || !cfg.DB.Migrate {
		t.Fatalf("expected db settings: %+v", cfg.DB)
	}
	if cfg.Server.Port != 9090 || cfg.Logging.Level != "debug" || cfg.Aggregate.Output != "out.csv" {
		t.Fatalf("expected server/logging/aggregate overrides: %+v", cfg)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.FailureThreshold != 3 {
		t.Fatalf("expected default threshold 3, got %d", cfg.Crawler.FailureThreshold)
	}
	if cfg.Storage.Backend != StorageNone || cfg.DB.DSN != "" {
		t.Fatalf("expected in-memory defaults: %+v %+v", cfg.Storage, cfg.DB)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MUSICCRAWLER_CRAWLER_FAILURE_THRESHOLD", "7")
	t.Setenv("MUSICCRAWLER_SPOTIFY_CLIENT_ID", "env-id")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.FailureThreshold != 7 {
		t.Fatalf("expected env threshold 7, got %d", cfg.Crawler.FailureThreshold)
	}
	if cfg.Spotify.ClientID != "env-id" {
		t.Fatalf("expected env client id, got %q", cfg.Spotify.ClientID)
	}
	if err := cfg.RequireSpotify(); err == nil {
		t.Fatal("expected missing client secret to be reported")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawler: CrawlerConfig{SiteURL: "https://rym.example", FailureThreshold: 3, TimeoutSeconds: 10},
		Spotify: SpotifyConfig{RequestsPerSecond: 1},
		Storage: StorageConfig{Backend: StorageNone},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing site", func(c *Config) { c.Crawler.SiteURL = "" }, "crawler.site_url"},
		{"zero threshold", func(c *Config) { c.Crawler.FailureThreshold = 0 }, "crawler.failure_threshold"},
		{"zero timeout", func(c *Config) { c.Crawler.TimeoutSeconds = 0 }, "crawler.timeout_seconds"},
		{"negative delay", func(c *Config) { c.Crawler.DelayMillis = -1 }, "crawler.delay_ms"},
		{"zero catalog rate", func(c *Config) { c.Spotify.RequestsPerSecond = 0 }, "spotify.requests_per_second"},
		{"server without port", func(c *Config) { c.Server.Enabled = true }, "server.port"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = StorageGCS }, "storage.gcs_bucket"},
		{"local without dir", func(c *Config) { c.Storage.Backend = StorageLocal }, "storage.local_dir"},
		{"archive without backend", func(c *Config) { c.Crawler.ArchivePages = true }, "crawler.archive_pages"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "runs" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
