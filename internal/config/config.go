// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends for the raw page archive.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Spotify   SpotifyConfig   `mapstructure:"spotify"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
}

// CrawlerConfig governs page fetching and the pagination loop.
type CrawlerConfig struct {
	SiteURL        string   `mapstructure:"site_url"`
	UserAgent      string   `mapstructure:"user_agent"`
	Profiles       []string `mapstructure:"profiles"`
	DelayMillis    int      `mapstructure:"delay_ms"`
	Burst          int      `mapstructure:"burst"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	RespectRobots  bool     `mapstructure:"respect_robots"`
	// FailureThreshold is the number of consecutive failed listing pages
	// after which a profile's crawl stops.
	FailureThreshold       int  `mapstructure:"failure_threshold"`
	ConcurrentDependencies bool `mapstructure:"concurrent_dependencies"`
	FailOnLedgerErrors     bool `mapstructure:"fail_on_ledger_errors"`
	ArchivePages           bool `mapstructure:"archive_pages"`
}

// SpotifyConfig holds catalog API credentials and endpoints.
type SpotifyConfig struct {
	ClientID          string  `mapstructure:"client_id"`
	ClientSecret      string  `mapstructure:"client_secret"`
	TokenURL          string  `mapstructure:"token_url"`
	APIURL            string  `mapstructure:"api_url"`
	Market            string  `mapstructure:"market"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory repository.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// StorageConfig selects where raw pages are archived.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for run summary notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// AggregateConfig configures album vector export.
type AggregateConfig struct {
	Output string `mapstructure:"output"`
}

// Load builds a Config from a .env file, disk, and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MUSICCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.site_url", "https://rateyourmusic.com")
	v.SetDefault("crawler.user_agent", "music-crawler/0.1")
	v.SetDefault("crawler.profiles", []string{})
	v.SetDefault("crawler.delay_ms", 2000)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.failure_threshold", 3)
	v.SetDefault("crawler.concurrent_dependencies", true)
	v.SetDefault("crawler.fail_on_ledger_errors", false)
	v.SetDefault("crawler.archive_pages", false)
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("spotify.api_url", "https://api.spotify.com/v1")
	v.SetDefault("spotify.market", "US")
	v.SetDefault("spotify.requests_per_second", 5.0)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.migrate", true)
	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("aggregate.output", "albums.csv")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.SiteURL == "" {
		return fmt.Errorf("crawler.site_url must be set")
	}
	if c.Crawler.FailureThreshold <= 0 {
		return fmt.Errorf("crawler.failure_threshold must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.DelayMillis < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Spotify.RequestsPerSecond <= 0 {
		return fmt.Errorf("spotify.requests_per_second must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	if c.Crawler.ArchivePages && c.Storage.Backend == StorageNone {
		return fmt.Errorf("crawler.archive_pages requires a storage.backend")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// RequireSpotify reports whether catalog credentials are present. Only the
// crawl command needs them.
func (c Config) RequireSpotify() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify.client_id and spotify.client_secret must be set")
	}
	return nil
}

// Delay is the minimum spacing between requests to one host.
func (c CrawlerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// Timeout is the per-request fetch timeout.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
