package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for newswatch. It is built once at
// startup and read-only for the process lifetime; there is no runtime
// reload.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"   yaml:"crawler"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Translate TranslateConfig `mapstructure:"translate" yaml:"translate"`
	Notify    NotifyConfig    `mapstructure:"notify"    yaml:"notify"`
	Digest    DigestConfig    `mapstructure:"digest"    yaml:"digest"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// CrawlerConfig controls the fetch/parse cycle and its timer.
type CrawlerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// TargetURL is the news stream page to poll.
	TargetURL string `mapstructure:"target_url" yaml:"target_url"`

	// Interval is the base poll period.
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes"`

	// JitterSeconds widens each fire time to interval ± jitter so the
	// poll rhythm is not predictable to the target site.
	JitterSeconds int `mapstructure:"jitter_seconds" yaml:"jitter_seconds"`

	// Fetcher selects the page fetcher: "browser" (headless Chromium)
	// or "http" (plain client with browser-like headers).
	Fetcher string `mapstructure:"fetcher" yaml:"fetcher"`

	// PageTimeout bounds navigation plus selector waits.
	PageTimeout time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`

	// SettleDelay is the fixed wait after the DOM marker appears, for
	// client-side rendering to finish.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`

	// DebugDumpPath receives the raw HTML when no selector matches.
	DebugDumpPath string `mapstructure:"debug_dump_path" yaml:"debug_dump_path"`

	UserAgents []string `mapstructure:"user_agents" yaml:"user_agents"`
}

// Interval returns the base poll period as a duration.
func (c CrawlerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Jitter returns the jitter half-window as a duration.
func (c CrawlerConfig) Jitter() time.Duration {
	return time.Duration(c.JitterSeconds) * time.Second
}

// StorageConfig controls the per-bucket day files and the optional
// archive mirror.
type StorageConfig struct {
	// Root is the markets directory holding one subdirectory per bucket.
	Root string `mapstructure:"root" yaml:"root"`

	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// ArchiveConfig controls the optional MongoDB mirror of saved records.
type ArchiveConfig struct {
	Enabled    bool   `mapstructure:"enabled"    yaml:"enabled"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// TranslateConfig controls best-effort translation of notifications.
type TranslateConfig struct {
	Enabled    bool   `mapstructure:"enabled"     yaml:"enabled"`
	TargetLang string `mapstructure:"target_lang" yaml:"target_lang"`

	// MaxRetries is the number of extra attempts after the first, for
	// rate-limit and network failures only.
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"  yaml:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"   yaml:"max_delay"`
}

// NotifyConfig holds the chat destinations for crawl results.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"  yaml:"discord"`
}

// TelegramConfig configures direct message sends by chat ID.
type TelegramConfig struct {
	Token   string  `mapstructure:"token"    yaml:"token"`
	ChatIDs []int64 `mapstructure:"chat_ids" yaml:"chat_ids"`
}

// DiscordConfig configures embed posts resolved per guild.
type DiscordConfig struct {
	Token string `mapstructure:"token" yaml:"token"`

	// Channel is the channel name looked up in every guild the bot is
	// a member of.
	Channel string `mapstructure:"channel" yaml:"channel"`
}

// DigestConfig controls the daily per-bucket summary job.
type DigestConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Cron    string `mapstructure:"cron"    yaml:"cron"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			Enabled:         true,
			TargetURL:       "https://www.investing.com/news/commodities-news",
			IntervalMinutes: 10,
			JitterSeconds:   60,
			Fetcher:         "browser",
			PageTimeout:     45 * time.Second,
			SettleDelay:     3 * time.Second,
			DebugDumpPath:   "debug_page.html",
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
			},
		},
		Storage: StorageConfig{
			Root: "./markets",
			Archive: ArchiveConfig{
				Enabled:    false,
				URI:        "mongodb://localhost:27017",
				Database:   "newswatch",
				Collection: "news",
			},
		},
		Translate: TranslateConfig{
			Enabled:    false,
			TargetLang: "zh-TW",
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
		},
		Digest: DigestConfig{
			Enabled: false,
			Cron:    "0 22 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Sanitize clamps out-of-range values back to defaults. Bad environment
// input degrades to defaults instead of failing startup.
func (c *Config) Sanitize() {
	def := DefaultConfig()

	if c.Crawler.TargetURL == "" {
		c.Crawler.TargetURL = def.Crawler.TargetURL
	}
	if c.Crawler.IntervalMinutes <= 0 {
		c.Crawler.IntervalMinutes = def.Crawler.IntervalMinutes
	}
	if c.Crawler.JitterSeconds < 0 {
		c.Crawler.JitterSeconds = def.Crawler.JitterSeconds
	}
	// Jitter larger than the interval could schedule a cycle in the past.
	if c.Crawler.Jitter() >= c.Crawler.Interval() {
		c.Crawler.JitterSeconds = int(c.Crawler.Interval().Seconds()) / 2
	}
	if c.Crawler.Fetcher != "browser" && c.Crawler.Fetcher != "http" {
		c.Crawler.Fetcher = def.Crawler.Fetcher
	}
	if c.Crawler.PageTimeout <= 0 {
		c.Crawler.PageTimeout = def.Crawler.PageTimeout
	}
	if c.Crawler.SettleDelay < 0 {
		c.Crawler.SettleDelay = def.Crawler.SettleDelay
	}
	if c.Crawler.DebugDumpPath == "" {
		c.Crawler.DebugDumpPath = def.Crawler.DebugDumpPath
	}
	if len(c.Crawler.UserAgents) == 0 {
		c.Crawler.UserAgents = def.Crawler.UserAgents
	}

	if c.Storage.Root == "" {
		c.Storage.Root = def.Storage.Root
	}

	if c.Translate.MaxRetries < 0 {
		c.Translate.MaxRetries = def.Translate.MaxRetries
	}
	if c.Translate.BaseDelay <= 0 {
		c.Translate.BaseDelay = def.Translate.BaseDelay
	}
	if c.Translate.MaxDelay < c.Translate.BaseDelay {
		c.Translate.MaxDelay = def.Translate.MaxDelay
	}
	if c.Translate.TargetLang == "" {
		c.Translate.TargetLang = def.Translate.TargetLang
	}

	if c.Digest.Cron == "" {
		c.Digest.Cron = def.Digest.Cron
	}
}
