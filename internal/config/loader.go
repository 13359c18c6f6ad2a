package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// Env vars use the NEWSWATCH_ prefix with underscores for nesting,
// e.g. NEWSWATCH_CRAWLER_TARGET_URL, NEWSWATCH_TRANSLATE_MAX_RETRIES.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NEWSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newswatch")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newswatch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	// Weakly typed decoding lets env strings like "123,456" populate the
	// chat ID list.
	opt := func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true }
	if err := v.Unmarshal(cfg, viper.DecoderConfigOption(opt)); err != nil {
		// A malformed value must not take the process down; run with
		// defaults instead.
		cfg = DefaultConfig()
	}

	cfg.Sanitize()
	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawler.enabled", cfg.Crawler.Enabled)
	v.SetDefault("crawler.target_url", cfg.Crawler.TargetURL)
	v.SetDefault("crawler.interval_minutes", cfg.Crawler.IntervalMinutes)
	v.SetDefault("crawler.jitter_seconds", cfg.Crawler.JitterSeconds)
	v.SetDefault("crawler.fetcher", cfg.Crawler.Fetcher)
	v.SetDefault("crawler.page_timeout", cfg.Crawler.PageTimeout)
	v.SetDefault("crawler.settle_delay", cfg.Crawler.SettleDelay)
	v.SetDefault("crawler.debug_dump_path", cfg.Crawler.DebugDumpPath)
	v.SetDefault("crawler.user_agents", cfg.Crawler.UserAgents)

	v.SetDefault("storage.root", cfg.Storage.Root)
	v.SetDefault("storage.archive.enabled", cfg.Storage.Archive.Enabled)
	v.SetDefault("storage.archive.uri", cfg.Storage.Archive.URI)
	v.SetDefault("storage.archive.database", cfg.Storage.Archive.Database)
	v.SetDefault("storage.archive.collection", cfg.Storage.Archive.Collection)

	v.SetDefault("translate.enabled", cfg.Translate.Enabled)
	v.SetDefault("translate.target_lang", cfg.Translate.TargetLang)
	v.SetDefault("translate.max_retries", cfg.Translate.MaxRetries)
	v.SetDefault("translate.base_delay", cfg.Translate.BaseDelay)
	v.SetDefault("translate.max_delay", cfg.Translate.MaxDelay)

	v.SetDefault("notify.telegram.token", cfg.Notify.Telegram.Token)
	v.SetDefault("notify.telegram.chat_ids", cfg.Notify.Telegram.ChatIDs)
	v.SetDefault("notify.discord.token", cfg.Notify.Discord.Token)
	v.SetDefault("notify.discord.channel", cfg.Notify.Discord.Channel)

	v.SetDefault("digest.enabled", cfg.Digest.Enabled)
	v.SetDefault("digest.cron", cfg.Digest.Cron)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
