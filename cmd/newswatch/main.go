package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quantbench/newswatch/internal/commodity"
	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/crawler"
	"github.com/quantbench/newswatch/internal/notify"
	"github.com/quantbench/newswatch/internal/scheduler"
	"github.com/quantbench/newswatch/internal/storage"
	"github.com/quantbench/newswatch/internal/translate"
	"github.com/quantbench/newswatch/internal/types"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newswatch",
		Short: "Commodity news crawler and notifier",
		Long: `Newswatch polls a commodity-news stream on a jittered schedule,
sorts articles into per-commodity day files, and pushes new items to
Telegram and Discord, optionally translated.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand: the long-lived scheduled service.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled crawler service",
		Long:  "Start the jittered poll timer and keep crawling until interrupted.",
		RunE:  runService,
	}
}

// crawlCmd creates the "crawl" subcommand: a single cycle, then exit.
func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl cycle and exit",
		RunE:  runOnce,
	}
}

func runService(cmd *cobra.Command, args []string) error {
	logger, cfg, err := bootstrap()
	if err != nil {
		return err
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.scheduler.Start(ctx); err != nil && !errors.Is(err, types.ErrCrawlerDisabled) {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer app.scheduler.Stop()
	if app.digest != nil {
		app.digest.Start(ctx)
		defer app.digest.Stop()
	}

	logger.Info("newswatch running",
		"target", cfg.Crawler.TargetURL,
		"interval", cfg.Crawler.Interval(),
		"fetcher", cfg.Crawler.Fetcher,
		"sinks", len(app.sinks),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down...", "signal", sig)
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	// One-shot mode ignores the enabled flag; asking for a cycle is
	// explicit enough.
	cfg.Crawler.Enabled = true

	app, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	app.scheduler.RunCycle(context.Background())
	return nil
}

// app bundles the wired components so both commands can share setup and
// teardown.
type app struct {
	store     *storage.NewsStore
	fetcher   crawler.PageFetcher
	sinks     []notify.Sink
	scheduler *scheduler.Scheduler
	digest    *scheduler.Digest
}

func (a *app) close(logger *slog.Logger) {
	if err := a.fetcher.Close(); err != nil {
		logger.Warn("fetcher close failed", "error", err)
	}
	for _, sink := range a.sinks {
		if c, ok := sink.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				logger.Warn("sink close failed", "sink", sink.Name(), "error", err)
			}
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("store close failed", "error", err)
	}
}

// bootstrap loads .env, the config file, and the logger.
func bootstrap() (*slog.Logger, *config.Config, error) {
	// Missing .env is fine; real deployments use environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return setupLogger(cfg.Logging), cfg, nil
}

// buildApp wires storage, fetcher, crawler, translator, sinks, and the
// scheduler from configuration.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.NewNewsStore(cfg.Storage.Root, commodity.Buckets(), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if cfg.Storage.Archive.Enabled {
		archive, err := storage.NewMongoArchive(
			cfg.Storage.Archive.URI,
			cfg.Storage.Archive.Database,
			cfg.Storage.Archive.Collection,
			logger,
		)
		if err != nil {
			// The archive is a mirror; the day files are the source of
			// truth, so run without it.
			logger.Warn("archive unavailable, continuing without it", "error", err)
		} else {
			store = store.WithArchive(archive)
		}
	}

	mapper := commodity.NewMapper(store.Root(), logger)

	var fetcher crawler.PageFetcher
	switch cfg.Crawler.Fetcher {
	case "http":
		fetcher = crawler.NewHTTPFetcher(&cfg.Crawler, logger)
	default:
		fetcher = crawler.NewBrowserFetcher(&cfg.Crawler, logger)
	}

	news := crawler.New(&cfg.Crawler, fetcher, mapper, store, logger)

	var translator *translate.Translator
	if cfg.Translate.Enabled {
		translator = translate.New(translate.NewGoogleBackend(logger), translate.Options{
			TargetLang: cfg.Translate.TargetLang,
			MaxRetries: cfg.Translate.MaxRetries,
			BaseDelay:  cfg.Translate.BaseDelay,
			MaxDelay:   cfg.Translate.MaxDelay,
		}, logger)
	}

	sinks, err := buildSinks(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(sinks) == 0 {
		logger.Warn("no notification sinks configured, results will only be stored")
	}

	a := &app{
		store:     store,
		fetcher:   fetcher,
		sinks:     sinks,
		scheduler: scheduler.New(cfg, news, translator, sinks, logger),
	}
	if cfg.Digest.Enabled {
		buckets := append(commodity.Buckets(), commodity.Others)
		digest, err := scheduler.NewDigest(cfg.Digest.Cron, store, buckets, sinks, logger)
		if err != nil {
			a.close(logger)
			return nil, err
		}
		a.digest = digest
	}
	return a, nil
}

// buildSinks constructs every sink that has credentials configured. A
// sink that fails to authenticate is fatal: silently dropping a
// configured destination would hide delivery gaps.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]notify.Sink, error) {
	var sinks []notify.Sink

	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegramSink(cfg.Notify.Telegram, logger)
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
	}
	if cfg.Notify.Discord.Token != "" {
		dc, err := notify.NewDiscordSink(cfg.Notify.Discord, logger)
		if err != nil {
			return nil, fmt.Errorf("discord sink: %w", err)
		}
		sinks = append(sinks, dc)
	}
	return sinks, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newswatch %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting the resolved
// configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Crawler:\n")
			fmt.Printf("  Enabled:        %v\n", cfg.Crawler.Enabled)
			fmt.Printf("  Target URL:     %s\n", cfg.Crawler.TargetURL)
			fmt.Printf("  Interval:       %s\n", cfg.Crawler.Interval())
			fmt.Printf("  Jitter:         %s\n", cfg.Crawler.Jitter())
			fmt.Printf("  Fetcher:        %s\n", cfg.Crawler.Fetcher)
			fmt.Printf("  Page Timeout:   %s\n", cfg.Crawler.PageTimeout)
			fmt.Printf("  User Agents:    %d configured\n", len(cfg.Crawler.UserAgents))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Root:           %s\n", cfg.Storage.Root)
			fmt.Printf("  Archive:        %v\n", cfg.Storage.Archive.Enabled)
			fmt.Printf("\nTranslate:\n")
			fmt.Printf("  Enabled:        %v\n", cfg.Translate.Enabled)
			fmt.Printf("  Target Lang:    %s\n", cfg.Translate.TargetLang)
			fmt.Printf("  Max Retries:    %d\n", cfg.Translate.MaxRetries)
			fmt.Printf("\nNotify:\n")
			fmt.Printf("  Telegram:       %v (%d chats)\n", cfg.Notify.Telegram.Token != "", len(cfg.Notify.Telegram.ChatIDs))
			fmt.Printf("  Discord:        %v (channel %q)\n", cfg.Notify.Discord.Token != "", cfg.Notify.Discord.Channel)
			fmt.Printf("\nDigest:\n")
			fmt.Printf("  Enabled:        %v\n", cfg.Digest.Enabled)
			fmt.Printf("  Cron:           %s\n", cfg.Digest.Cron)
			return nil
		},
	}
}

// setupLogger creates the process-wide structured logger.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
