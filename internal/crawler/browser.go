package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/types"
)

// waitSelectors are the candidate DOM markers that signal the news list
// has rendered, tried in priority order. The first is the current
// upstream markup; the rest cover older layouts.
var waitSelectors = []string{
	`ul[data-test="news-list"]`,
	`div.js-article-item`,
	`section#news`,
	`article`,
}

// BrowserFetcher renders the target page with headless Chromium via Rod,
// configured to look like an ordinary desktop browser.
type BrowserFetcher struct {
	cfg    *config.CrawlerConfig
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher creates a browser fetcher. The browser itself is
// launched lazily on first fetch so a missing Chromium binary only
// fails crawl cycles, not startup.
func NewBrowserFetcher(cfg *config.CrawlerConfig, logger *slog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		cfg:    cfg,
		logger: logger.With("component", "browser_fetcher"),
	}
}

func (bf *BrowserFetcher) Type() string { return "browser" }

// connect launches Chromium (once) with anti-automation flags disabled.
func (bf *BrowserFetcher) connect() (*rod.Browser, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browser != nil {
		return bf.browser, nil
	}

	launchURL, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.logger.Info("browser launched")
	return browser, nil
}

// Fetch navigates to the target URL and returns the rendered HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context) (html string, err error) {
	// Rod surfaces failures as panics in its Must-free paths too;
	// convert anything escaping into a fetch error.
	defer func() {
		if r := recover(); r != nil {
			err = &types.FetchError{
				URL:       bf.cfg.TargetURL,
				Err:       fmt.Errorf("browser session: %v", r),
				Retryable: true,
			}
		}
	}()

	browser, err := bf.connect()
	if err != nil {
		return "", &types.FetchError{URL: bf.cfg.TargetURL, Err: err, Retryable: true}
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", &types.FetchError{URL: bf.cfg.TargetURL, Err: fmt.Errorf("stealth page: %w", err), Retryable: true}
	}
	defer page.Close()

	page = page.Context(ctx)

	ua := bf.cfg.UserAgents[rand.Intn(len(bf.cfg.UserAgents))]
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		bf.logger.Warn("failed to set user agent", "error", err)
	}

	deadline := time.Now().Add(bf.cfg.PageTimeout)
	if err := page.Timeout(bf.cfg.PageTimeout).Navigate(bf.cfg.TargetURL); err != nil {
		return "", &types.FetchError{URL: bf.cfg.TargetURL, Err: err, Retryable: true}
	}

	// Try each candidate marker in priority order within the remaining
	// time budget. Missing all of them is not fatal; the parser will
	// dump the page for inspection if nothing is extractable.
	matched := false
	perCandidate := bf.cfg.PageTimeout / time.Duration(len(waitSelectors))
	for _, sel := range waitSelectors {
		wait := perCandidate
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			break
		}
		if _, err := page.Timeout(wait).Element(sel); err == nil {
			matched = true
			break
		}
	}
	if !matched {
		bf.logger.Warn("no wait selector matched before timeout", "url", bf.cfg.TargetURL)
	}

	// Fixed settle delay for client-side rendering to finish.
	select {
	case <-ctx.Done():
		return "", &types.FetchError{URL: bf.cfg.TargetURL, Err: ctx.Err(), Retryable: true}
	case <-time.After(bf.cfg.SettleDelay):
	}

	html, err = page.HTML()
	if err != nil {
		return "", &types.FetchError{URL: bf.cfg.TargetURL, Err: err, Retryable: true}
	}

	bf.logger.Debug("browser fetch complete", "url", bf.cfg.TargetURL, "size", len(html))
	return html, nil
}

// Close shuts down the browser if it was launched.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.browser != nil {
		err := bf.browser.Close()
		bf.browser = nil
		return err
	}
	return nil
}
