// Package crawler executes one complete fetch → parse → classify →
// persist cycle against the commodity news stream.
package crawler

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/quantbench/newswatch/internal/commodity"
	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/storage"
	"github.com/quantbench/newswatch/internal/types"
)

// Crawler orchestrates one crawl cycle. It never lets a bad page, a
// dead browser, or a failed write escape as an error: a cycle that
// cannot proceed simply produces no records.
type Crawler struct {
	cfg     *config.CrawlerConfig
	fetcher PageFetcher
	mapper  *commodity.Mapper
	store   *storage.NewsStore
	logger  *slog.Logger

	// preDelay computes the randomized anti-detection pause before each
	// fetch. Overridable so tests do not sleep.
	preDelay func() time.Duration

	// now supplies the record date.
	now func() time.Time
}

// New creates a Crawler.
func New(cfg *config.CrawlerConfig, fetcher PageFetcher, mapper *commodity.Mapper, store *storage.NewsStore, logger *slog.Logger) *Crawler {
	return &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		mapper:  mapper,
		store:   store,
		logger:  logger.With("component", "news_crawler"),
		preDelay: func() time.Duration {
			// 0.5–2.0s, re-randomized every fetch.
			return 500*time.Millisecond + time.Duration(rand.Int63n(int64(1500*time.Millisecond)))
		},
		now: time.Now,
	}
}

// FetchPage renders the target page and returns its HTML, or "" when
// the fetch fails. Failures are logged, never raised.
func (c *Crawler) FetchPage(ctx context.Context) string {
	select {
	case <-ctx.Done():
		return ""
	case <-time.After(c.preDelay()):
	}

	html, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Warn("fetch failed", "url", c.cfg.TargetURL, "error", err)
		return ""
	}
	return html
}

// ParseNews extracts structured news items from the rendered HTML. CSS
// variants are tried most-specific first, then the XPath sweep; the
// first variant whose item selector matches anything wins. When nothing
// matches at all the raw HTML is dumped for offline inspection and nil
// is returned.
func (c *Crawler) ParseNews(htmlText string) []types.NewsItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		c.logger.Warn("cannot build document", "error", err)
		return nil
	}

	for _, v := range cssVariants {
		res := applyVariant(doc, v)
		if res.matched {
			c.logger.Debug("selector variant matched", "variant", v.name, "items", len(res.items))
			return res.items
		}
	}

	if root, err := htmlquery.Parse(strings.NewReader(htmlText)); err == nil {
		res := applyXPathVariant(root)
		if res.matched {
			c.logger.Debug("selector variant matched", "variant", "xpath-sweep", "items", len(res.items))
			return res.items
		}
	}

	c.logger.Warn("no selector variant matched, dumping page",
		"path", c.cfg.DebugDumpPath, "error", types.ErrNoSelectorMatch)
	if err := os.WriteFile(c.cfg.DebugDumpPath, []byte(htmlText), 0o644); err != nil {
		c.logger.Warn("debug dump failed", "error", err)
	}
	return nil
}

// ProcessAndSave classifies and persists each item, skipping duplicates.
// Unclassifiable items are filed under Others rather than discarded.
// A failed write is logged and the remaining items continue.
func (c *Crawler) ProcessAndSave(items []types.NewsItem) []types.SavedRecord {
	day := c.now()
	var saved []types.SavedRecord

	for _, item := range items {
		bucket, ok := c.mapper.Extract(item.FullText)
		if !ok {
			bucket = commodity.Others
		}

		if c.store.CheckDuplicate(bucket, item.Title, day) {
			c.logger.Debug("duplicate skipped", "bucket", bucket, "title", item.Title)
			continue
		}

		id, err := c.store.Save(bucket, item, day)
		if err != nil {
			c.logger.Warn("save failed", "bucket", bucket, "title", item.Title, "error", err)
			continue
		}

		saved = append(saved, types.SavedRecord{
			Bucket:  bucket,
			ID:      id,
			Title:   item.Title,
			Content: item.Content,
			Time:    item.PublishedAt,
			SavedAt: day,
		})
	}
	return saved
}

// Crawl runs one full cycle: fetch, parse, classify, persist. A failure
// at any stage yields an empty result, never an error.
func (c *Crawler) Crawl(ctx context.Context) []types.SavedRecord {
	html := c.FetchPage(ctx)
	if html == "" {
		return nil
	}

	items := c.ParseNews(html)
	if len(items) == 0 {
		return nil
	}

	saved := c.ProcessAndSave(items)
	c.logger.Info("crawl cycle complete", "parsed", len(items), "saved", len(saved))
	return saved
}
