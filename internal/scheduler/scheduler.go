// Package scheduler owns the recurring crawl timer and fans results out
// to the notification sinks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/notify"
	"github.com/quantbench/newswatch/internal/translate"
	"github.com/quantbench/newswatch/internal/types"
)

// NewsCrawler is the one-cycle contract the scheduler drives.
type NewsCrawler interface {
	Crawl(ctx context.Context) []types.SavedRecord
}

// Scheduler alternates between two states: idle with the timer armed,
// and running one crawl-and-notify cycle. Every cycle is re-armed at
// interval plus or minus a fresh random jitter, so the poll rhythm is
// not predictable. Nothing that happens inside a cycle, panics
// included, stops the timer.
type Scheduler struct {
	crawler    NewsCrawler
	translator *translate.Translator
	sinks      []notify.Sink
	logger     *slog.Logger

	enabled     bool
	interval    time.Duration
	jitter      time.Duration
	translateOn bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Scheduler. The translator may be nil when translation
// is disabled.
func New(cfg *config.Config, crawler NewsCrawler, translator *translate.Translator, sinks []notify.Sink, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		crawler:     crawler,
		translator:  translator,
		sinks:       sinks,
		logger:      logger.With("component", "crawler_scheduler"),
		enabled:     cfg.Crawler.Enabled,
		interval:    cfg.Crawler.Interval(),
		jitter:      cfg.Crawler.Jitter(),
		translateOn: cfg.Translate.Enabled && translator != nil,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start arms the recurring timer. It is a no-op when the crawler is
// disabled by configuration. Start returns immediately; cycles run on
// their own goroutine until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.enabled {
		s.logger.Info("crawler disabled, scheduler not started")
		close(s.doneCh)
		return types.ErrCrawlerDisabled
	}

	go s.loop(ctx)
	s.logger.Info("scheduler started", "interval", s.interval, "jitter", s.jitter)
	return nil
}

// Stop disarms the timer. A cycle already in flight runs to completion;
// there is no cooperative cancellation of in-flight work.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunCycle(ctx)
			timer.Reset(s.nextDelay())
		}
	}
}

// nextDelay returns the interval shifted by a uniform random offset in
// [-jitter, +jitter).
func (s *Scheduler) nextDelay() time.Duration {
	if s.jitter <= 0 {
		return s.interval
	}
	offset := time.Duration(rand.Int63n(int64(2*s.jitter))) - s.jitter
	return s.interval + offset
}

// RunCycle executes one crawl-and-notify cycle. Any error or panic is
// caught and logged here so a single bad cycle can never disarm the
// timer.
func (s *Scheduler) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("crawl cycle panicked", "panic", fmt.Sprintf("%v", r))
		}
	}()

	records := s.crawler.Crawl(ctx)
	if len(records) == 0 {
		s.logger.Debug("cycle produced no new records")
		return
	}
	s.logger.Info("cycle produced records", "count", len(records))

	for _, rec := range records {
		msg := s.buildMessage(ctx, rec)
		s.dispatch(ctx, msg)
	}
}

// buildMessage translates title and content independently; each field
// falls back to its original on its own, so a partial translation
// failure never drops a notification.
func (s *Scheduler) buildMessage(ctx context.Context, rec types.SavedRecord) notify.Message {
	title, content := rec.Title, rec.Content
	if s.translateOn {
		title, _ = s.translator.Translate(ctx, rec.Title, true)
		content, _ = s.translator.Translate(ctx, rec.Content, true)
	}
	return notify.Message{
		Bucket:  rec.Bucket,
		ID:      rec.ID,
		Title:   title,
		Content: content,
		Time:    rec.Time,
	}
}

// dispatch sends one message to every sink. A failing sink is logged
// and the rest still get the message.
func (s *Scheduler) dispatch(ctx context.Context, msg notify.Message) {
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			s.logger.Warn("notification failed", "sink", sink.Name(), "error", err)
		}
	}
}
