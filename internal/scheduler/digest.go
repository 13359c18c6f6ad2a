package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quantbench/newswatch/internal/notify"
)

// BucketCounter reports how many records a bucket accumulated on a
// given day.
type BucketCounter interface {
	CountForDay(bucket string, day time.Time) int
}

// Digest sends a once-a-day per-bucket tally through the same sinks the
// crawl cycle uses.
type Digest struct {
	counter BucketCounter
	buckets []string
	sinks   []notify.Sink
	logger  *slog.Logger
	spec    string

	schedule cron.Schedule
	cron     *cron.Cron
	now      func() time.Time
}

// NewDigest creates a daily digest job with a standard 5-field cron
// spec, e.g. "0 22 * * *" for 22:00 every day. The spec is validated
// here so that Start cannot fail later, after other jobs are running.
func NewDigest(spec string, counter BucketCounter, buckets []string, sinks []notify.Sink, logger *slog.Logger) (*Digest, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("digest schedule %q: %w", spec, err)
	}
	return &Digest{
		counter:  counter,
		buckets:  buckets,
		sinks:    sinks,
		logger:   logger.With("component", "daily_digest"),
		spec:     spec,
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
	}, nil
}

// Start begins scheduling the already-validated cron entry.
func (d *Digest) Start(ctx context.Context) {
	d.cron.Schedule(d.schedule, cron.FuncJob(func() { d.Run(ctx) }))
	d.cron.Start()
	d.logger.Info("daily digest scheduled", "spec", d.spec)
}

// Stop halts the cron scheduler. A running digest finishes first.
func (d *Digest) Stop() {
	<-d.cron.Stop().Done()
}

// Run builds and sends one digest for the current day. Buckets with no
// records are omitted; a day with no records at all sends nothing.
func (d *Digest) Run(ctx context.Context) {
	day := d.now()

	var lines []string
	total := 0
	for _, bucket := range d.buckets {
		n := d.counter.CountForDay(bucket, day)
		if n == 0 {
			continue
		}
		total += n
		lines = append(lines, fmt.Sprintf("%s: %d", bucket, n))
	}
	if total == 0 {
		d.logger.Info("no records today, digest skipped")
		return
	}

	msg := notify.Message{
		Bucket:  "Digest",
		ID:      total,
		Title:   fmt.Sprintf("Daily digest for %s", day.Format("2006-01-02")),
		Content: strings.Join(lines, "\n"),
	}
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			d.logger.Warn("digest delivery failed", "sink", sink.Name(), "error", err)
		}
	}
	d.logger.Info("daily digest sent", "buckets", len(lines), "total", total)
}
