package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/notify"
	"github.com/quantbench/newswatch/internal/translate"
	"github.com/quantbench/newswatch/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// recordingSink captures every message it is asked to deliver.
type recordingSink struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.err
}

func (r *recordingSink) received() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// stubCrawler returns scripted records, or panics, and counts calls.
type stubCrawler struct {
	mu      sync.Mutex
	calls   int
	records []types.SavedRecord
	panics  bool
}

func (s *stubCrawler) Crawl(ctx context.Context) []types.SavedRecord {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("scripted crawl failure")
	}
	return s.records
}

func (s *stubCrawler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// upperBackend fakes translation by upper-casing the input.
type upperBackend struct{}

func (upperBackend) Translate(ctx context.Context, text, targetLang string) (string, error) {
	out := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out), nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Translate.Enabled = false
	return cfg
}

func sampleRecords() []types.SavedRecord {
	return []types.SavedRecord{
		{Bucket: "Gold", ID: 1, Title: "gold rallies", Content: "spot up", Time: "09:15"},
		{Bucket: "Wti", ID: 4, Title: "crude slips", Content: "", Time: ""},
	}
}

func TestStartDisabledIsNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.Crawler.Enabled = false
	crawler := &stubCrawler{records: sampleRecords()}
	s := New(cfg, crawler, nil, nil, testLogger)

	if err := s.Start(context.Background()); !errors.Is(err, types.ErrCrawlerDisabled) {
		t.Fatalf("expected ErrCrawlerDisabled, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if n := crawler.callCount(); n != 0 {
		t.Errorf("disabled scheduler ran %d cycles", n)
	}
	s.Stop() // must not hang
}

func TestRunCycleDeliversTranslatedMessages(t *testing.T) {
	cfg := testConfig()
	cfg.Translate.Enabled = true
	sink := &recordingSink{}
	translator := translate.New(upperBackend{}, translate.Options{
		TargetLang: "zh-TW",
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
	}, testLogger)
	s := New(cfg, &stubCrawler{records: sampleRecords()}, translator, []notify.Sink{sink}, testLogger)

	s.RunCycle(context.Background())

	got := sink.received()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Title != "GOLD RALLIES" || got[0].Content != "SPOT UP" {
		t.Errorf("message not translated: %+v", got[0])
	}
	if got[0].Bucket != "Gold" || got[0].ID != 1 || got[0].Time != "09:15" {
		t.Errorf("metadata not carried through: %+v", got[0])
	}
	if got[1].Content != "" {
		t.Errorf("empty content should stay empty, got %q", got[1].Content)
	}
}

func TestRunCycleWithoutTranslatorPassesOriginals(t *testing.T) {
	sink := &recordingSink{}
	s := New(testConfig(), &stubCrawler{records: sampleRecords()}, nil, []notify.Sink{sink}, testLogger)

	s.RunCycle(context.Background())

	got := sink.received()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Title != "gold rallies" {
		t.Errorf("title altered without a translator: %q", got[0].Title)
	}
}

func TestRunCycleFailingSinkDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSink{err: errors.New("gateway down")}
	good := &recordingSink{}
	s := New(testConfig(), &stubCrawler{records: sampleRecords()[:1]}, nil, []notify.Sink{bad, good}, testLogger)

	s.RunCycle(context.Background())

	if len(good.received()) != 1 {
		t.Error("healthy sink did not receive the message")
	}
	if len(bad.received()) != 1 {
		t.Error("failing sink was skipped entirely")
	}
}

func TestSchedulerSurvivesPanickingCycles(t *testing.T) {
	crawler := &stubCrawler{panics: true}
	s := New(testConfig(), crawler, nil, nil, testLogger)
	s.interval = 5 * time.Millisecond
	s.jitter = 0

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for crawler.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if n := crawler.callCount(); n < 3 {
		t.Fatalf("timer stopped after a panic: only %d cycles ran", n)
	}
}

func TestStopDisarmsTimer(t *testing.T) {
	crawler := &stubCrawler{}
	s := New(testConfig(), crawler, nil, nil, testLogger)
	s.interval = 5 * time.Millisecond
	s.jitter = 0

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	after := crawler.callCount()
	time.Sleep(30 * time.Millisecond)
	if crawler.callCount() != after {
		t.Error("cycles still running after Stop")
	}

	s.Stop() // idempotent
}

func TestNextDelayStaysWithinJitterBounds(t *testing.T) {
	s := &Scheduler{interval: time.Minute, jitter: 10 * time.Second}
	for i := 0; i < 200; i++ {
		d := s.nextDelay()
		if d < 50*time.Second || d > 70*time.Second {
			t.Fatalf("delay %v outside [50s, 70s]", d)
		}
	}

	s.jitter = 0
	if d := s.nextDelay(); d != time.Minute {
		t.Errorf("zero jitter should return the bare interval, got %v", d)
	}
}

// fixedCounter serves scripted per-bucket counts.
type fixedCounter struct{ counts map[string]int }

func (f fixedCounter) CountForDay(bucket string, day time.Time) int { return f.counts[bucket] }

func TestDigestRunSendsTally(t *testing.T) {
	sink := &recordingSink{}
	counter := fixedCounter{counts: map[string]int{"Gold": 3, "Wti": 1}}
	d, err := NewDigest("0 22 * * *", counter, []string{"Gold", "Silver", "Wti"}, []notify.Sink{sink}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	d.now = func() time.Time { return time.Date(2026, 8, 29, 22, 0, 0, 0, time.UTC) }

	d.Run(context.Background())

	got := sink.received()
	if len(got) != 1 {
		t.Fatalf("expected 1 digest message, got %d", len(got))
	}
	msg := got[0]
	if msg.Title != "Daily digest for 2026-08-29" {
		t.Errorf("unexpected title %q", msg.Title)
	}
	if msg.Content != "Gold: 3\nWti: 1" {
		t.Errorf("unexpected content %q", msg.Content)
	}
	if msg.ID != 4 {
		t.Errorf("expected total 4, got %d", msg.ID)
	}
}

func TestDigestRunSkipsEmptyDay(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDigest("0 22 * * *", fixedCounter{}, []string{"Gold"}, []notify.Sink{sink}, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	d.Run(context.Background())

	if len(sink.received()) != 0 {
		t.Error("digest sent for a day with no records")
	}
}

// A bad cron spec must be rejected at construction, before any other
// job has been started.
func TestNewDigestRejectsBadSpec(t *testing.T) {
	d, err := NewDigest("not a cron spec", fixedCounter{}, nil, nil, testLogger)
	if err == nil {
		t.Fatal("expected error for malformed cron spec")
	}
	if d != nil {
		t.Fatal("expected nil digest on bad spec")
	}
}
