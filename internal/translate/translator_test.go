package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/quantbench/newswatch/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeBackend scripts one error per attempt; a nil entry succeeds.
type fakeBackend struct {
	errs  []error
	calls int
}

func (f *fakeBackend) Translate(ctx context.Context, text, lang string) (string, error) {
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	if err != nil {
		return "", err
	}
	return "translated:" + text, nil
}

func rateLimited() error {
	return &types.TranslateError{Kind: types.TranslateRateLimited, Err: errors.New("429")}
}

func networkErr() error {
	return &types.TranslateError{Kind: types.TranslateNetwork, Err: errors.New("connection reset")}
}

func fastOpts(maxRetries int) Options {
	return Options{
		TargetLang: "zh-TW",
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
	}
}

func TestTranslateSuccess(t *testing.T) {
	b := &fakeBackend{}
	tr := New(b, fastOpts(3), testLogger)

	out, err := tr.Translate(context.Background(), "gold rallies", true)
	if err != nil {
		t.Fatal(err)
	}
	if out != "translated:gold rallies" {
		t.Errorf("unexpected output %q", out)
	}
	if b.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", b.calls)
	}
}

func TestTranslateEmptyInputSkipsBackend(t *testing.T) {
	b := &fakeBackend{}
	tr := New(b, fastOpts(3), testLogger)

	for _, text := range []string{"", "   ", "\n\t "} {
		out, err := tr.Translate(context.Background(), text, true)
		if err != nil {
			t.Fatal(err)
		}
		if out != text {
			t.Errorf("expected input %q unchanged, got %q", text, out)
		}
	}
	if b.calls != 0 {
		t.Errorf("expected zero backend calls, got %d", b.calls)
	}
}

func TestTranslateRetryBoundWithFallback(t *testing.T) {
	// Backend always rate-limits: exactly maxRetries+1 attempts, then
	// fall back to the original text.
	always := make([]error, 10)
	for i := range always {
		always[i] = rateLimited()
	}
	b := &fakeBackend{errs: always}
	tr := New(b, fastOpts(3), testLogger)

	start := time.Now()
	out, err := tr.Translate(context.Background(), "original", true)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatal(err)
	}
	if out != "original" {
		t.Errorf("expected fallback to original, got %q", out)
	}
	if b.calls != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", b.calls)
	}
	// Delay bound: sum over i of min(base*2^i, max)*1.5 = (1+2+4)*1.5ms.
	if elapsed > 200*time.Millisecond {
		t.Errorf("backoff took unreasonably long: %v", elapsed)
	}
}

func TestTranslateRetryBoundWithoutFallback(t *testing.T) {
	always := []error{rateLimited(), rateLimited(), rateLimited()}
	b := &fakeBackend{errs: always}
	tr := New(b, fastOpts(2), testLogger)

	_, err := tr.Translate(context.Background(), "original", false)
	if err == nil {
		t.Fatal("expected error without fallback")
	}
	var terr *types.TranslateError
	if !errors.As(err, &terr) || terr.Kind != types.TranslateRateLimited {
		t.Errorf("expected rate-limited error, got %v", err)
	}
	if b.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", b.calls)
	}
}

func TestTranslateRecoversMidRetry(t *testing.T) {
	b := &fakeBackend{errs: []error{networkErr(), rateLimited(), nil}}
	tr := New(b, fastOpts(3), testLogger)

	out, err := tr.Translate(context.Background(), "text", false)
	if err != nil {
		t.Fatal(err)
	}
	if out != "translated:text" {
		t.Errorf("unexpected output %q", out)
	}
	if b.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", b.calls)
	}
}

func TestTranslateNonRetryableNotRetried(t *testing.T) {
	for _, kind := range []types.TranslateKind{types.TranslateTextTooLong, types.TranslateNotFound} {
		b := &fakeBackend{errs: []error{
			&types.TranslateError{Kind: kind, Err: fmt.Errorf("boom")},
		}}
		tr := New(b, fastOpts(5), testLogger)

		_, err := tr.Translate(context.Background(), "text", false)
		if err == nil {
			t.Fatalf("kind %v: expected error", kind)
		}
		if b.calls != 1 {
			t.Errorf("kind %v: expected single attempt, got %d", kind, b.calls)
		}
	}
}

func TestTranslateNonRetryableFallsBack(t *testing.T) {
	b := &fakeBackend{errs: []error{
		&types.TranslateError{Kind: types.TranslateNotFound, Err: fmt.Errorf("no translation")},
	}}
	tr := New(b, fastOpts(5), testLogger)

	out, err := tr.Translate(context.Background(), "text", true)
	if err != nil {
		t.Fatal(err)
	}
	if out != "text" {
		t.Errorf("expected original text, got %q", out)
	}
}

func TestTranslateContextCancelledDuringBackoff(t *testing.T) {
	always := []error{rateLimited(), rateLimited(), rateLimited(), rateLimited()}
	b := &fakeBackend{errs: always}
	tr := New(b, Options{
		TargetLang: "zh-TW",
		MaxRetries: 3,
		BaseDelay:  time.Hour, // never elapses
		MaxDelay:   time.Hour,
	}, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	out, err := tr.Translate(ctx, "text", true)
	if err != nil {
		t.Fatal(err)
	}
	if out != "text" {
		t.Errorf("expected fallback on cancellation, got %q", out)
	}
	if b.calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", b.calls)
	}
}

func TestDecodeGoogleResponse(t *testing.T) {
	body := []byte(`[[["黃金上漲","gold rallies",null,null,10],["。"," .",null,null,3]],null,"en"]`)
	out, err := decodeGoogleResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	if out != "黃金上漲。" {
		t.Errorf("unexpected decode %q", out)
	}
}

func TestDecodeGoogleResponseEmpty(t *testing.T) {
	for _, body := range []string{`[]`, `[[]]`, `null`, `{"bad":"shape"}`} {
		if _, err := decodeGoogleResponse([]byte(body)); err == nil {
			t.Errorf("body %s: expected error", body)
		}
	}
}
