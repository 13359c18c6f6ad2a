// Package translate provides best-effort translation of notification
// text with retry, backoff, and fallback-to-original semantics.
package translate

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/quantbench/newswatch/internal/types"
)

// Backend performs one translation attempt against an external service.
// Failures must be reported as *types.TranslateError so the retry loop
// can classify them.
type Backend interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Options configures a Translator.
type Options struct {
	TargetLang string

	// MaxRetries is the number of extra attempts after the first, for
	// rate-limit and network failures only.
	MaxRetries int

	// BaseDelay seeds the exponential backoff; MaxDelay caps it.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Translator wraps a Backend with the retry policy. It is constructed
// once at startup and injected into the scheduler; it holds no per-call
// state, so concurrent use is safe.
type Translator struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
}

// New creates a Translator.
func New(backend Backend, opts Options, logger *slog.Logger) *Translator {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = 30 * time.Second
	}
	return &Translator{
		backend: backend,
		opts:    opts,
		logger:  logger.With("component", "translator"),
	}
}

// TargetLang returns the configured target language code.
func (t *Translator) TargetLang() string { return t.opts.TargetLang }

// Translate translates text to the configured target language.
//
// Empty or all-whitespace input is returned unchanged without touching
// the backend. Rate-limit and network failures are retried up to
// MaxRetries extra attempts with capped exponential backoff and ±50%
// jitter. Invalid-length and not-translated failures are never retried.
// When retries are exhausted or the failure is non-retryable: with
// fallbackToOriginal the original text is returned and the failure only
// logged; otherwise the error is returned.
func (t *Translator) Translate(ctx context.Context, text string, fallbackToOriginal bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	var lastErr error
loop:
	for attempt := 0; attempt <= t.opts.MaxRetries; attempt++ {
		out, err := t.backend.Translate(ctx, text, t.opts.TargetLang)
		if err == nil {
			return out, nil
		}
		lastErr = err

		terr, ok := err.(*types.TranslateError)
		if !ok || !terr.IsRetryable() {
			// Caller/data problem: retrying cannot help.
			break
		}
		if attempt == t.opts.MaxRetries {
			break
		}

		delay := t.backoff(attempt)
		t.logger.Debug("translate retry backoff",
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr,
		)
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break loop
		case <-time.After(delay):
		}
	}

	if fallbackToOriginal {
		t.logger.Warn("translation failed, returning original text", "error", lastErr)
		return text, nil
	}
	return "", lastErr
}

// backoff computes the delay before retry i (0-indexed):
// min(base * 2^i, max) * U(0.5, 1.5).
func (t *Translator) backoff(i int) time.Duration {
	delay := t.opts.BaseDelay << uint(i)
	if delay > t.opts.MaxDelay || delay <= 0 {
		delay = t.opts.MaxDelay
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(delay) * jitter)
}
