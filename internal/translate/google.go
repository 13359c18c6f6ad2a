package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantbench/newswatch/internal/types"
)

const (
	googleEndpoint = "https://translate.googleapis.com/translate_a/single"

	// maxTextLen mirrors the upstream request size limit.
	maxTextLen = 5000
)

// GoogleBackend translates via the public Google web endpoint. No API
// key is required, which is also why the service rate-limits eagerly —
// the Translator's backoff exists for exactly this backend.
type GoogleBackend struct {
	client *http.Client
	logger *slog.Logger
}

// NewGoogleBackend creates a backend with a bounded-timeout client.
func NewGoogleBackend(logger *slog.Logger) *GoogleBackend {
	return &GoogleBackend{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With("component", "google_translate"),
	}
}

// Translate implements Backend.
func (g *GoogleBackend) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if len(text) > maxTextLen {
		return "", &types.TranslateError{
			Kind: types.TranslateTextTooLong,
			Err:  fmt.Errorf("text length %d exceeds limit %d", len(text), maxTextLen),
		}
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", targetLang)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", &types.TranslateError{Kind: types.TranslateNetwork, Err: err}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &types.TranslateError{Kind: types.TranslateNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &types.TranslateError{
			Kind: types.TranslateRateLimited,
			Err:  fmt.Errorf("endpoint returned 429"),
		}
	case resp.StatusCode == http.StatusBadRequest:
		return "", &types.TranslateError{
			Kind: types.TranslateNotFound,
			Err:  fmt.Errorf("endpoint rejected request (400)"),
		}
	case resp.StatusCode != http.StatusOK:
		return "", &types.TranslateError{
			Kind: types.TranslateNetwork,
			Err:  fmt.Errorf("endpoint returned %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &types.TranslateError{Kind: types.TranslateNetwork, Err: err}
	}

	out, err := decodeGoogleResponse(body)
	if err != nil {
		return "", &types.TranslateError{Kind: types.TranslateNotFound, Err: err}
	}
	return out, nil
}

// decodeGoogleResponse unpacks the endpoint's nested-array payload:
// [[[ "translated", "original", ... ], ...], ...]. Segments are
// concatenated in order.
func decodeGoogleResponse(body []byte) (string, error) {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty response payload")
	}

	segments, ok := payload[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected payload shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no translation in response")
	}
	return b.String(), nil
}
