package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/types"
)

// HTTPFetcher is the fallback fetcher for deployments without Chromium.
// It sends a browser-like header set and handles brotli/gzip/deflate
// itself. Sites that render the news list client-side will defeat it;
// it exists for mirrors and tests, not as the primary path.
type HTTPFetcher struct {
	cfg    *config.CrawlerConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(cfg *config.CrawlerConfig, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.PageTimeout,
			Transport: &http.Transport{
				// Decompression is handled below, including brotli.
				DisableCompression: true,
			},
		},
		logger: logger.With("component", "http_fetcher"),
	}
}

func (f *HTTPFetcher) Type() string { return "http" }

// Fetch retrieves the target page over plain HTTP.
func (f *HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.TargetURL, nil)
	if err != nil {
		return "", &types.FetchError{URL: f.cfg.TargetURL, Err: err, Retryable: false}
	}

	req.Header.Set("User-Agent", f.cfg.UserAgents[rand.Intn(len(f.cfg.UserAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &types.FetchError{URL: f.cfg.TargetURL, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.FetchError{
			URL:       f.cfg.TargetURL,
			Err:       fmt.Errorf("status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return "", &types.FetchError{URL: f.cfg.TargetURL, Err: err, Retryable: true}
	}

	f.logger.Debug("http fetch complete", "url", f.cfg.TargetURL, "size", len(body))
	return body, nil
}

func (f *HTTPFetcher) Close() error { return nil }

// decodeBody decompresses the response according to Content-Encoding.
func decodeBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	data, err := io.ReadAll(io.LimitReader(reader, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}
