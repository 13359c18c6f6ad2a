package crawler

import (
	"context"
)

// PageFetcher renders the target news page and returns its HTML.
type PageFetcher interface {
	// Fetch retrieves the fully rendered page content.
	Fetch(ctx context.Context) (string, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}
