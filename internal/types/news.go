package types

import (
	"strings"
	"time"
)

// NewsItem is a single article parsed out of the news stream page.
// Items are ephemeral: produced by the parser, classified and persisted
// in the same crawl cycle, never stored in this form.
type NewsItem struct {
	// Title is the headline text.
	Title string

	// Content is the article body. Often empty for ticker-style updates.
	Content string

	// FullText is title plus content, used for keyword classification.
	FullText string

	// PublishedAt is the site-provided timestamp, kept as raw display
	// text. It is free-form and not guaranteed to parse.
	PublishedAt string
}

// NewNewsItem builds an item and derives FullText from title + content.
func NewNewsItem(title, content, publishedAt string) NewsItem {
	full := strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(content))
	return NewsItem{
		Title:       strings.TrimSpace(title),
		Content:     strings.TrimSpace(content),
		FullText:    full,
		PublishedAt: strings.TrimSpace(publishedAt),
	}
}

// SavedRecord summarizes one news item accepted into storage.
type SavedRecord struct {
	// Bucket is the commodity partition the record was filed under.
	Bucket string `json:"bucket"`

	// ID is the 1-based sequence number within the (bucket, day) file.
	ID int `json:"id"`

	Title   string `json:"title"`
	Content string `json:"content,omitempty"`

	// Time is the raw display timestamp carried over from the item.
	Time string `json:"time,omitempty"`

	// SavedAt is when the record was written.
	SavedAt time.Time `json:"saved_at"`
}
