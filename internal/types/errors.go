package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrCrawlerDisabled = errors.New("crawler is disabled by configuration")
	ErrNoSelectorMatch = errors.New("no selector variant matched the page")
	ErrDuplicateTitle  = errors.New("duplicate title in day file")
	ErrStoreClosed     = errors.New("news store is closed")
)

// FetchError wraps errors that occur while rendering the target page.
type FetchError struct {
	URL       string
	Err       error
	Retryable bool
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur during DOM extraction.
type ParseError struct {
	Variant  string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in variant %q (selector=%q): %v", e.Variant, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while appending to a day file.
type StorageError struct {
	Bucket string
	Path   string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error for bucket %s (%s): %v", e.Bucket, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotifyError wraps a delivery failure for one notification sink.
type NotifyError struct {
	Sink string
	Err  error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify error (%s): %v", e.Sink, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// TranslateKind classifies translation failures. RateLimited and
// Network are transient and worth retrying; TextTooLong and
// NotFound indicate a caller/data problem and are surfaced
// immediately.
type TranslateKind int

const (
	TranslateRateLimited TranslateKind = iota
	TranslateNetwork
	TranslateTextTooLong
	TranslateNotFound
)

func (k TranslateKind) String() string {
	switch k {
	case TranslateRateLimited:
		return "rate_limited"
	case TranslateNetwork:
		return "network"
	case TranslateTextTooLong:
		return "text_too_long"
	case TranslateNotFound:
		return "not_translated"
	default:
		return "unknown"
	}
}

// TranslateError wraps errors from the translation backend.
type TranslateError struct {
	Kind TranslateKind
	Err  error
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("translate error (%s): %v", e.Kind, e.Err)
}

func (e *TranslateError) Unwrap() error { return e.Err }

func (e *TranslateError) IsRetryable() bool {
	return e.Kind == TranslateRateLimited || e.Kind == TranslateNetwork
}
