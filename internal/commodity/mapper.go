// Package commodity classifies free-text news into the fixed set of
// storage buckets used to partition the markets directory.
package commodity

import (
	"log/slog"
	"os"
	"strings"
	"unicode"
)

// Bucket names double as storage directory names under the markets root.
const (
	Gold       = "Gold"
	Silver     = "Silver"
	Copper     = "Copper"
	Platinum   = "Platinum"
	Palladium  = "Palladium"
	Wti        = "Wti"
	Brent      = "Brent"
	NaturalGas = "NaturalGas"
	HeatingOil = "HeatingOil"
	Bitcoin    = "Bitcoin"
	Ethereum   = "Ethereum"
	Corn       = "Corn"
	Wheat      = "Wheat"
	Soybean    = "Soybean"
	Coffee     = "Coffee"
	Sugar      = "Sugar"
	Cotton     = "Cotton"
	Cocoa      = "Cocoa"
	Aluminum   = "Aluminum"
	Zinc       = "Zinc"
	Nickel     = "Nickel"

	// Others is the sentinel bucket for news no keyword claims.
	Others = "Others"
)

// keywordRule binds one lowercase substring to its bucket. The table is
// ordered: the first keyword found in the text wins, so specific terms
// must come before catch-alls ("brent" before "oil").
type keywordRule struct {
	keyword string
	bucket  string
}

// keywordTable is static and many-to-one. "oil" is a deliberate
// catch-all that files generic oil headlines under Wti.
var keywordTable = []keywordRule{
	{"gold", Gold},
	{"xau", Gold},
	{"silver", Silver},
	{"xag", Silver},
	{"copper", Copper},
	{"platinum", Platinum},
	{"palladium", Palladium},
	{"wti", Wti},
	{"crude", Wti},
	{"brent", Brent},
	{"natural gas", NaturalGas},
	{"natgas", NaturalGas},
	{"heating oil", HeatingOil},
	{"oil", Wti},
	{"bitcoin", Bitcoin},
	{"btc", Bitcoin},
	{"ethereum", Ethereum},
	{"eth", Ethereum},
	{"corn", Corn},
	{"wheat", Wheat},
	{"soybean", Soybean},
	{"soy", Soybean},
	{"coffee", Coffee},
	{"sugar", Sugar},
	{"cotton", Cotton},
	{"cocoa", Cocoa},
	{"aluminium", Aluminum},
	{"aluminum", Aluminum},
	{"zinc", Zinc},
	{"nickel", Nickel},
}

// wholeWordKeywords are short ticker symbols that occur inside ordinary
// English words ("eth" in "whether", "wheat"-adjacent text). They only
// match between word boundaries; the longer keywords stay plain
// substring matches so "bitcoins" and "soybeans" still hit.
var wholeWordKeywords = map[string]struct{}{
	"xau": {},
	"xag": {},
	"btc": {},
	"eth": {},
}

// matchKeyword applies the boundary rule for short tickers and plain
// substring containment for everything else. text must be lowercased.
func matchKeyword(text, keyword string) bool {
	if _, ok := wholeWordKeywords[keyword]; ok {
		return containsWord(text, keyword)
	}
	return strings.Contains(text, keyword)
}

// containsWord reports whether word occurs in text with no letter or
// digit immediately before or after the occurrence.
func containsWord(text, word string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(rune(text[start-1]))
		afterOK := end == len(text) || !isWordChar(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		i = start + 1
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Mapper resolves news text to a bucket whose storage directory exists.
// The set of existing directories is read once at construction and never
// refreshed for the lifetime of the instance.
type Mapper struct {
	existing map[string]struct{}
	logger   *slog.Logger
}

// NewMapper enumerates the bucket directories under root and caches the
// set. A missing or unreadable root yields an empty cache, not an error;
// every extraction will then miss and callers fall through to Others.
func NewMapper(root string, logger *slog.Logger) *Mapper {
	m := &Mapper{
		existing: make(map[string]struct{}),
		logger:   logger.With("component", "commodity_mapper"),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		m.logger.Warn("cannot enumerate bucket directories", "root", root, "error", err)
		return m
	}
	for _, e := range entries {
		if e.IsDir() {
			m.existing[e.Name()] = struct{}{}
		}
	}
	m.logger.Debug("bucket directories cached", "count", len(m.existing))
	return m
}

// Extract returns the bucket for the first keyword found in text whose
// directory exists on disk. A keyword match with a missing directory
// keeps scanning the remaining table. The second return is false when
// no keyword matches at all or every match lacks a directory.
func (m *Mapper) Extract(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range keywordTable {
		if !matchKeyword(lower, rule.keyword) {
			continue
		}
		if _, ok := m.existing[rule.bucket]; ok {
			return rule.bucket, true
		}
		// Matched bucket has no backing directory; try later keywords.
	}
	return "", false
}

// Buckets returns the closed set of bucket names the keyword table can
// produce, excluding Others.
func Buckets() []string {
	seen := make(map[string]struct{}, len(keywordTable))
	out := make([]string, 0, len(keywordTable))
	for _, rule := range keywordTable {
		if _, ok := seen[rule.bucket]; ok {
			continue
		}
		seen[rule.bucket] = struct{}{}
		out = append(out, rule.bucket)
	}
	return out
}
