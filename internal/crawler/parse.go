package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/quantbench/newswatch/internal/types"
)

// updateNoticePattern matches the upstream site's administrative
// "Commodities Updates:" ticker notices. Notices with no body are
// dropped during parsing. This is a textual heuristic tied to one
// site's phrasing; if the upstream wording changes it stops filtering.
var updateNoticePattern = regexp.MustCompile(`(?i)^commodities\s+updates?\s*:`)

// fieldExtractor resolves one item field: selectors are tried in order
// and the first non-empty text wins.
type fieldExtractor struct {
	selectors []string
}

func (fe fieldExtractor) extract(sel *goquery.Selection) string {
	for _, s := range fe.selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// parseVariant is one (selector, field-extractors) strategy for a page
// layout. Variants are ranked most-specific first; the first one whose
// item selector matches anything wins outright — results from different
// variants are never merged.
type parseVariant struct {
	name      string
	items     string
	title     fieldExtractor
	content   fieldExtractor
	timestamp fieldExtractor
}

// parseResult is the outcome of applying one variant.
type parseResult struct {
	matched bool
	items   []types.NewsItem
}

// cssVariants covers the known upstream layouts, newest markup first.
var cssVariants = []parseVariant{
	{
		name:      "news-list",
		items:     `ul[data-test="news-list"] > li`,
		title:     fieldExtractor{[]string{`a[data-test="article-title-link"]`, "a"}},
		content:   fieldExtractor{[]string{`p[data-test="article-description"]`, "p"}},
		timestamp: fieldExtractor{[]string{"time", `span[data-test="article-publish-date"]`}},
	},
	{
		name:      "article-items",
		items:     "div.js-article-item",
		title:     fieldExtractor{[]string{"a.title", "a"}},
		content:   fieldExtractor{[]string{"p.js-news-teaser", "p"}},
		timestamp: fieldExtractor{[]string{"span.js-date", "time"}},
	},
	{
		name:      "generic-article",
		items:     "article",
		title:     fieldExtractor{[]string{"h2", "h3", "a"}},
		content:   fieldExtractor{[]string{"p"}},
		timestamp: fieldExtractor{[]string{"time", "span.date"}},
	},
}

// applyVariant runs one CSS variant against the document.
func applyVariant(doc *goquery.Document, v parseVariant) parseResult {
	matches := doc.Find(v.items)
	if matches.Length() == 0 {
		return parseResult{}
	}

	var items []types.NewsItem
	matches.Each(func(_ int, sel *goquery.Selection) {
		item := types.NewNewsItem(
			v.title.extract(sel),
			v.content.extract(sel),
			v.timestamp.extract(sel),
		)
		if keepItem(item) {
			items = append(items, item)
		}
	})
	return parseResult{matched: true, items: items}
}

// xpathVariant is the last-resort strategy: a permissive XPath sweep for
// anything shaped like a list of linked entries.
const xpathItems = `//li[.//a] | //div[contains(@class,"news")][.//a]`

func applyXPathVariant(root *html.Node) parseResult {
	nodes, err := htmlquery.QueryAll(root, xpathItems)
	if err != nil || len(nodes) == 0 {
		return parseResult{}
	}

	var items []types.NewsItem
	for _, n := range nodes {
		title := ""
		if a := htmlquery.FindOne(n, ".//a"); a != nil {
			title = strings.TrimSpace(htmlquery.InnerText(a))
		}
		content := ""
		if p := htmlquery.FindOne(n, ".//p"); p != nil {
			content = strings.TrimSpace(htmlquery.InnerText(p))
		}
		ts := ""
		if tn := htmlquery.FindOne(n, ".//time"); tn != nil {
			ts = strings.TrimSpace(htmlquery.InnerText(tn))
		}

		item := types.NewNewsItem(title, content, ts)
		if keepItem(item) {
			items = append(items, item)
		}
	}
	return parseResult{matched: true, items: items}
}

// keepItem applies the two content filters: empty text, and body-less
// administrative update notices.
func keepItem(item types.NewsItem) bool {
	if strings.TrimSpace(item.FullText) == "" {
		return false
	}
	if item.Content == "" && updateNoticePattern.MatchString(item.Title) {
		return false
	}
	return true
}
