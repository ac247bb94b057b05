// Package extract pulls article text, links and metadata out of parsed news
// pages. Extraction is heuristic throughout: every strategy has a fallback
// and a missing field is an empty string, never an error.
package extract

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexjohnyoung/truthtracer/textutil"
)

// Link is an outbound anchor found in an article body.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Content is the structured record produced for one scraped article. Missing
// fields are empty strings so callers can merge records by truthiness.
type Content struct {
	URL                string `json:"url"`
	Domain             string `json:"domain"`
	Headline           string `json:"headline"`
	Author             string `json:"author"`
	PublishDate        string `json:"publishDate"`
	Text               string `json:"text"`
	Links              []Link `json:"links"`
	RequiresJavaScript bool   `json:"requires_javascript"`
}

// minContentLength is the floor below which the semantic-element strategy is
// considered to have failed.
const minContentLength = 300

// semanticSelectors mark elements that conventionally hold the article body.
var semanticSelectors = []string{
	"article",
	"main",
	`[role="main"]`,
	`[itemprop="articleBody"]`,
}

// noisePattern matches class/id attributes of page chrome that should never
// be mistaken for article content.
var noisePattern = regexp.MustCompile(`(?i)sidebar|comment|footer|header|menu|nav|social|share|related|ad|popup|cookie|paywall`)

// ContentExtractor extracts article body text and outbound links from a
// parsed page.
type ContentExtractor struct {
	logger *slog.Logger
}

// NewContentExtractor creates a content extractor. A nil logger falls back to
// slog.Default.
func NewContentExtractor(logger *slog.Logger) *ContentExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentExtractor{logger: logger}
}

// Extract returns a content record with the body text and links filled in.
// Metadata fields are left empty for the metadata extractor.
func (e *ContentExtractor) Extract(doc *goquery.Document, url string) *Content {
	content := &Content{
		URL:    url,
		Domain: textutil.ExtractDomain(url),
		Links:  []Link{},
	}

	if doc == nil {
		return content
	}

	content.Text = e.extractText(doc)
	content.Links = e.extractLinks(doc)

	e.logger.Info("extracted content",
		"domain", content.Domain,
		"chars", len(content.Text),
		"links", len(content.Links))
	return content
}

// extractText tries the semantic-element strategy first and falls back to
// collecting substantial paragraphs.
func (e *ContentExtractor) extractText(doc *goquery.Document) string {
	if text := e.extractBySemanticElements(doc); len(text) >= minContentLength {
		return text
	}
	return e.extractByParagraphs(doc)
}

// extractBySemanticElements looks for article/main containers, drops those
// whose class or id marks them as page chrome, and keeps the longest
// surviving candidate.
func (e *ContentExtractor) extractBySemanticElements(doc *goquery.Document) string {
	for _, selector := range semanticSelectors {
		var candidates []string
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if isNoiseElement(sel) {
				return
			}
			if text := strings.TrimSpace(sel.Text()); text != "" {
				candidates = append(candidates, text)
			}
		})

		if len(candidates) == 0 {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			return len(candidates[i]) > len(candidates[j])
		})

		e.logger.Debug("found content via semantic element",
			"selector", selector, "chars", len(candidates[0]))
		return candidates[0]
	}

	return ""
}

// extractByParagraphs collects every paragraph with substantial text and
// joins them with blank lines.
func (e *ContentExtractor) extractByParagraphs(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) > 40 {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return ""
	}

	e.logger.Debug("found content via paragraphs", "count", len(paragraphs))
	return strings.Join(paragraphs, "\n\n")
}

// extractLinks collects anchors with a usable href and visible text.
func (e *ContentExtractor) extractLinks(doc *goquery.Document) []Link {
	links := []Link{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") {
			return
		}

		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}

		links = append(links, Link{Href: href, Text: text})
	})
	return links
}

// isNoiseElement reports whether an element's class/id attributes mark it as
// page chrome.
func isNoiseElement(sel *goquery.Selection) bool {
	attrs := sel.AttrOr("class", "") + " " + sel.AttrOr("id", "")
	return noisePattern.MatchString(attrs)
}
