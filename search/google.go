// Package search finds corroborating news coverage for an article. The
// primary path drives a browser through Google News search, since result
// pages are rendered client-side; a Google News RSS feed serves as the
// fallback when no browser is available or the browser path comes up empty.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexjohnyoung/truthtracer/textutil"
)

const googleBaseURL = "https://www.google.com"

// maxQueryLength caps the search query to keep URLs sane.
const maxQueryLength = 200

// maxQueryWords caps the query after stopword removal. Long, over-specific
// queries tend to return nothing.
const maxQueryWords = 10

// Result is one candidate reference article.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Browser is the rendering capability the harvester drives. Satisfied by
// scrape.DynamicFetcher.
type Browser interface {
	FetchHTML(ctx context.Context, url string) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	DismissConsent(ctx context.Context) bool
	HTML(ctx context.Context) (string, error)
}

// blacklistedDomains never count as corroborating news sources.
var blacklistedDomains = []string{
	"youtube.com", "facebook.com", "twitter.com", "instagram.com",
	"policies.google.com",
}

// stopwords are dropped from search queries built out of headlines.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "with": true,
	"by": true, "about": true, "as": true, "into": true, "like": true,
	"through": true, "after": true, "over": true, "between": true, "out": true,
	"of": true, "during": true, "without": true, "before": true, "under": true,
	"around": true, "among": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "having": true, "do": true, "does": true,
	"did": true, "doing": true, "can": true, "could": true, "will": true,
	"would": true, "should": true, "must": true, "might": true, "may": true,
	"here": true, "there": true, "this": true, "that": true, "these": true,
	"those": true, "am": true, "from": true, "whom": true, "which": true,
	"who": true, "how": true, "when": true, "where": true, "why": true,
	"what": true, "it": true, "its": true, "it's": true, "we": true,
	"us": true, "our": true, "ours": true, "he": true, "him": true,
	"his": true, "she": true, "her": true, "hers": true, "they": true,
	"them": true, "their": true, "theirs": true, "all": true, "both": true,
	"some": true, "any": true, "most": true, "more": true, "no": true,
	"nor": true,
}

// Harvester searches Google News for reference articles and filters the
// results down to distinct, third-party coverage.
type Harvester struct {
	browser Browser
	rss     *rssSearcher
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

// NewHarvester creates a harvester. The browser may be nil, in which case
// only the RSS fallback is used.
func NewHarvester(browser Browser, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{
		browser: browser,
		rss:     newRSSSearcher(logger),
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// SearchNews finds up to numResults reference articles for the query.
// Results from the originating article's URL or domain, duplicate URLs and
// blacklisted domains are discarded. daysOld and publishDate steer the
// search date window.
func (h *Harvester) SearchNews(ctx context.Context, query, originalURL string, numResults, daysOld int, publishDate string) ([]Result, error) {
	if numResults <= 0 {
		numResults = 10
	}

	results, err := h.searchBrowser(ctx, query, originalURL, numResults, daysOld, publishDate)
	if err != nil {
		h.logger.Warn("browser search failed, falling back to rss", "error", err)
	} else if len(results) > 0 {
		return results, nil
	} else {
		h.logger.Info("browser search returned no results, falling back to rss")
	}

	return h.rss.search(ctx, query, originalURL, numResults)
}

func (h *Harvester) searchBrowser(ctx context.Context, query, originalURL string, numResults, daysOld int, publishDate string) ([]Result, error) {
	if h.browser == nil {
		return nil, fmt.Errorf("no browser available")
	}

	searchURL := h.buildSearchURL(query, numResults, daysOld, publishDate)
	h.logger.Info("searching", "url", searchURL)

	html, err := h.browser.FetchHTML(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("fetching search results: %w", err)
	}

	// Google sometimes redirects to its consent interstitial instead
	if current, err := h.browser.CurrentURL(ctx); err == nil && strings.Contains(current, "consent.google.com") {
		h.logger.Info("landed on consent page, attempting dismissal")
		if h.browser.DismissConsent(ctx) {
			h.sleep(2 * time.Second)
			if updated, err := h.browser.HTML(ctx); err == nil && updated != "" {
				html = updated
			}
		} else {
			h.logger.Warn("failed to dismiss consent page")
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	return h.extractResults(doc, originalURL, numResults), nil
}

// buildSearchURL assembles a news-only Google search URL with a date window
// derived from the article's publication date. Queries that already carry
// date operators keep them.
func (h *Harvester) buildSearchURL(query string, numResults, daysOld int, publishDate string) string {
	params := url.Values{}
	params.Set("hl", "en")
	params.Set("q", query)
	params.Set("tbm", "nws")
	params.Set("num", strconv.Itoa(numResults))

	hasDateInQuery := strings.Contains(query, "date:") ||
		strings.Contains(query, "before:") ||
		strings.Contains(query, "after:")
	if !hasDateInQuery {
		if window := textutil.SearchDateWindow(publishDate, daysOld, h.now()); window != "" {
			params.Set("tbs", window)
		}
	}

	return googleBaseURL + "/search?" + params.Encode()
}

// extractResults walks the news-result containers on a rendered results
// page and collects distinct, third-party articles.
func (h *Harvester) extractResults(doc *goquery.Document, originalURL string, numResults int) []Result {
	results := []Result{}

	originalDomain := textutil.ExtractDomain(originalURL)
	normalizedOriginal := textutil.NormalizeURL(originalURL)
	seen := map[string]bool{}

	doc.Find("div[data-news-cluster-id]").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		// The headline link is the first anchor carrying both href and a
		// tracking ping attribute
		link := item.Find("a[href][ping]").First()
		if link.Length() == 0 {
			return true
		}

		resultURL := textutil.RedirectTarget(link.AttrOr("href", ""))
		if !strings.HasPrefix(resultURL, "http") {
			return true
		}

		if h.shouldSkip(resultURL, originalDomain, normalizedOriginal, seen) {
			return true
		}

		title := strings.TrimSpace(item.Find(`[role="heading"]`).First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}

		seen[textutil.NormalizeURL(resultURL)] = true
		results = append(results, Result{URL: resultURL, Title: title})
		h.logger.Info("added news result", "url", resultURL, "title", title)

		return len(results) < numResults
	})

	return results
}

// shouldSkip discards duplicates, the originating article and blacklisted
// domains.
func (h *Harvester) shouldSkip(resultURL, originalDomain, normalizedOriginal string, seen map[string]bool) bool {
	skip := shouldSkipURL(resultURL, originalDomain, normalizedOriginal, seen)
	if skip {
		h.logger.Info("skipping result", "url", resultURL)
	}
	return skip
}

func shouldSkipURL(resultURL, originalDomain, normalizedOriginal string, seen map[string]bool) bool {
	normalized := textutil.NormalizeURL(resultURL)

	if seen[normalized] {
		return true
	}

	if normalizedOriginal != "" && normalized == normalizedOriginal {
		return true
	}

	if originalDomain != "" && textutil.ExtractDomain(resultURL) == originalDomain {
		return true
	}

	lower := strings.ToLower(resultURL)
	for _, domain := range blacklistedDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}

	return false
}

// QueryFromHeadline turns an article headline into a search query: site
// operators are stripped, stopwords removed, and the result capped to a
// handful of words.
func QueryFromHeadline(headline string) string {
	var words []string
	for _, word := range strings.Fields(headline) {
		if strings.HasPrefix(strings.ToLower(word), "site:") {
			continue
		}
		words = append(words, word)
	}
	query := strings.Join(words, " ")

	query = optimiseQuery(query)

	if len(query) > maxQueryLength {
		query = query[:maxQueryLength]
		if idx := strings.LastIndex(query, " "); idx > 0 {
			query = query[:idx]
		}
	}

	return query
}

// optimiseQuery removes stopwords from longer queries and caps the word
// count. Queries of three words or fewer pass through untouched.
func optimiseQuery(query string) string {
	words := strings.Fields(query)
	if len(words) <= 3 {
		return query
	}

	var filtered []string
	for _, word := range words {
		if !stopwords[strings.ToLower(word)] {
			filtered = append(filtered, word)
		}
	}

	// Overzealous filtering is worse than none
	if len(filtered) < 2 {
		filtered = words
	}

	if len(filtered) > maxQueryWords {
		filtered = filtered[:maxQueryWords]
	}

	return strings.Join(filtered, " ")
}
