package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/alexjohnyoung/truthtracer/textutil"
)

const googleNewsRSSURL = "https://news.google.com/rss/search"

// rssSearcher queries the Google News RSS feed. It needs no browser, so it
// serves as the fallback when the rendered search path is unavailable or
// returns nothing.
type rssSearcher struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

func newRSSSearcher(logger *slog.Logger) *rssSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &rssSearcher{
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// search queries the feed and applies the same origin, duplicate and
// blacklist filtering as the browser path.
func (r *rssSearcher) search(ctx context.Context, query, originalURL string, numResults int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")
	feedURL := googleNewsRSSURL + "?" + params.Encode()

	r.logger.Info("searching rss feed", "url", feedURL)

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing news feed: %w", err)
	}

	return r.filterItems(feed.Items, originalURL, numResults), nil
}

func (r *rssSearcher) filterItems(items []*gofeed.Item, originalURL string, numResults int) []Result {
	results := []Result{}

	originalDomain := textutil.ExtractDomain(originalURL)
	normalizedOriginal := textutil.NormalizeURL(originalURL)
	seen := map[string]bool{}

	for _, item := range items {
		if item == nil || item.Link == "" {
			continue
		}

		if shouldSkipURL(item.Link, originalDomain, normalizedOriginal, seen) {
			continue
		}

		seen[textutil.NormalizeURL(item.Link)] = true
		results = append(results, Result{URL: item.Link, Title: item.Title})

		if len(results) >= numResults {
			break
		}
	}

	r.logger.Info("rss search produced results", "count", len(results))
	return results
}
