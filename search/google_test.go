package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	html             string
	fetchErr         error
	currentURL       string
	consentDismissed bool
	postConsentHTML  string
	fetchCalls       int
}

func (f *fakeBrowser) FetchHTML(context.Context, string) (string, error) {
	f.fetchCalls++
	return f.html, f.fetchErr
}

func (f *fakeBrowser) CurrentURL(context.Context) (string, error) {
	return f.currentURL, nil
}

func (f *fakeBrowser) DismissConsent(context.Context) bool {
	return f.consentDismissed
}

func (f *fakeBrowser) HTML(context.Context) (string, error) {
	return f.postConsentHTML, nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func newsItem(href, heading string) string {
	return `<div data-news-cluster-id="x">
		<a href="` + href + `" ping="/ping"><div role="heading">` + heading + `</div></a>
	</div>`
}

// resultsPage builds a rendered search page with five candidates: one from
// the original article's domain, one a duplicate URL with extra tracking
// parameters, and three distinct third-party stories.
func resultsPage() string {
	return `<html><body>` +
		newsItem("https://news-a.com/story1", "Story A") +
		newsItem("https://www.example.com/another-take", "Same Domain Story") +
		newsItem("https://news-a.com/story1?utm_source=feed", "Story A Duplicate") +
		newsItem("/url?q=https://news-b.com/story2&sa=U", "Story B") +
		newsItem("https://news-c.com/story3", "Story C") +
		`</body></html>`
}

func testHarvester(browser Browser) *Harvester {
	h := NewHarvester(browser, silentLogger())
	h.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	h.sleep = func(time.Duration) {}
	return h
}

func TestHarvester_SearchNewsFiltering(t *testing.T) {
	browser := &fakeBrowser{html: resultsPage()}
	h := testHarvester(browser)

	results, err := h.SearchNews(context.Background(), "housing vote", "https://example.com/orig", 10, 7, "")

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, Result{URL: "https://news-a.com/story1", Title: "Story A"}, results[0])
	assert.Equal(t, Result{URL: "https://news-b.com/story2", Title: "Story B"}, results[1])
	assert.Equal(t, Result{URL: "https://news-c.com/story3", Title: "Story C"}, results[2])
}

func TestHarvester_ResultCap(t *testing.T) {
	browser := &fakeBrowser{html: resultsPage()}
	h := testHarvester(browser)

	results, err := h.SearchNews(context.Background(), "housing vote", "", 2, 7, "")

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHarvester_BlacklistedDomains(t *testing.T) {
	html := `<html><body>` +
		newsItem("https://www.youtube.com/watch?v=abc", "Video") +
		newsItem("https://news-a.com/story1", "Story A") +
		`</body></html>`
	h := testHarvester(&fakeBrowser{html: html})

	results, err := h.SearchNews(context.Background(), "q", "", 10, 7, "")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://news-a.com/story1", results[0].URL)
}

func TestHarvester_ConsentPageDismissal(t *testing.T) {
	browser := &fakeBrowser{
		html:             "<html><body>consent wall</body></html>",
		currentURL:       "https://consent.google.com/m?continue=search",
		consentDismissed: true,
		postConsentHTML:  resultsPage(),
	}
	h := testHarvester(browser)

	results, err := h.SearchNews(context.Background(), "q", "", 10, 7, "")

	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestHarvester_BuildSearchURL(t *testing.T) {
	h := testHarvester(&fakeBrowser{})

	t.Run("base parameters", func(t *testing.T) {
		u := h.buildSearchURL("housing vote", 10, 7, "")
		assert.Contains(t, u, "hl=en")
		assert.Contains(t, u, "q=housing+vote")
		assert.Contains(t, u, "tbm=nws")
		assert.Contains(t, u, "num=10")
		assert.Contains(t, u, "tbs=qdr%3Am1")
	})

	t.Run("publication date window", func(t *testing.T) {
		u := h.buildSearchURL("housing vote", 10, 7, "2024-01-01")
		assert.Contains(t, u, "cdr%3A1")
		assert.Contains(t, u, "cd_min%3A12%2F18%2F2023")
		assert.Contains(t, u, "cd_max%3A1%2F31%2F2024")
	})

	t.Run("date operators in query suppress window", func(t *testing.T) {
		u := h.buildSearchURL("housing vote after:2024-01-01", 10, 7, "")
		assert.NotContains(t, u, "tbs=")
	})
}

func TestHarvester_FetchErrorFallsBackToRSS(t *testing.T) {
	browser := &fakeBrowser{fetchErr: errors.New("browser down")}
	h := testHarvester(browser)

	// The fallback path filters feed items the same way the browser path
	// filters rendered results.
	items := []*gofeed.Item{
		{Link: "https://news-a.com/story1", Title: "Story A"},
		{Link: "https://example.com/orig", Title: "The Original"},
		{Link: "https://news-a.com/story1?utm_source=rss", Title: "Dup"},
		{Link: "https://news-b.com/story2", Title: "Story B"},
	}
	results := h.rss.filterItems(items, "https://example.com/orig", 10)

	require.Len(t, results, 2)
	assert.Equal(t, "https://news-a.com/story1", results[0].URL)
	assert.Equal(t, "https://news-b.com/story2", results[1].URL)
}

func TestQueryFromHeadline(t *testing.T) {
	t.Run("short query untouched", func(t *testing.T) {
		assert.Equal(t, "Housing Vote Passes", QueryFromHeadline("Housing Vote Passes"))
	})

	t.Run("stopwords removed", func(t *testing.T) {
		got := QueryFromHeadline("The council has approved the new housing development")
		assert.Equal(t, "council approved new housing development", got)
	})

	t.Run("site operators stripped", func(t *testing.T) {
		got := QueryFromHeadline("housing vote passes site:example.com")
		assert.NotContains(t, got, "site:")
	})

	t.Run("word cap", func(t *testing.T) {
		headline := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
		got := QueryFromHeadline(headline)
		assert.LessOrEqual(t, len(strings.Fields(got)), 10)
	})

	t.Run("length cap", func(t *testing.T) {
		headline := strings.Repeat("extraordinarily ", 30) + "long"
		got := QueryFromHeadline(headline)
		assert.LessOrEqual(t, len(got), 200)
	})
}
