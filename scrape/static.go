package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// spaRootPattern matches class names used by JS framework root elements.
var spaRootPattern = regexp.MustCompile(`(app|root|main)-container|^(app|root|main)$`)

// mountPointSelectors are elements a client-side framework renders into.
var mountPointSelectors = []string{
	"#app", "#root", "#main", "[data-reactroot]", "[ng-app]", "[ng-view]", "v-app",
}

// hydrationPattern matches embedded state markers left for client-side
// hydration.
var hydrationPattern = regexp.MustCompile(`window\.__INITIAL_STATE__|window\.__PRELOADED_STATE__`)

var noscriptWords = []string{"enable", "required", "javascript", "please"}

var loadingMarkers = []string{"loading", "skeleton", "placeholder"}

// StaticFetcher retrieves pages with a plain HTTP GET, without executing any
// client-side scripts.
type StaticFetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewStaticFetcher creates a static fetcher with the given request timeout.
func NewStaticFetcher(timeout time.Duration, logger *slog.Logger) *StaticFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticFetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch retrieves and parses a page. The second return value reports whether
// the page appears to need JavaScript to render its content. Network and
// HTTP errors return a nil document.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("static fetch failed", "url", url, "error", err)
		return nil, false, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("static fetch got error status", "url", url, "status", resp.StatusCode)
		return nil, false, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", url, err)
	}

	return doc, RequiresJavaScript(doc, string(raw)), nil
}

// RequiresJavaScript reports whether a statically fetched page appears to
// depend on client-side rendering. Indicators are near-empty framework root
// elements, SPA mounting points, hydration-state markers, noscript warnings,
// and content containers stuck in a loading state.
func RequiresJavaScript(doc *goquery.Document, rawHTML string) bool {
	if doc == nil {
		return false
	}

	// Framework root elements with almost no rendered text
	roots := doc.Find("[class]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return matchesAnyClass(sel, spaRootPattern)
	})
	if roots.Length() > 0 {
		allEmpty := true
		roots.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(strings.TrimSpace(sel.Text())) >= 50 {
				allEmpty = false
				return false
			}
			return true
		})
		if allEmpty {
			return true
		}
	}

	// SPA mounting points that the framework has not filled in
	for _, selector := range mountPointSelectors {
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(strings.TrimSpace(sel.Text())) < 50 {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}

	if hydrationPattern.MatchString(rawHTML) {
		return true
	}

	jsRequired := false
	doc.Find("noscript").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		for _, word := range noscriptWords {
			if strings.Contains(text, word) {
				jsRequired = true
				return false
			}
		}
		return true
	})
	if jsRequired {
		return true
	}

	// Mostly-empty content containers carrying loading markers
	containers := doc.Find(`[class*="content"], [class*="main"], [class*="article"], [class*="post"]`)
	if containers.Length() > 0 {
		empty := 0
		containers.Each(func(_ int, sel *goquery.Selection) {
			if len(strings.TrimSpace(sel.Text())) >= 50 {
				return
			}
			html, err := goquery.OuterHtml(sel)
			if err != nil {
				return
			}
			for _, marker := range loadingMarkers {
				if strings.Contains(html, marker) {
					empty++
					return
				}
			}
		})
		if float64(empty)/float64(containers.Length()) > 0.5 {
			return true
		}
	}

	return false
}

func matchesAnyClass(sel *goquery.Selection, pattern *regexp.Regexp) bool {
	for _, class := range strings.Fields(sel.AttrOr("class", "")) {
		if pattern.MatchString(class) {
			return true
		}
	}
	return false
}
