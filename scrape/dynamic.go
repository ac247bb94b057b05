package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// browserState records the lifecycle of the underlying browser so callers
// never operate on a torn-down handle by accident.
type browserState int

const (
	browserUninitialized browserState = iota
	browserReady
	browserFailed
)

// consentButtonJS clicks the first button whose text looks like a consent
// acceptance. Returns whether anything was clicked.
const consentButtonJS = `(() => {
	const words = %s;
	const buttons = document.querySelectorAll('button');
	for (const button of buttons) {
		const text = button.innerText.toLowerCase();
		for (const word of words) {
			if (text.includes(word)) {
				button.click();
				return true;
			}
		}
	}
	return false;
})()`

// googleConsentSelectors are tried in order on Google's consent interstitial.
var googleConsentSelectors = []string{
	`button[aria-label="Accept all"]`,
	`form[action*="consent.google.com"] button`,
}

// DynamicFetcher retrieves pages by driving a headless browser, so pages
// that render client-side still yield content. The browser is started
// lazily on first use and restarted transparently after Cleanup.
type DynamicFetcher struct {
	timeout     time.Duration
	settleDelay time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	state       browserState
	allocCancel context.CancelFunc
	browserCtx  context.Context
	ctxCancel   context.CancelFunc
}

// NewDynamicFetcher creates a browser-backed fetcher. The browser itself is
// not started until the first fetch.
func NewDynamicFetcher(timeout time.Duration, logger *slog.Logger) *DynamicFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamicFetcher{
		timeout:     timeout,
		settleDelay: time.Second,
		logger:      logger,
	}
}

// ensureBrowser starts the browser if it is not running. After Cleanup the
// next call reinitialises it; a previous startup failure is retried rather
// than cached forever.
func (f *DynamicFetcher) ensureBrowser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == browserReady {
		return f.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("disable-remote-fonts", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	// Start the browser process up front so startup failures surface here
	if err := chromedp.Run(browserCtx); err != nil {
		ctxCancel()
		allocCancel()
		f.state = browserFailed
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	f.allocCancel = allocCancel
	f.browserCtx = browserCtx
	f.ctxCancel = ctxCancel
	f.state = browserReady
	f.logger.Info("browser started")
	return f.browserCtx, nil
}

// Fetch navigates to the URL and returns the rendered page. On navigation
// errors whatever HTML the browser holds is parsed and returned best-effort.
func (f *DynamicFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	html, err := f.FetchHTML(ctx, url)
	if html == "" {
		if err != nil {
			return nil, err
		}
		return nil, errors.New("browser returned no content")
	}

	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if parseErr != nil {
		return nil, fmt.Errorf("parsing rendered page: %w", parseErr)
	}
	return doc, nil
}

// FetchHTML navigates to the URL, waits briefly for client-side rendering to
// settle, and returns the rendered HTML. On error it still attempts to read
// whatever the browser rendered before failing.
func (f *DynamicFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	browserCtx, err := f.ensureBrowser()
	if err != nil {
		return "", err
	}

	navCtx, cancel := mergeTimeout(ctx, browserCtx, f.timeout)
	defer cancel()

	start := time.Now()
	var html string
	err = chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(f.settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		f.logger.Warn("browser navigation failed", "url", url, "error", err)
		// Partial content is better than none
		if partial, readErr := f.HTML(ctx); readErr == nil && partial != "" {
			return partial, nil
		}
		return "", fmt.Errorf("rendering %s: %w", url, err)
	}

	f.logger.Info("rendered page", "url", url, "elapsed", time.Since(start).Round(time.Millisecond))
	return html, nil
}

// HTML returns the browser's current rendered HTML without navigating.
func (f *DynamicFetcher) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.state != browserReady {
		f.mu.Unlock()
		return "", errors.New("browser is not running")
	}
	browserCtx := f.browserCtx
	f.mu.Unlock()

	readCtx, cancel := mergeTimeout(ctx, browserCtx, 10*time.Second)
	defer cancel()

	var html string
	if err := chromedp.Run(readCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("reading page html: %w", err)
	}
	return html, nil
}

// CurrentURL returns the browser's current location.
func (f *DynamicFetcher) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.state != browserReady {
		f.mu.Unlock()
		return "", errors.New("browser is not running")
	}
	browserCtx := f.browserCtx
	f.mu.Unlock()

	readCtx, cancel := mergeTimeout(ctx, browserCtx, 10*time.Second)
	defer cancel()

	var location string
	if err := chromedp.Run(readCtx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return location, nil
}

// DismissConsent tries to click through a cookie-consent interstitial.
// Google's consent subdomain gets its specific selectors first; everything
// else falls back to a script that clicks buttons by accept-like text.
// Returns whether a consent control was clicked.
func (f *DynamicFetcher) DismissConsent(ctx context.Context) bool {
	location, err := f.CurrentURL(ctx)
	if err != nil {
		return false
	}

	f.mu.Lock()
	browserCtx := f.browserCtx
	f.mu.Unlock()

	if strings.Contains(location, "consent.google.com") {
		f.logger.Info("detected google consent page")
		for _, selector := range googleConsentSelectors {
			clickCtx, cancel := mergeTimeout(ctx, browserCtx, 3*time.Second)
			err := chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.NodeVisible))
			cancel()
			if err == nil {
				f.logger.Info("clicked consent button", "selector", selector)
				f.settle(ctx, 1500*time.Millisecond)
				return true
			}
		}
		if f.clickConsentByText(ctx, browserCtx, []string{"accept all", "accept", "agree", "consent"}) {
			f.settle(ctx, 1500*time.Millisecond)
			return true
		}
	}

	if f.clickConsentByText(ctx, browserCtx, []string{
		"accept all", "i accept", "accept cookies", "agree", "got it", "allow",
	}) {
		f.settle(ctx, 500*time.Millisecond)
		return true
	}

	return false
}

func (f *DynamicFetcher) clickConsentByText(ctx, browserCtx context.Context, words []string) bool {
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = `"` + word + `"`
	}
	script := fmt.Sprintf(consentButtonJS, "["+strings.Join(quoted, ", ")+"]")

	evalCtx, cancel := mergeTimeout(ctx, browserCtx, 5*time.Second)
	defer cancel()

	var clicked bool
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(script, &clicked)); err != nil {
		f.logger.Debug("consent click script failed", "error", err)
		return false
	}
	if clicked {
		f.logger.Info("clicked consent button via script")
	}
	return clicked
}

func (f *DynamicFetcher) settle(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Cleanup releases the browser. Safe to call multiple times; a later fetch
// starts a fresh browser.
func (f *DynamicFetcher) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ctxCancel != nil {
		f.ctxCancel()
		f.ctxCancel = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	if f.state == browserReady {
		f.logger.Info("browser stopped")
	}
	f.browserCtx = nil
	f.state = browserUninitialized
}

// mergeTimeout derives a deadline-bound context from the browser context that
// is also cancelled when the caller's context is.
func mergeTimeout(caller, browser context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithTimeout(browser, timeout)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
