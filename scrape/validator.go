package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// meaningfulTextLength is the minimum text length for a container to count
// as real article content.
const meaningfulTextLength = 100

// articleSelectors are containers that typically hold the article body.
var articleSelectors = []string{
	"article",
	".article-body",
	".story-content",
	".article-content",
	`[role="article"]`,
	"#content-main",
	".wysiwyg",
	".article__content",
	"#main-content-area",
	"main",
	`[class*="article"]`, `[class*="story"]`, `[class*="post-content"]`,
	`[id*="content"]`, `[id*="main"]`,
}

// blockPatterns are phrases that identify a challenge or block page.
var blockPatterns = []string{
	"sorry, you have been blocked",
	"access denied",
	"cloudflare",
	"403 forbidden",
	"captcha",
	"our systems have detected unusual traffic",
	"please complete the security check",
	"your ip address has been blocked",
	"your browser has been blocked",
	"your request has been blocked",
}

// cookieTerms are phrases counted when judging whether a page is primarily a
// consent interstitial.
var cookieTerms = []string{
	"cookie", "cookies", "consent", "gdpr", "ccpa", "privacy settings",
	"privacy policy", "accept cookies", "cookie policy",
	"we use cookies", "this website uses cookies",
}

// HasMeaningfulContent reports whether the page looks like a real article
// rather than a shell, consent wall or challenge page. Used after a static
// fetch to decide whether a browser render is needed.
func HasMeaningfulContent(doc *goquery.Document) bool {
	if doc == nil {
		return false
	}

	for _, selector := range articleSelectors {
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(strings.TrimSpace(sel.Text())) > meaningfulTextLength {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}

	// Multiple substantial paragraphs also count
	substantial := 0
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(strings.TrimSpace(sel.Text())) > 50 {
			substantial++
		}
		return substantial < 2
	})
	return substantial >= 2
}

// IsBlockedPage detects challenge and block pages. Returns the matched
// pattern for logging.
func IsBlockedPage(doc *goquery.Document) (bool, string) {
	if doc == nil {
		return false, ""
	}

	pageText := strings.ToLower(doc.Text())
	for _, pattern := range blockPatterns {
		if strings.Contains(pageText, pattern) {
			return true, pattern
		}
	}
	return false, ""
}

// IsCookieConsentPage reports whether a page is primarily a cookie-consent
// interstitial rather than content.
func IsCookieConsentPage(doc *goquery.Document) bool {
	if doc == nil {
		return false
	}

	pageText := strings.ToLower(doc.Text())

	termCount := 0
	for _, term := range cookieTerms {
		termCount += strings.Count(pageText, term)
	}

	// Short pages saturated with consent language
	if termCount > 3 && len(pageText) < 1000 {
		return true
	}

	hasConsentElement := doc.Find(`div[id*="cookie"], div[id*="consent"], div[id*="gdpr"], `+
		`div[class*="cookie"], div[class*="consent"], div[class*="gdpr"], `+
		`div[role="dialog"]`).Length() > 0

	if hasConsentElement {
		paragraphs := 0
		doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(strings.TrimSpace(sel.Text())) > 20 {
				paragraphs++
			}
			return paragraphs < 3
		})
		if paragraphs < 3 {
			return true
		}
	}

	return false
}
