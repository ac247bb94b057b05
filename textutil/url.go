package textutil

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that carry no identity for an article
// and vary between shares of the same page. Matched case-insensitively.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"ref":          true,
	"ref_src":      true,
	"ref_url":      true,
	"source":       true,
	"source_id":    true,
}

// NormalizeURL canonicalises a URL for deduplication: the fragment and any
// tracking parameters are removed, and a trailing slash is dropped. The
// remaining query parameters keep their original order, so normalising twice
// yields the same result as normalising once.
func NormalizeURL(raw string) string {
	if raw == "" {
		return ""
	}

	// Drop the fragment
	if idx := strings.Index(raw, "#"); idx >= 0 {
		raw = raw[:idx]
	}

	// Filter tracking parameters while preserving parameter order
	if idx := strings.Index(raw, "?"); idx >= 0 {
		base, query := raw[:idx], raw[idx+1:]
		var kept []string
		for _, param := range strings.Split(query, "&") {
			name := param
			if eq := strings.Index(param, "="); eq >= 0 {
				name = param[:eq]
			}
			if trackingParams[strings.ToLower(name)] {
				continue
			}
			kept = append(kept, param)
		}
		if len(kept) > 0 {
			raw = base + "?" + strings.Join(kept, "&")
		} else {
			raw = base
		}
	}

	return strings.TrimSuffix(raw, "/")
}

// ExtractDomain returns the lowercased host of a URL with any leading "www."
// removed. Returns the empty string for unparseable input.
func ExtractDomain(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	domain := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(domain, "www.")
}

// RedirectTarget unwraps a Google redirect URL ("/url?q=..." or
// "google.com/url?url=...") and returns the destination. Non-redirect URLs
// are returned unchanged.
func RedirectTarget(redirect string) string {
	if redirect == "" {
		return ""
	}

	if !strings.HasPrefix(redirect, "/url?") && !strings.Contains(redirect, "google.com/url") {
		return redirect
	}

	parsed, err := url.Parse(redirect)
	if err != nil {
		return redirect
	}

	query := parsed.Query()
	if target := query.Get("url"); target != "" {
		return target
	}
	if target := query.Get("q"); target != "" {
		return target
	}

	return redirect
}

// CleanTitle strips a trailing site name from a page title, using the " | "
// and " - " separators news sites conventionally place before it.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	if idx := strings.Index(title, " | "); idx >= 0 {
		return strings.TrimSpace(title[:idx])
	}
	if idx := strings.Index(title, " - "); idx >= 0 {
		return strings.TrimSpace(title[:idx])
	}

	return title
}
