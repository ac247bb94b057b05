package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeURL_TrackingParams verifies tracking parameters are removed
// regardless of position or casing
func TestNormalizeURL_TrackingParams(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "utm parameters removed",
			in:   "https://example.com/story?utm_source=feed&utm_medium=rss",
			want: "https://example.com/story",
		},
		{
			name: "mixed tracking and real parameters",
			in:   "https://example.com/story?id=42&fbclid=abc123&page=2",
			want: "https://example.com/story?id=42&page=2",
		},
		{
			name: "uppercased tracking parameter name",
			in:   "https://example.com/story?UTM_SOURCE=feed&id=1",
			want: "https://example.com/story?id=1",
		},
		{
			name: "gclid removed",
			in:   "https://example.com/a?gclid=xyz",
			want: "https://example.com/a",
		},
		{
			name: "fragment removed",
			in:   "https://example.com/story#comments",
			want: "https://example.com/story",
		},
		{
			name: "trailing slash removed",
			in:   "https://example.com/story/",
			want: "https://example.com/story",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

// TestNormalizeURL_Idempotent verifies normalising twice equals normalising
// once
func TestNormalizeURL_Idempotent(t *testing.T) {
	urls := []string{
		"https://example.com/story?utm_source=a&id=1#frag",
		"https://www.example.com/a/b/?fbclid=x",
		"https://example.com",
		"https://example.com/story?a=1&b=2",
	}

	for _, u := range urls {
		once := NormalizeURL(u)
		twice := NormalizeURL(once)
		assert.Equal(t, once, twice, "normalising %q twice should be stable", u)
	}
}

// TestExtractDomain verifies host extraction and www stripping
func TestExtractDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/a", "example.com"},
		{"https://example.com/a", "example.com"},
		{"https://News.Example.COM/story", "news.example.com"},
		{"http://www.bbc.co.uk/news/article", "bbc.co.uk"},
		{"", ""},
		{"://bad url", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDomain(tt.in), "input %q", tt.in)
	}
}

// TestRedirectTarget verifies Google redirect unwrapping
func TestRedirectTarget(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "relative redirect with q parameter",
			in:   "/url?q=https://example.com/story&sa=U",
			want: "https://example.com/story",
		},
		{
			name: "absolute redirect with url parameter",
			in:   "https://www.google.com/url?url=https://example.com/a",
			want: "https://example.com/a",
		},
		{
			name: "plain URL passes through",
			in:   "https://example.com/story",
			want: "https://example.com/story",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedirectTarget(tt.in))
		})
	}
}

// TestCleanTitle verifies site-name suffixes are dropped
func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Big Story Breaks | Example News", "Big Story Breaks"},
		{"Big Story Breaks - Example News", "Big Story Breaks"},
		{"Just a Headline", "Just a Headline"},
		{"  padded  ", "padded"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanTitle(tt.in))
	}
}
