package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// longParagraph builds body text comfortably past the semantic-strategy floor.
func longParagraph() string {
	return strings.Repeat("The council approved the measure after a lengthy debate on Tuesday. ", 10)
}

func TestContentExtractor_SemanticElement(t *testing.T) {
	body := longParagraph()
	html := `<html><body>
		<div class="sidebar">Unrelated sidebar text that should never be selected as the article.</div>
		<article><p>` + body + `</p></article>
	</body></html>`

	e := NewContentExtractor(nil)
	content := e.Extract(parseHTML(t, html), "https://www.example.com/story")

	assert.Equal(t, "example.com", content.Domain)
	assert.Contains(t, content.Text, "The council approved the measure")
	assert.NotContains(t, content.Text, "sidebar")
}

func TestContentExtractor_NoiseFiltered(t *testing.T) {
	body := longParagraph()
	html := `<html><body>
		<article class="ad-container">Sponsored content that dresses up as an article element on the page.</article>
		<main><p>` + body + `</p></main>
	</body></html>`

	e := NewContentExtractor(nil)
	content := e.Extract(parseHTML(t, html), "https://example.com/story")

	assert.NotContains(t, content.Text, "Sponsored content")
	assert.Contains(t, content.Text, "The council approved")
}

func TestContentExtractor_LongestCandidateWins(t *testing.T) {
	long := longParagraph()
	html := `<html><body>
		<article>Short teaser text.</article>
		<article>` + long + `</article>
	</body></html>`

	e := NewContentExtractor(nil)
	content := e.Extract(parseHTML(t, html), "https://example.com/story")

	assert.Contains(t, content.Text, "The council approved")
	assert.NotContains(t, content.Text, "Short teaser")
}

func TestContentExtractor_ParagraphFallback(t *testing.T) {
	// The article element is too short, so extraction falls back to
	// collecting substantial paragraphs.
	html := `<html><body>
		<article>Too short.</article>
		<p>The first substantial paragraph carries enough detail to clear the threshold.</p>
		<p>tiny</p>
		<p>The second substantial paragraph also carries enough detail to clear the threshold.</p>
	</body></html>`

	e := NewContentExtractor(nil)
	content := e.Extract(parseHTML(t, html), "https://example.com/story")

	paragraphs := strings.Split(content.Text, "\n\n")
	require.Len(t, paragraphs, 2)
	assert.Contains(t, paragraphs[0], "first substantial")
	assert.Contains(t, paragraphs[1], "second substantial")
}

func TestContentExtractor_EmptyPage(t *testing.T) {
	e := NewContentExtractor(nil)
	content := e.Extract(parseHTML(t, "<html><body></body></html>"), "https://example.com/story")

	assert.Equal(t, "", content.Text)
	assert.Empty(t, content.Links)
	assert.NotNil(t, content.Links)
}

func TestContentExtractor_Links(t *testing.T) {
	html := `<html><body><article>
		<a href="https://example.com/related">Related coverage</a>
		<a href="javascript:void(0)">Click</a>
		<a href="#top">Back to top</a>
		<a href="mailto:tips@example.com">Email us</a>
		<a href="/local/path">Local story</a>
		<a href="https://example.com/empty"></a>
	</article></body></html>`

	e := NewContentExtractor(nil)
	content := e.Extract(parseHTML(t, html), "https://example.com/story")

	require.Len(t, content.Links, 2)
	assert.Equal(t, Link{Href: "https://example.com/related", Text: "Related coverage"}, content.Links[0])
	assert.Equal(t, Link{Href: "/local/path", Text: "Local story"}, content.Links[1])
}
