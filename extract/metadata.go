package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexjohnyoung/truthtracer/textutil"
)

// headlineMetaSelectors are meta tags checked for a headline, best first.
var headlineMetaSelectors = []string{
	`meta[property="og:title"]`,
	`meta[name="twitter:title"]`,
	`meta[name="title"]`,
	`meta[name="og:title"]`,
	`meta[property="twitter:title"]`,
}

// headlineSelectors are heading elements checked for a headline, best first.
var headlineSelectors = []string{
	"h1.headline", "h1.article-title", "h1.entry-title", "h1.post-title",
	".article_title", ".headline", ".article-headline", ".post-headline",
	"header h1", "article h1", ".article_header h1", ".article-header h1",
	`h1[itemprop="headline"]`, `h1[class*="title"]`, `h1[class*="headline"]`,
	".article-title", ".story-title", ".post-title", `[data-testid="headline"]`,
}

// authorMetaSelectors are meta tags checked for an author, best first.
var authorMetaSelectors = []string{
	`meta[property="author"]`,
	`meta[property="article:author"]`,
	`meta[name="author"]`,
	`meta[name="article:author"]`,
	`meta[name="twitter:creator"]`,
	`meta[property="twitter:creator"]`,
	`meta[name="cXenseParse:author"]`,
	`meta[property="cXenseParse:author"]`,
	`meta[name="twitter:data1"]`,
	`meta[name="parsely-author"]`,
	`meta[property="parsely-author"]`,
	`meta[name="sailthru.author"]`,
	`meta[property="sailthru.author"]`,
}

// authorSelectors are page elements checked for an author, best first.
var authorSelectors = []string{
	`[rel="author"]`, ".author", ".byline", ".article-author",
	"#author", `[itemprop="author"]`, ".article__byline",
	".c-byline__author", ".entry-author", ".post-author",
	"p.byline", ".story-meta .byline", ".metadata .byline",
	".article-meta .author", ".article-info .author",
	".author-name", ".auth-name", ".authorInfo", ".news-byline",
	".caas-attr-provider", ".caas-author", ".publisher-anchor",
	".author-header", ".author-byline", ".authorName",
	".article-byline__name", ".article__meta-author",
	".entry-meta-author", ".author-bio__name", ".contributor-bio",
}

// genericAuthors are meta-tag author values that carry no attribution.
var genericAuthors = map[string]bool{
	"admin":         true,
	"administrator": true,
	"staff":         true,
	"guest":         true,
	"anonymous":     true,
}

// authorPatterns match byline attributions in running text.
var authorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[Bb]y\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,5})`),
	regexp.MustCompile(`[Aa]uthor[:\s]+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,5})`),
	regexp.MustCompile(`[Ww]ritten\s+by\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,5})`),
	regexp.MustCompile(`[Rr]eported\s+by\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,5})`),
	regexp.MustCompile(`[Ee]dited\s+by\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,5})`),
	regexp.MustCompile(`[Ff]rom\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,5})`),
}

// dateMetaSelectors are meta tags checked for a publication date, best first.
var dateMetaSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="article:published_time"]`,
	`meta[property="article:modified_time"]`,
	`meta[name="article:modified_time"]`,
	`meta[property="og:published_time"]`,
	`meta[name="pubdate"]`,
	`meta[itemprop="datePublished"]`,
	`meta[itemprop="dateModified"]`,
	`meta[name="cXenseParse:date"]`,
	`meta[name="sailthru.date"]`,
}

// dateSelectors are page elements checked for a publication date, best first.
var dateSelectors = []string{
	".date", ".published", ".article-date", ".post-date",
	".publish-date", ".timeago", ".timestamp", ".article__date",
	".entry-date", ".meta-date", ".article-datetime", ".article_date",
	`[itemprop="datePublished"]`, ".modified-date", ".page-date",
}

// datePatterns match dates embedded in running text.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`),
	regexp.MustCompile(`\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}`),
	regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}`),
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
	regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`),
}

// attributionSelectors locate footer-like sections that may carry a byline.
var attributionSelectors = []string{
	".attribution", ".footer", ".article-footer", ".content-info", ".meta",
}

// MetadataExtractor fills the headline, author and publish-date fields of a
// content record. Each field is resolved independently through a chain of
// tiers: JSON-LD structured data, then HTML heuristics, then an entity-based
// fallback. A tier only runs for fields the previous tiers left empty, and a
// field that is already populated is never overwritten.
type MetadataExtractor struct {
	logger  *slog.Logger
	cleaner *textutil.Cleaner
}

// NewMetadataExtractor creates a metadata extractor. A nil logger falls back
// to slog.Default.
func NewMetadataExtractor(logger *slog.Logger) *MetadataExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataExtractor{
		logger:  logger,
		cleaner: textutil.NewCleaner(),
	}
}

// Extract fills the missing metadata fields of content in place and returns
// it. A nil content record is allocated.
func (m *MetadataExtractor) Extract(doc *goquery.Document, url string, content *Content) *Content {
	if content == nil {
		content = &Content{}
	}
	if content.URL == "" {
		content.URL = url
	}
	if content.Domain == "" {
		content.Domain = textutil.ExtractDomain(url)
	}

	if doc == nil {
		return content
	}

	m.extractHeadline(doc, content)
	m.extractAuthor(doc, content)
	m.extractPublishDate(doc, content)

	if content.Headline == "" || content.Author == "" || content.PublishDate == "" {
		m.entityFallback(doc, content)
	}

	return content
}

func (m *MetadataExtractor) extractHeadline(doc *goquery.Document, content *Content) {
	if content.Headline != "" {
		return
	}

	if headline := headlineFromSchema(parseSchemaData(doc)); headline != "" {
		content.Headline = headline
		m.logger.Debug("found headline in structured data", "headline", headline)
		return
	}

	for _, selector := range headlineMetaSelectors {
		if value := metaContent(doc, selector); value != "" {
			content.Headline = value
			m.logger.Debug("found headline in meta tag", "selector", selector)
			return
		}
	}

	for _, selector := range headlineSelectors {
		if text := firstText(doc, selector); text != "" {
			content.Headline = text
			m.logger.Debug("found headline via selector", "selector", selector)
			return
		}
	}

	if text := firstText(doc, "h1"); text != "" {
		content.Headline = text
		return
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		content.Headline = textutil.CleanTitle(title)
		m.logger.Debug("found headline via page title")
		return
	}

	m.logger.Debug("failed to extract headline")
}

func (m *MetadataExtractor) extractAuthor(doc *goquery.Document, content *Content) {
	if content.Author != "" {
		return
	}

	if author := authorFromSchema(parseSchemaData(doc)); author != "" {
		content.Author = author
		m.logger.Debug("found author in structured data", "author", author)
		return
	}

	for _, selector := range authorMetaSelectors {
		value := metaContent(doc, selector)
		if value != "" && !genericAuthors[strings.ToLower(value)] {
			content.Author = value
			m.logger.Debug("found author in meta tag", "selector", selector)
			return
		}
	}

	for _, selector := range authorSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		// Some sites nest the actual name inside the byline container
		text := sel.Find(`[itemprop="name"]`).First().Text()
		if strings.TrimSpace(text) == "" {
			text = sel.Text()
		}

		if author := m.cleaner.CleanAuthor(text); author != "" {
			content.Author = author
			m.logger.Debug("found author via selector", "selector", selector)
			return
		}
	}

	// Byline patterns in the opening paragraphs
	found := false
	doc.Find("p").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 5 {
			return false
		}
		if author := matchAuthorPattern(sel.Text()); author != "" {
			content.Author = author
			found = true
			return false
		}
		return true
	})
	if found {
		m.logger.Debug("found author via byline pattern")
		return
	}

	for _, selector := range attributionSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := sel.Text()
		if len(text) > 200 {
			text = text[:200]
		}
		if author := matchAuthorPattern(text); author != "" {
			content.Author = author
			m.logger.Debug("found author in attribution section")
			return
		}
		break
	}

	m.logger.Debug("failed to extract author")
}

func (m *MetadataExtractor) extractPublishDate(doc *goquery.Document, content *Content) {
	if content.PublishDate != "" {
		return
	}

	if date := dateFromSchema(parseSchemaData(doc)); date != "" {
		content.PublishDate = date
		m.logger.Debug("found date in structured data", "date", date)
		return
	}

	for _, selector := range dateMetaSelectors {
		if value := metaContent(doc, selector); value != "" {
			content.PublishDate = value
			m.logger.Debug("found date in meta tag", "selector", selector)
			return
		}
	}

	var datetime string
	doc.Find("time[datetime]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if value := strings.TrimSpace(sel.AttrOr("datetime", "")); value != "" {
			datetime = value
			return false
		}
		return true
	})
	if datetime != "" {
		content.PublishDate = datetime
		m.logger.Debug("found date in time element", "date", datetime)
		return
	}

	for _, selector := range dateSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		date := strings.TrimSpace(sel.AttrOr("datetime", ""))
		if date == "" {
			date = m.cleaner.CleanDate(sel.Text())
		}
		if date != "" {
			content.PublishDate = date
			m.logger.Debug("found date via selector", "selector", selector)
			return
		}
	}

	// Date patterns in elements whose class suggests a timestamp
	found := false
	doc.Find(`p[class*="date"], p[class*="time"], p[class*="published"], `+
		`div[class*="date"], div[class*="time"], div[class*="published"], `+
		`span[class*="date"], span[class*="time"], span[class*="published"]`).
		EachWithBreak(func(i int, sel *goquery.Selection) bool {
			if i >= 5 {
				return false
			}
			if date := matchDatePattern(sel.Text()); date != "" {
				content.PublishDate = date
				found = true
				return false
			}
			return true
		})
	if found {
		m.logger.Debug("found date via text pattern")
		return
	}

	m.logger.Debug("failed to extract publication date")
}

// metaContent returns the trimmed content attribute of the first element
// matching selector.
func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// firstText returns the trimmed text of the first element matching selector.
func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func matchAuthorPattern(text string) string {
	for _, re := range authorPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			return strings.TrimSpace(match[1])
		}
	}
	return ""
}

func matchDatePattern(text string) string {
	for _, re := range datePatterns {
		if match := re.FindString(text); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return ""
}
