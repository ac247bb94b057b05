package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Entity-based fallback extraction. Runs only for fields the structured-data
// and HTML tiers left empty, over a single text sample taken from the start
// of the document. Entities are tagged with a small rule-based pass: person
// names as capitalised word runs, dates as spans carrying a four-digit year.

const (
	minHeadlineWords       = 3
	maxHeadlineWords       = 15
	headlineCapitalisation = 0.7
)

// personPattern matches runs of two to four capitalised words.
var personPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3}\b`)

// entityDatePattern matches a date-like span containing a four-digit year.
var entityDatePattern = regexp.MustCompile(`(?:\d{1,2}\s+)?(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(?:\d{1,2},?\s+)?(?:19|20)\d{2}|\d{1,2}/\d{1,2}/(?:19|20)\d{2}|(?:19|20)\d{2}-\d{2}-\d{2}`)

var bylineSentencePattern = regexp.MustCompile(`[Bb]y\s+[A-Z][a-z]+`)

// publicFigures are person names common in news copy that are never bylines.
var publicFigures = map[string]bool{
	"joe biden":        true,
	"donald trump":     true,
	"vladimir putin":   true,
	"xi jinping":       true,
	"kamala harris":    true,
	"emmanuel macron":  true,
	"rishi sunak":      true,
	"olaf scholz":      true,
	"justin trudeau":   true,
	"anthony albanese": true,
	"michael gove":     true,
	"keir starmer":     true,
}

var bylineKeywords = []string{"by", "written", "reporter", "correspondent", "journalist", "author"}

var dateContextWords = []string{"published", "posted", "updated", "date", "written"}

// entityFallback fills any still-missing metadata fields from a single text
// sample taken from the start of the document.
func (m *MetadataExtractor) entityFallback(doc *goquery.Document, content *Content) {
	text := textForEntityScan(doc)
	if text == "" {
		return
	}

	m.logger.Debug("running entity fallback",
		"missing_headline", content.Headline == "",
		"missing_author", content.Author == "",
		"missing_date", content.PublishDate == "")

	if content.Headline == "" {
		content.Headline = headlineFromText(text)
	}
	if content.Author == "" {
		content.Author = m.authorFromEntities(text)
	}
	if content.PublishDate == "" {
		content.PublishDate = dateFromEntities(text)
	}
}

// textForEntityScan samples the opening paragraphs and header-like blocks,
// where bylines and timestamps are most likely to appear.
func textForEntityScan(doc *goquery.Document) string {
	var parts []string

	doc.Find("p").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 5 {
			return false
		}
		if text := strings.TrimSpace(sel.Text()); len(text) > 10 {
			parts = append(parts, text)
		}
		return true
	})

	doc.Find(`header, div[class*="header"], div[class*="meta"], div[class*="info"]`).
		EachWithBreak(func(i int, sel *goquery.Selection) bool {
			if i >= 2 {
				return false
			}
			if text := strings.TrimSpace(sel.Text()); text != "" {
				parts = append(parts, text)
			}
			return true
		})

	return strings.Join(parts, " ")
}

// authorFromEntities finds person-name spans, drops public figures, and
// prefers a name adjacent to a byline keyword.
func (m *MetadataExtractor) authorFromEntities(text string) string {
	var persons []string
	for _, candidate := range personPattern.FindAllString(text, -1) {
		if !publicFigures[strings.ToLower(candidate)] {
			persons = append(persons, candidate)
		}
	}
	if len(persons) == 0 {
		return ""
	}

	lower := strings.ToLower(text)
	for _, person := range persons {
		personLower := strings.ToLower(person)
		for _, keyword := range bylineKeywords {
			if strings.Contains(lower, keyword+" "+personLower) ||
				strings.Contains(lower, personLower+" is "+keyword) {
				return m.cleaner.CleanAuthor(person)
			}
		}
	}

	return m.cleaner.CleanAuthor(persons[0])
}

// dateFromEntities finds year-carrying date spans and prefers one near a
// publication-context word.
func dateFromEntities(text string) string {
	dates := entityDatePattern.FindAllString(text, -1)
	if len(dates) == 0 {
		return ""
	}

	lower := strings.ToLower(text)
	for _, date := range dates {
		dateLower := strings.ToLower(date)
		for _, context := range dateContextWords {
			if strings.Contains(lower, context+" "+dateLower) ||
				strings.Contains(lower, context+": "+dateLower) {
				return date
			}
		}
	}

	return dates[0]
}

// headlineFromText looks for a sentence of plausible headline length that
// either precedes a byline or is mostly capitalised.
func headlineFromText(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	for i, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) < minHeadlineWords || len(words) > maxHeadlineWords {
			continue
		}
		if i < len(sentences)-1 && bylineSentencePattern.MatchString(sentences[i+1]) {
			return sentence
		}
	}

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) < minHeadlineWords || len(words) > maxHeadlineWords {
			continue
		}
		if capitalisationRatio(words) > headlineCapitalisation {
			return sentence
		}
	}

	return ""
}

func splitSentences(text string) []string {
	var sentences []string
	for _, part := range regexp.MustCompile(`[.!?]\s+|\n`).Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

func capitalisationRatio(words []string) float64 {
	capitalised := 0
	for _, word := range words {
		runes := []rune(word)
		if len(runes) > 0 && unicode.IsUpper(runes[0]) {
			capitalised++
		}
	}
	return float64(capitalised) / float64(len(words))
}
