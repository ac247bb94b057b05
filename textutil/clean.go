package textutil

import (
	"regexp"
	"strings"
)

// Cleaner removes boilerplate noise from extracted article text and tidies
// author and date strings pulled out of page chrome.
type Cleaner struct {
	noise      []*regexp.Regexp
	whitespace *regexp.Regexp
	positions  []*regexp.Regexp
}

// authorPrefixes are leading attributions stripped from author strings.
var authorPrefixes = []string{
	"by ", "BY ", "By ",
	"AUTHOR: ", "Author: ", "author: ",
	"Written by ", "written by ",
	"Reported by ", "reported by ",
	"Edited by ", "edited by ",
	"From ", "from ",
}

// datePrefixes are labels that precede a publication date in page text.
var datePrefixes = []string{
	"Published: ", "Published ", "PUBLISHED: ",
	"Updated: ", "Updated ", "UPDATED: ",
}

// authorPhrases mark the point where an author string stops being a name.
var authorPhrases = []string{
	"updated at", "published at", "updated on", "published on",
	"minutes ago", "hours ago", "days ago", "all rights reserved",
	"copyright", "contributor", "exclusive to",
}

// NewCleaner compiles the noise-removal patterns.
func NewCleaner() *Cleaner {
	patterns := []string{
		`\S+@\S+\.\S+`,
		`https?://\S+`,
		`(?i)we use cookies to.*?(?:privacy|experience|setting|service)`,
		`(?i)this site uses cookies.*?(?:privacy|experience|setting|service)`,
		`(?i)©.*?rights reserved\.?`,
		`(?i)copyright ©.*?20\d\d`,
		`(?i)follow us on.*?(?:twitter|facebook|instagram|linkedin)`,
		`(?i)share this.*?(?:article|story|post)`,
		`(?i)subscribe to our newsletter`,
		`(?i)sign up for our.*?newsletter`,
		`(?i)subscribe for.*?(?:free|email|newsletter)`,
		`(?i)\b(?:menu|home|about us|contact|search)\b`,
		`(?i)advertisement|sponsored|promoted content`,
	}

	noise := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		noise = append(noise, regexp.MustCompile(p))
	}

	positionPatterns := []string{
		`(?i), Staff Writer$`, `(?i), Editor$`, `(?i), Reporter$`, `(?i), Correspondent$`,
		`(?i) - Staff Writer$`, `(?i) - Editor$`, `(?i) - Reporter$`, `(?i) - Correspondent$`,
		`(?i), Associated Press$`, `(?i), AP$`, `(?i), Reuters$`, `(?i), AFP$`, `(?i), Bloomberg$`,
		`(?i) \(AP\)$`, `(?i) \(Reuters\)$`, `(?i) \(AFP\)$`, `(?i) \(Bloomberg\)$`,
		`(?i), Staff$`, `(?i), Contributors?$`, `(?i), Special to.*$`, `(?i), Guest Writer$`,
	}

	positions := make([]*regexp.Regexp, 0, len(positionPatterns))
	for _, p := range positionPatterns {
		positions = append(positions, regexp.MustCompile(p))
	}

	return &Cleaner{
		noise:      noise,
		whitespace: regexp.MustCompile(`[ \t]+`),
		positions:  positions,
	}
}

// CleanContent strips boilerplate from article text and rejoins it as
// blank-line separated paragraphs, dropping fragments too short to be prose.
func (c *Cleaner) CleanContent(text string) string {
	if text == "" {
		return ""
	}

	for _, re := range c.noise {
		text = re.ReplaceAllString(text, "")
	}

	paragraphs := regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.TrimSpace(c.whitespace.ReplaceAllString(p, " "))
		if len(p) > 40 {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, "\n\n")
}

// CleanAuthor strips attribution prefixes, role suffixes and wire-service
// tags from an author string.
func (c *Cleaner) CleanAuthor(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	for _, prefix := range authorPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}

	for _, re := range c.positions {
		text = re.ReplaceAllString(text, "")
	}

	lower := strings.ToLower(text)
	for _, phrase := range authorPhrases {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			text = text[:idx]
			lower = lower[:idx]
		}
	}

	return strings.TrimSpace(text)
}

// CleanDate strips "Published:"/"Updated:" style labels from a date string.
func (c *Cleaner) CleanDate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	for _, prefix := range datePrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}

	return strings.TrimSpace(text)
}
