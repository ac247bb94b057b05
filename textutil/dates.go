package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// dateLayouts are tried when dateparse cannot make sense of the input.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseArticleDate parses a publication date found in page metadata or text.
// Inputs range from clean ISO timestamps to loose strings like
// "11 April 2022"; as a last resort a bare year becomes January 1st of that
// year. The second return value is false when nothing date-like was found.
func ParseArticleDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		return t, true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	if match := yearPattern.FindString(raw); match != "" {
		year, err := strconv.Atoi(match)
		if err == nil {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// ArticleYear extracts a four-digit year from a date string, or 0 if none.
func ArticleYear(raw string) int {
	match := yearPattern.FindString(raw)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}

// FormatDisplayDate reduces an ISO timestamp to YYYY-MM-DD for display.
// Strings without a time component are returned as-is.
func FormatDisplayDate(raw string) string {
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "T") {
		if t, ok := ParseArticleDate(raw); ok {
			return t.Format("2006-01-02")
		}
	}

	return raw
}

// SearchDateWindow computes the date-restriction parameter for a reference
// search. Articles published within the last 7 days get a window from 14
// days ago through tomorrow, to catch the freshest coverage; older articles
// get a window from 14 days before publication through 30 days after.
// Without a parseable publication date the window falls back to a coarse
// bucket derived from daysOld.
func SearchDateWindow(publishDate string, daysOld int, now time.Time) string {
	articleDate, ok := ParseArticleDate(publishDate)
	if !ok {
		switch {
		case daysOld <= 1:
			return "qdr:w"
		case daysOld <= 7:
			return "qdr:m1"
		case daysOld <= 31:
			return "qdr:m3"
		default:
			return "qdr:y"
		}
	}

	var start, end time.Time
	if now.Sub(articleDate) <= 7*24*time.Hour {
		start = now.AddDate(0, 0, -14)
		end = now.AddDate(0, 0, 1)
	} else {
		start = articleDate.AddDate(0, 0, -14)
		end = articleDate.AddDate(0, 0, 30)
	}

	return fmt.Sprintf("cdr:1,cd_min:%s,cd_max:%s", usDate(start), usDate(end))
}

// usDate formats a date as M/D/YYYY without zero padding.
func usDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Month(), t.Day(), t.Year())
}
