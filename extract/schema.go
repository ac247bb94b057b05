package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// schemaDateFields are checked in priority order when reading a publication
// date from JSON-LD.
var schemaDateFields = []string{"datePublished", "dateCreated", "publishedDate", "dateModified"}

// parseSchemaData decodes the first JSON-LD script block on the page. The
// result is either a map or a slice of maps; malformed blocks yield nil so
// callers fall through to the next extraction tier.
func parseSchemaData(doc *goquery.Document) any {
	if doc == nil {
		return nil
	}

	raw := doc.Find(`script[type="application/ld+json"]`).First().Text()
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	return data
}

// headlineFromSchema reads a headline from JSON-LD data, accepting a
// BreadcrumbList item name as a substitute.
func headlineFromSchema(data any) string {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				if headline := stringValue(obj["headline"]); headline != "" {
					return headline
				}
			}
		}
	case map[string]any:
		if headline := stringValue(v["headline"]); headline != "" {
			return headline
		}
		if stringValue(v["@type"]) == "BreadcrumbList" {
			if items, ok := v["itemListElement"].([]any); ok {
				for _, item := range items {
					if obj, ok := item.(map[string]any); ok {
						if name := stringValue(obj["name"]); name != "" {
							return name
						}
					}
				}
			}
		}
	}
	return ""
}

// authorFromSchema reads an author from JSON-LD data. The author or creator
// value may be a plain string, an object with a name, or an array of such
// objects.
func authorFromSchema(data any) string {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				if author := authorValue(obj); author != "" {
					return author
				}
			}
		}
	case map[string]any:
		return authorValue(v)
	}
	return ""
}

func authorValue(obj map[string]any) string {
	author := obj["author"]
	if author == nil {
		author = obj["creator"]
	}

	switch v := author.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return stringValue(v["name"])
	case []any:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				return stringValue(first["name"])
			}
		}
	}
	return ""
}

// dateFromSchema reads a publication date from JSON-LD data, preferring
// datePublished over the modification fields.
func dateFromSchema(data any) string {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				for _, field := range schemaDateFields {
					if date := stringValue(obj[field]); date != "" {
						return date
					}
				}
			}
		}
	case map[string]any:
		for _, field := range schemaDateFields {
			if date := stringValue(v[field]); date != "" {
				return date
			}
		}
	}
	return ""
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
