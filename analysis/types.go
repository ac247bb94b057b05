// Package analysis runs the full misleading-content check for a news
// article: extract claims from the article, find corroborating coverage,
// analyse the references the same way, then cross-reference the lot with a
// language model. Results and progress are persisted through the Store.
package analysis

// ArticleAnalysis is what the model extracts from a single article.
type ArticleAnalysis struct {
	Claims  []string `json:"claims"`
	Summary string   `json:"summary"`
}

// MisleadingAnalysis is the cross-reference verdict. IsMisleading and
// Confidence are pointers so a "could not evaluate" verdict is
// distinguishable from a negative one.
type MisleadingAnalysis struct {
	IsMisleading *bool    `json:"isMisleading"`
	Reasons      []string `json:"reasons"`
	Explanation  string   `json:"explanation"`
	Confidence   *float64 `json:"confidence"`
}

// Metadata carries the display fields for an article.
type Metadata struct {
	Headline    string `json:"headline"`
	Author      string `json:"author"`
	PublishDate string `json:"publishDate"`
}

// ArticleRecord is the main-article section of a finished analysis.
type ArticleRecord struct {
	Headline    string   `json:"headline"`
	Author      string   `json:"author"`
	PublishDate string   `json:"publishDate"`
	Claims      []string `json:"claims"`
	Summary     string   `json:"summary"`
}

// ReferenceAnalysis is the per-reference claims and summary.
type ReferenceAnalysis struct {
	Claims  []string `json:"claims"`
	Summary string   `json:"summary"`
}

// SuccessfulReference records a reference article that was scraped and
// analysed.
type SuccessfulReference struct {
	URL         string            `json:"url"`
	Headline    string            `json:"headline"`
	Source      string            `json:"source"`
	PublishDate string            `json:"publishDate"`
	Author      string            `json:"author"`
	Analysis    ReferenceAnalysis `json:"analysis"`
}

// SkippedReference records a reference that was discarded, and why.
type SkippedReference struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// ReferenceProcessing buckets references by outcome.
type ReferenceProcessing struct {
	Successful []SuccessfulReference `json:"successful"`
	Skipped    []SkippedReference    `json:"skipped"`
}

// CrossReferenceMeta describes what went into the cross-reference call.
type CrossReferenceMeta struct {
	MainTitle string   `json:"mainTitle"`
	RefTitles []string `json:"refTitles"`
	RefCount  int      `json:"refCount"`
}

// Result is the complete output of one analysis run.
type Result struct {
	URL                 string              `json:"url"`
	Article             ArticleRecord       `json:"article"`
	ReferenceProcessing ReferenceProcessing `json:"reference_processing"`
	MaxReferencesUsed   int                 `json:"max_references_used"`
	CrossReference      *MisleadingAnalysis `json:"cross_reference,omitempty"`
	CrossReferenceMeta  *CrossReferenceMeta `json:"cross_reference_meta,omitempty"`
}

// noSourcesVerdict is the synthetic verdict used when no corroborating
// coverage exists at all. Absence of coverage is itself a signal.
func noSourcesVerdict() *MisleadingAnalysis {
	misleading := true
	confidence := 0.8
	return &MisleadingAnalysis{
		IsMisleading: &misleading,
		Reasons:      []string{"No corroborating sources found"},
		Explanation: "We couldn't find any other reputable news sources reporting on this story. " +
			"This could indicate that the information is not widely verified or accepted, which raises " +
			"concerns about its accuracy. Consider seeking additional verification before accepting the " +
			"claims in this article.",
		Confidence: &confidence,
	}
}

// formatErrorVerdict is the neutral verdict used when the model's
// cross-reference response could not be parsed.
func formatErrorVerdict() *MisleadingAnalysis {
	return &MisleadingAnalysis{
		IsMisleading: nil,
		Reasons:      []string{"AI analysis format error"},
		Explanation: "Our AI had trouble analysing this article. This doesn't mean the article is " +
			"misleading - just that our system couldn't properly evaluate it.",
		Confidence: nil,
	}
}

// mergeMetadata fills empty metadata fields from scraped content. Existing
// values always win.
func mergeMetadata(meta *Metadata, headline, author, publishDate string) {
	if meta.Headline == "" && headline != "" {
		meta.Headline = headline
	}
	if meta.Author == "" && author != "" {
		meta.Author = author
	}
	if meta.PublishDate == "" && publishDate != "" {
		meta.PublishDate = publishDate
	}
}
