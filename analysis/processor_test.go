package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjohnyoung/truthtracer/extract"
	"github.com/alexjohnyoung/truthtracer/search"
)

type fakeScraper struct {
	pages    map[string]*extract.Content
	cleanups int
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*extract.Content, error) {
	content, ok := f.pages[url]
	if !ok {
		return nil, errors.New("fetch failed")
	}
	return content, nil
}

func (f *fakeScraper) Cleanup() { f.cleanups++ }

type fakeSearcher struct {
	results []search.Result
	err     error
	query   string
}

func (f *fakeSearcher) SearchNews(_ context.Context, query, _ string, _, _ int, _ string) ([]search.Result, error) {
	f.query = query
	return f.results, f.err
}

type fakeLLM struct {
	analyses     map[string]*ArticleAnalysis
	extractErr   error
	verdict      *MisleadingAnalysis
	misleadErr   error
	misleadCalls int
	refCount     int
}

func (f *fakeLLM) CleanArticleText(_ context.Context, text string) (string, error) {
	return text, nil
}

func (f *fakeLLM) ExtractArticleInfo(_ context.Context, text string) (*ArticleAnalysis, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	if analysis, ok := f.analyses[text]; ok {
		return analysis, nil
	}
	return &ArticleAnalysis{Claims: []string{"generic claim"}, Summary: "generic summary"}, nil
}

func (f *fakeLLM) AnalyzeMisleading(_ context.Context, _ *ArticleAnalysis, references []*ArticleAnalysis, _ string, _ []string) (*MisleadingAnalysis, error) {
	f.misleadCalls++
	f.refCount = len(references)
	return f.verdict, f.misleadErr
}

type recordingSink struct {
	updates []Status
}

func (r *recordingSink) Update(message string, progress int, stepName string, step int) {
	r.updates = append(r.updates, Status{Message: message, Progress: progress, StepName: stepName, Step: step})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func article(text string) *extract.Content {
	return &extract.Content{
		Headline:    "Council Approves Housing Development",
		Author:      "Jane Smith",
		PublishDate: "2024-01-08T09:00:00Z",
		Text:        text,
	}
}

func TestProcessor_AnalyzeArticle(t *testing.T) {
	notMisleading := false
	scraper := &fakeScraper{pages: map[string]*extract.Content{
		"https://example.com/orig":  article("main article body"),
		"https://news-a.com/story":  article("reference a body"),
		"https://news-b.com/broken": {Text: ""},
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{URL: "https://example.com/orig?utm_source=feed", Title: "The Original"},
		{URL: "https://news-a.com/story", Title: "Story A"},
		{URL: "https://news-b.com/broken", Title: "Broken Page"},
		{URL: "", Title: "No URL"},
	}}
	llm := &fakeLLM{
		analyses: map[string]*ArticleAnalysis{
			"main article body": {Claims: []string{"claim one", "claim two"}, Summary: "main summary"},
			"reference a body":  {Claims: []string{"ref claim"}, Summary: "ref summary"},
		},
		verdict: &MisleadingAnalysis{
			IsMisleading: &notMisleading,
			Reasons:      []string{"claims corroborated"},
			Explanation:  "The reference coverage matches the article's claims.",
		},
	}
	sink := &recordingSink{}
	p := NewProcessor(scraper, searcher, llm, sink, quietLogger())

	result, err := p.AnalyzeArticle(context.Background(), "https://example.com/orig", 3, 7)

	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "https://example.com/orig", result.URL)
	assert.Equal(t, "Council Approves Housing Development", result.Article.Headline)
	assert.Equal(t, "Jane Smith", result.Article.Author)
	assert.Equal(t, "2024-01-08", result.Article.PublishDate)
	assert.Equal(t, []string{"claim one", "claim two"}, result.Article.Claims)
	assert.Equal(t, "main summary", result.Article.Summary)
	assert.Equal(t, 3, result.MaxReferencesUsed)

	// One good reference, three skipped for distinct reasons
	require.Len(t, result.ReferenceProcessing.Successful, 1)
	good := result.ReferenceProcessing.Successful[0]
	assert.Equal(t, "https://news-a.com/story", good.URL)
	assert.Equal(t, "Story A", good.Headline)
	assert.Equal(t, "news-a.com", good.Source)
	assert.Equal(t, "2024-01-08", good.PublishDate)
	assert.Equal(t, "Jane Smith", good.Author)
	assert.Equal(t, []string{"ref claim"}, good.Analysis.Claims)

	require.Len(t, result.ReferenceProcessing.Skipped, 3)
	reasons := map[string]string{}
	for _, skipped := range result.ReferenceProcessing.Skipped {
		reasons[skipped.Title] = skipped.Reason
	}
	assert.Equal(t, "Same as main article", reasons["The Original"])
	assert.Equal(t, "Failed to scrape content", reasons["Broken Page"])
	assert.Equal(t, "Missing URL", reasons["No URL"])

	require.NotNil(t, result.CrossReference)
	assert.False(t, *result.CrossReference.IsMisleading)
	require.NotNil(t, result.CrossReferenceMeta)
	assert.Equal(t, "Council Approves Housing Development", result.CrossReferenceMeta.MainTitle)
	assert.Equal(t, []string{"Story A"}, result.CrossReferenceMeta.RefTitles)
	assert.Equal(t, 1, result.CrossReferenceMeta.RefCount)
	assert.Equal(t, 1, llm.refCount)

	// The search query comes from the headline, not the raw URL
	assert.Equal(t, search.QueryFromHeadline("Council Approves Housing Development"), searcher.query)
}

func TestProcessor_NoReferencesFound(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]*extract.Content{
		"https://example.com/lonely": article("main article body"),
	}}
	searcher := &fakeSearcher{results: nil}
	llm := &fakeLLM{analyses: map[string]*ArticleAnalysis{
		"main article body": {Claims: []string{"claim one"}, Summary: "summary"},
	}}
	p := NewProcessor(scraper, searcher, llm, nil, quietLogger())

	result, err := p.AnalyzeArticle(context.Background(), "https://example.com/lonely", 3, 7)

	require.NoError(t, err)
	require.NotNil(t, result.CrossReference)

	// Absence of corroboration is itself flagged, with moderate confidence
	require.NotNil(t, result.CrossReference.IsMisleading)
	assert.True(t, *result.CrossReference.IsMisleading)
	assert.Equal(t, []string{"No corroborating sources found"}, result.CrossReference.Reasons)
	require.NotNil(t, result.CrossReference.Confidence)
	assert.Equal(t, 0.8, *result.CrossReference.Confidence)
	assert.Contains(t, result.CrossReference.Explanation, "couldn't find any other reputable news sources")

	assert.Equal(t, 0, result.CrossReferenceMeta.RefCount)
	assert.Empty(t, result.ReferenceProcessing.Successful)
	assert.Empty(t, result.ReferenceProcessing.Skipped)
	assert.Equal(t, 0, llm.misleadCalls)
}

func TestProcessor_MalformedVerdictDegradesToNeutral(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]*extract.Content{
		"https://example.com/orig": article("main article body"),
		"https://news-a.com/story": article("reference a body"),
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{URL: "https://news-a.com/story", Title: "Story A"},
	}}
	llm := &fakeLLM{misleadErr: fmt.Errorf("%w: not json", ErrBadResponse)}
	p := NewProcessor(scraper, searcher, llm, nil, quietLogger())

	result, err := p.AnalyzeArticle(context.Background(), "https://example.com/orig", 3, 7)

	require.NoError(t, err)
	require.NotNil(t, result.CrossReference)
	assert.Nil(t, result.CrossReference.IsMisleading)
	assert.Nil(t, result.CrossReference.Confidence)
	assert.Equal(t, []string{"AI analysis format error"}, result.CrossReference.Reasons)
	assert.Contains(t, result.CrossReference.Explanation, "had trouble analysing")

	// The meta block survives so the caller can see what was compared
	require.NotNil(t, result.CrossReferenceMeta)
	assert.Equal(t, 1, result.CrossReferenceMeta.RefCount)
}

func TestProcessor_OtherVerdictErrorDropsCrossReference(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]*extract.Content{
		"https://example.com/orig": article("main article body"),
		"https://news-a.com/story": article("reference a body"),
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{URL: "https://news-a.com/story", Title: "Story A"},
	}}
	llm := &fakeLLM{misleadErr: errors.New("rate limited")}
	p := NewProcessor(scraper, searcher, llm, nil, quietLogger())

	result, err := p.AnalyzeArticle(context.Background(), "https://example.com/orig", 3, 7)

	require.NoError(t, err)
	assert.Nil(t, result.CrossReference)
	assert.Nil(t, result.CrossReferenceMeta)
	assert.Len(t, result.ReferenceProcessing.Successful, 1)
}

func TestProcessor_ScrapeFailureIsFatal(t *testing.T) {
	p := NewProcessor(&fakeScraper{}, &fakeSearcher{}, &fakeLLM{}, nil, quietLogger())

	result, err := p.AnalyzeArticle(context.Background(), "https://example.com/gone", 3, 7)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "scraping article")
}

func TestProcessor_MainExtractionFailureIsFatal(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]*extract.Content{
		"https://example.com/orig": article("main article body"),
	}}
	llm := &fakeLLM{extractErr: errors.New("model unavailable")}
	sink := &recordingSink{}
	p := NewProcessor(scraper, &fakeSearcher{}, llm, sink, quietLogger())

	_, err := p.AnalyzeArticle(context.Background(), "https://example.com/orig", 3, 7)

	require.Error(t, err)

	// The failure surfaces through the sink as an error step
	last := sink.updates[len(sink.updates)-1]
	assert.Equal(t, -1, last.Step)
}

func TestProcessor_EmptyArticleText(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]*extract.Content{
		"https://example.com/empty": {Headline: "Headline", Text: "   "},
	}}
	p := NewProcessor(scraper, &fakeSearcher{}, &fakeLLM{}, nil, quietLogger())

	_, err := p.AnalyzeArticle(context.Background(), "https://example.com/empty", 3, 7)

	require.Error(t, err)
}

func TestProcessor_ProgressStaysOrderedThroughReferences(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]*extract.Content{
		"https://example.com/orig": article("main article body"),
		"https://news-a.com/one":   article("reference a body"),
		"https://news-b.com/two":   article("reference b body"),
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{URL: "https://news-a.com/one", Title: "One"},
		{URL: "https://news-b.com/two", Title: "Two"},
	}}
	notMisleading := false
	llm := &fakeLLM{verdict: &MisleadingAnalysis{IsMisleading: &notMisleading, Explanation: "fine"}}
	sink := &recordingSink{}
	p := NewProcessor(scraper, searcher, llm, sink, quietLogger())

	_, err := p.AnalyzeArticle(context.Background(), "https://example.com/orig", 3, 7)
	require.NoError(t, err)

	require.NotEmpty(t, sink.updates)
	for _, update := range sink.updates {
		assert.GreaterOrEqual(t, update.Progress, 0)
		assert.LessOrEqual(t, update.Progress, 100)
	}
	assert.Equal(t, 95, sink.updates[len(sink.updates)-1].Progress)
}

func TestProcessor_Cleanup(t *testing.T) {
	scraper := &fakeScraper{}
	p := NewProcessor(scraper, &fakeSearcher{}, &fakeLLM{}, nil, quietLogger())

	p.Cleanup()

	assert.Equal(t, 1, scraper.cleanups)
}
