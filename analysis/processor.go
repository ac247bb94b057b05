package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alexjohnyoung/truthtracer/extract"
	"github.com/alexjohnyoung/truthtracer/search"
	"github.com/alexjohnyoung/truthtracer/textutil"
)

// Scraper fetches and extracts article content. Satisfied by
// scrape.Pipeline.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*extract.Content, error)
	Cleanup()
}

// Searcher finds candidate reference articles. Satisfied by
// search.Harvester.
type Searcher interface {
	SearchNews(ctx context.Context, query, originalURL string, numResults, daysOld int, publishDate string) ([]search.Result, error)
}

// Processor runs the end-to-end analysis of one article.
type Processor struct {
	scraper  Scraper
	searcher Searcher
	llm      LLM
	sink     StatusSink
	logger   *slog.Logger
}

// NewProcessor wires up a processor. A nil sink discards status updates.
func NewProcessor(scraper Scraper, searcher Searcher, llm LLM, sink StatusSink, logger *slog.Logger) *Processor {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		scraper:  scraper,
		searcher: searcher,
		llm:      llm,
		sink:     sink,
		logger:   logger,
	}
}

// Cleanup releases the scraper's resources.
func (p *Processor) Cleanup() {
	p.scraper.Cleanup()
}

// referencePair holds one analysed reference with its display metadata.
type referencePair struct {
	analysis *ArticleAnalysis
	meta     Metadata
}

// AnalyzeArticle scrapes the article, extracts its claims, finds and
// analyses reference coverage and cross-references the two. When no
// reference coverage exists at all, the article is flagged with a synthetic
// verdict rather than passed through unexamined.
func (p *Processor) AnalyzeArticle(ctx context.Context, url string, maxReferences, daysOld int) (*Result, error) {
	p.logger.Info("analysing article", "url", url, "max_references", maxReferences)

	p.sink.Update("Scraping article content", 5, "Web Scraping", 1)
	content, err := p.scraper.Scrape(ctx, url)
	if err != nil {
		p.sink.Update("Failed to scrape article content", 25, "Error", -1)
		return nil, fmt.Errorf("scraping article: %w", err)
	}

	var meta Metadata
	mergeMetadata(&meta, content.Headline, content.Author, content.PublishDate)

	p.sink.Update("Processing main article content", 15, "Article Analysis", 2)
	p.sink.Update("Cleaning article text", 17, "Text Processing", 2)

	articleAnalysis, err := p.processArticle(ctx, content.Text, true)
	if err != nil {
		p.sink.Update("Failed to analyse main article content", 35, "Error", -1)
		return nil, fmt.Errorf("analysing article: %w", err)
	}

	p.sink.Update(fmt.Sprintf("Extracted %d claims from article", len(articleAnalysis.Claims)), 30, "Claims Extraction", 2)
	p.sink.Update("Generated article summary", 35, "Summary Generation", 2)

	query := search.QueryFromHeadline(meta.Headline)
	p.sink.Update("Generating search query from headline", 38, "Reference Search", 3)
	p.sink.Update(fmt.Sprintf("Searching for reference articles (max: %d)", maxReferences), 40, "Reference Search", 3)

	p.logger.Info("searching for reference articles", "query", query)
	references, err := p.searcher.SearchNews(ctx, query, url, maxReferences, daysOld, meta.PublishDate)
	if err != nil {
		p.logger.Warn("reference search failed", "error", err)
		references = nil
	}
	p.sink.Update(fmt.Sprintf("Found %d reference articles", len(references)), 50, "Reference Search", 3)

	if len(references) == 0 {
		p.logger.Warn("no reference articles found, flagging as potentially misleading")
		p.sink.Update("No other sources reporting this story", 80, "Cross-Reference", 5)
		p.sink.Update("Preparing final analysis", 90, "Completion", 6)
		p.sink.Update("Finalizing analysis results", 95, "Completion", 6)

		return p.buildResult(url, articleAnalysis, meta, ReferenceProcessing{
			Successful: []SuccessfulReference{},
			Skipped:    []SkippedReference{},
		}, maxReferences, noSourcesVerdict(), &CrossReferenceMeta{RefTitles: []string{}, RefCount: 0}), nil
	}

	mainURL := textutil.NormalizeURL(url)
	p.sink.Update("Processing reference articles", 60, "Reference Analysis", 4)

	processed, pairs := p.processReferences(ctx, references, mainURL)

	var verdict *MisleadingAnalysis
	var crossMeta *CrossReferenceMeta
	if len(pairs) > 0 {
		p.sink.Update(fmt.Sprintf("Preparing to cross-reference with %d sources", len(pairs)), 75, "Cross-Reference", 5)
		p.sink.Update(fmt.Sprintf("Cross-referencing main article with %d sources", len(pairs)), 80, "Cross-Reference", 5)

		verdict, crossMeta = p.crossReference(ctx, articleAnalysis, meta, pairs)

		if verdict != nil {
			switch {
			case verdict.IsMisleading != nil && *verdict.IsMisleading:
				p.sink.Update("Potential misleading content detected", 85, "Cross-Reference", 5)
			case verdict.IsMisleading != nil:
				p.sink.Update("No misleading content detected", 85, "Cross-Reference", 5)
			default:
				p.sink.Update("Cross-reference analysis complete", 85, "Cross-Reference", 5)
			}
		}
	}

	p.sink.Update("Preparing final analysis", 90, "Completion", 6)
	p.sink.Update("Finalizing analysis results", 95, "Completion", 6)

	return p.buildResult(url, articleAnalysis, meta, processed, maxReferences, verdict, crossMeta), nil
}

// processArticle cleans article text and extracts claims and a summary.
// Status updates are emitted only for the main article, not references.
func (p *Processor) processArticle(ctx context.Context, text string, mainArticle bool) (*ArticleAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		if mainArticle {
			p.sink.Update("Article text is empty or too short", 20, "Error", -1)
		}
		return nil, fmt.Errorf("article text is empty")
	}

	if mainArticle {
		p.sink.Update("Preparing article text for analysis", 18, "Text Processing", 2)
		p.sink.Update(fmt.Sprintf("Processing %d characters of text", len(text)), 19, "Text Processing", 2)
	}

	cleaned, err := p.llm.CleanArticleText(ctx, text)
	if err != nil || strings.TrimSpace(cleaned) == "" {
		cleaned = text
	}

	if mainArticle {
		p.sink.Update("Article text cleaned successfully", 21, "Text Processing", 2)
		p.sink.Update("Starting LLM analysis of article content", 22, "AI Analysis", 2)
		p.sink.Update("Extracting article claims", 24, "Claims Extraction", 2)
	}

	analysis, err := p.llm.ExtractArticleInfo(ctx, cleaned)
	if err != nil {
		if mainArticle {
			p.sink.Update("Error analyzing article content", 30, "Error", -1)
		}
		return nil, fmt.Errorf("extracting article info: %w", err)
	}

	if mainArticle {
		p.sink.Update("Generating article summary", 27, "Summary Generation", 2)
		p.sink.Update(fmt.Sprintf("Completed article analysis with %d claims identified", len(analysis.Claims)), 29, "Claims Extraction", 2)
	}

	return analysis, nil
}

// processReferences scrapes and analyses each candidate reference,
// bucketing each one as successful or skipped with a reason.
func (p *Processor) processReferences(ctx context.Context, references []search.Result, mainURL string) (ReferenceProcessing, []referencePair) {
	processed := ReferenceProcessing{
		Successful: []SuccessfulReference{},
		Skipped:    []SkippedReference{},
	}
	var pairs []referencePair

	total := len(references)
	p.sink.Update(fmt.Sprintf("Preparing to process %d reference articles", total), 60, "Reference Analysis", 4)

	for idx, ref := range references {
		// Progress walks from 60 to 80 across the reference set
		progress := 60 + (idx*20)/max(1, total)
		p.sink.Update(fmt.Sprintf("Processing reference %d/%d: %s", idx+1, total, ref.Title), progress, "Reference Analysis", 4)

		if ref.URL == "" {
			processed.Skipped = append(processed.Skipped, SkippedReference{URL: "unknown", Title: ref.Title, Reason: "Missing URL"})
			p.sink.Update(fmt.Sprintf("Skipped reference %d: Missing URL", idx+1), progress, "Reference Analysis", 4)
			continue
		}

		if textutil.NormalizeURL(ref.URL) == mainURL {
			processed.Skipped = append(processed.Skipped, SkippedReference{URL: ref.URL, Title: ref.Title, Reason: "Same as main article"})
			p.sink.Update(fmt.Sprintf("Skipped reference %d: Same as main article", idx+1), progress, "Reference Analysis", 4)
			continue
		}

		domain := textutil.ExtractDomain(ref.URL)
		p.sink.Update(fmt.Sprintf("Scraping reference %d: %s", idx+1, domain), progress, "Reference Scraping", 4)

		content, err := p.scraper.Scrape(ctx, ref.URL)
		if err != nil || content.Text == "" {
			processed.Skipped = append(processed.Skipped, SkippedReference{URL: ref.URL, Title: ref.Title, Reason: "Failed to scrape content"})
			p.sink.Update(fmt.Sprintf("Failed to scrape reference %d from %s", idx+1, domain), progress, "Reference Analysis", 4)
			continue
		}

		p.sink.Update(fmt.Sprintf("Analysing reference %d: %s", idx+1, ref.Title), progress+1, "Reference Analysis", 4)

		refAnalysis, err := p.processArticle(ctx, content.Text, false)
		if err != nil {
			processed.Skipped = append(processed.Skipped, SkippedReference{URL: ref.URL, Title: ref.Title, Reason: "Failed to process content"})
			p.sink.Update(fmt.Sprintf("Failed to analyse reference %d: %s", idx+1, ref.Title), progress+1, "Reference Analysis", 4)
			continue
		}

		// Search result data first, scraped metadata filling the gaps
		refMeta := Metadata{Headline: ref.Title}
		mergeMetadata(&refMeta, content.Headline, content.Author, content.PublishDate)

		pairs = append(pairs, referencePair{analysis: refAnalysis, meta: refMeta})

		author := refMeta.Author
		if author == "" {
			author = "Unknown"
		}
		processed.Successful = append(processed.Successful, SuccessfulReference{
			URL:         ref.URL,
			Headline:    refMeta.Headline,
			Source:      domain,
			PublishDate: textutil.FormatDisplayDate(refMeta.PublishDate),
			Author:      author,
			Analysis: ReferenceAnalysis{
				Claims:  refAnalysis.Claims,
				Summary: refAnalysis.Summary,
			},
		})

		p.sink.Update(fmt.Sprintf("Successfully processed reference %d/%d with %d claims", idx+1, total, len(refAnalysis.Claims)), progress+2, "Reference Analysis", 4)
	}

	p.sink.Update(fmt.Sprintf("Completed reference processing: %d successful, %d skipped",
		len(processed.Successful), len(processed.Skipped)), 80, "Reference Complete", 4)

	return processed, pairs
}

// crossReference runs the misleading-content comparison. A malformed model
// reply degrades to a neutral verdict; other failures return no verdict at
// all.
func (p *Processor) crossReference(ctx context.Context, article *ArticleAnalysis, meta Metadata, pairs []referencePair) (*MisleadingAnalysis, *CrossReferenceMeta) {
	p.sink.Update(fmt.Sprintf("Starting cross-reference with %d articles", len(pairs)), 77, "Cross-Reference", 5)

	refArticles := make([]*ArticleAnalysis, 0, len(pairs))
	refTitles := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		refArticles = append(refArticles, pair.analysis)
		refTitles = append(refTitles, pair.meta.Headline)
	}

	crossMeta := &CrossReferenceMeta{
		MainTitle: meta.Headline,
		RefTitles: refTitles,
		RefCount:  len(refArticles),
	}

	p.sink.Update("Extracting claims for comparison", 78, "Cross-Reference", 5)
	p.sink.Update("Comparing article claims with reference sources", 79, "Cross-Reference", 5)
	p.sink.Update("Analyzing article for potential misleading content", 80, "Cross-Reference", 5)

	verdict, err := p.llm.AnalyzeMisleading(ctx, article, refArticles, meta.Headline, refTitles)
	if err != nil {
		if errors.Is(err, ErrBadResponse) {
			p.logger.Error("cross-reference reply unparseable", "error", err)
			p.sink.Update("AI analysis error: Unable to evaluate article reliability", 82, "Cross-Reference Error", 5)
			return formatErrorVerdict(), crossMeta
		}
		p.logger.Error("cross-reference analysis failed", "error", err)
		p.sink.Update("Cross-reference failed", 82, "Cross-Reference Error", 5)
		return nil, nil
	}

	if verdict.IsMisleading != nil && *verdict.IsMisleading {
		p.sink.Update("Completed analysis: Potentially misleading content detected", 82, "Cross-Reference", 5)
	} else {
		p.sink.Update("Completed analysis: No misleading content detected", 82, "Cross-Reference", 5)
	}

	return verdict, crossMeta
}

func (p *Processor) buildResult(url string, analysis *ArticleAnalysis, meta Metadata, processed ReferenceProcessing, maxReferences int, verdict *MisleadingAnalysis, crossMeta *CrossReferenceMeta) *Result {
	return &Result{
		URL: url,
		Article: ArticleRecord{
			Headline:    meta.Headline,
			Author:      meta.Author,
			PublishDate: textutil.FormatDisplayDate(meta.PublishDate),
			Claims:      analysis.Claims,
			Summary:     analysis.Summary,
		},
		ReferenceProcessing: processed,
		MaxReferencesUsed:   maxReferences,
		CrossReference:      verdict,
		CrossReferenceMeta:  crossMeta,
	}
}
