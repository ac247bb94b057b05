package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexjohnyoung/truthtracer/extract"
	"github.com/alexjohnyoung/truthtracer/textutil"
)

// maxRetryDelay caps the exponential backoff between stage retries.
const maxRetryDelay = 30 * time.Second

// defaultRetryDelay is the initial backoff for stages that do not set one.
const defaultRetryDelay = 2 * time.Second

var (
	// ErrBlockedDomain is returned when the URL's domain is on the blocklist.
	ErrBlockedDomain = errors.New("domain is blocked")

	// ErrNotValidated is returned when the pipeline ran to completion but the
	// extracted content did not pass validation. Callers never receive a
	// partially filled record.
	ErrNotValidated = errors.New("content failed validation")
)

// StaticSource fetches a page without executing client-side scripts. The
// boolean reports whether the page appears to require JavaScript.
type StaticSource interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, bool, error)
}

// DynamicSource fetches a page with client-side rendering completed.
type DynamicSource interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
	Cleanup()
}

// StageResult is the summary a stage reports on success, keyed into
// Context.Results by stage name.
type StageResult map[string]any

// Context is the mutable state threaded through one pipeline run. It is
// owned exclusively by that run; stages mutate it in place and later stages
// see earlier results.
type Context struct {
	URL     string
	Domain  string
	Doc     *goquery.Document
	Content *extract.Content

	StaticFailed    bool
	RequiresDynamic bool
	DynamicFailed   bool
	DynamicSkipped  bool
	Blocked         bool
	SkipRemaining   bool
	Validated       bool

	Results map[string]StageResult
}

// Processor implements one stage's work. It may mutate the pipeline context
// and returns a summary of what it did, or an error to trigger the stage's
// retry and error-handling policy.
type Processor func(ctx context.Context, pc *Context) (StageResult, error)

// ErrorHandler inspects a stage failure and reports whether it was handled.
// A handled failure counts as stage success.
type ErrorHandler func(pc *Context, err error) bool

// Stage is one retryable unit of the scraping workflow.
type Stage struct {
	Name          string
	Processor     Processor
	ErrorHandler  ErrorHandler
	RetryAttempts int
	RetryDelay    time.Duration
}

// Execute runs the stage with retry and backoff. The retry delay doubles
// after each sleep up to a cap, and resets between Execute calls. Returns
// whether the stage ended in success.
func (s *Stage) Execute(ctx context.Context, pc *Context, logger *slog.Logger, sleep func(time.Duration)) bool {
	attempt := 0
	delay := s.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	for attempt <= s.RetryAttempts {
		if attempt > 0 {
			logger.Info("retrying stage", "stage", s.Name, "attempt", attempt)
		}

		result, err := s.Processor(ctx, pc)
		if err == nil {
			if result != nil {
				pc.Results[s.Name] = result
			}
			logger.Info("stage completed", "stage", s.Name)
			return true
		}

		attempt++
		logger.Error("stage error", "stage", s.Name, "error", err)

		if s.ErrorHandler != nil && s.ErrorHandler(pc, err) {
			logger.Info("stage error handled", "stage", s.Name)
			return true
		}

		if attempt <= s.RetryAttempts {
			logger.Info("will retry stage", "stage", s.Name, "delay", delay,
				"attempt", attempt, "max", s.RetryAttempts)
			sleep(delay)
			delay = min(delay*2, maxRetryDelay)
		} else {
			logger.Error("stage failed", "stage", s.Name, "attempts", attempt)
			return false
		}
	}

	return false
}

// Config carries the pipeline's collaborators and tuning knobs. Zero values
// get sensible defaults; a nil Dynamic disables browser rendering entirely.
type Config struct {
	Static     StaticSource
	Dynamic    DynamicSource
	Rules      *DomainRules
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger

	// Sleep is swapped out in tests to observe backoff without waiting.
	Sleep func(time.Duration)
}

// Pipeline converts a URL into a validated content record by running a
// fixed, ordered sequence of stages over a shared context.
type Pipeline struct {
	static  StaticSource
	dynamic DynamicSource
	rules   *DomainRules

	contentExtractor  *extract.ContentExtractor
	metadataExtractor *extract.MetadataExtractor
	cleaner           *textutil.Cleaner

	logger *slog.Logger
	sleep  func(time.Duration)
	stages []Stage
}

// NewPipeline assembles a pipeline from the given configuration.
func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	rules := cfg.Rules
	if rules == nil {
		rules = NewDomainRules()
	}
	static := cfg.Static
	if static == nil {
		static = NewStaticFetcher(cfg.Timeout, logger)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	p := &Pipeline{
		static:            static,
		dynamic:           cfg.Dynamic,
		rules:             rules,
		contentExtractor:  extract.NewContentExtractor(logger),
		metadataExtractor: extract.NewMetadataExtractor(logger),
		cleaner:           textutil.NewCleaner(),
		logger:            logger,
		sleep:             sleep,
	}

	p.stages = []Stage{
		{
			Name:      "domain_analysis",
			Processor: p.processDomainAnalysis,
		},
		{
			Name:          "static_scraping",
			Processor:     p.processStaticScraping,
			ErrorHandler:  p.handleStaticScrapingError,
			RetryAttempts: min(1, maxRetries),
		},
		{
			Name:          "dynamic_scraping",
			Processor:     p.processDynamicScraping,
			ErrorHandler:  p.handleDynamicScrapingError,
			RetryAttempts: min(2, maxRetries),
			RetryDelay:    3 * time.Second,
		},
		{
			Name:          "content_extraction",
			Processor:     p.processContentExtraction,
			RetryAttempts: min(1, maxRetries),
		},
		{
			Name:          "metadata_extraction",
			Processor:     p.processMetadataExtraction,
			RetryAttempts: 1,
		},
		{
			Name:      "content_cleaning",
			Processor: p.processContentCleaning,
		},
		{
			Name:      "content_validation",
			Processor: p.processContentValidation,
		},
	}

	return p
}

// Scrape runs the full pipeline for one URL. It returns the extracted
// content only when validation passed; every other outcome is an error with
// no partial record attached.
func (p *Pipeline) Scrape(ctx context.Context, url string) (*extract.Content, error) {
	p.logger.Info("starting scraping pipeline", "url", url)
	start := time.Now()

	pc := &Context{
		URL:     url,
		Results: map[string]StageResult{},
	}

	for i := range p.stages {
		stage := &p.stages[i]
		if pc.SkipRemaining {
			p.logger.Info("skipping remaining stages", "from", stage.Name)
			break
		}

		p.logger.Info("executing stage", "stage", stage.Name)
		if !stage.Execute(ctx, pc, p.logger, p.sleep) {
			p.logger.Error("pipeline failed", "stage", stage.Name)
			return nil, fmt.Errorf("pipeline failed at stage %s", stage.Name)
		}
	}

	p.logger.Info("pipeline completed", "elapsed", time.Since(start).Round(time.Millisecond))

	if pc.Blocked {
		return nil, fmt.Errorf("%w: %s", ErrBlockedDomain, pc.Domain)
	}
	if !pc.Validated {
		p.logger.Warn("pipeline completed but content failed validation", "url", url)
		return nil, ErrNotValidated
	}
	return pc.Content, nil
}

// Cleanup releases the browser if one was configured. Safe to call more
// than once.
func (p *Pipeline) Cleanup() {
	if p.dynamic != nil {
		p.dynamic.Cleanup()
	}
}

func (p *Pipeline) processDomainAnalysis(_ context.Context, pc *Context) (StageResult, error) {
	domain := textutil.ExtractDomain(pc.URL)
	pc.Domain = domain

	if p.rules.IsBlocked(domain) {
		p.logger.Info("domain is blocked", "domain", domain)
		pc.Blocked = true
		pc.SkipRemaining = true
		return StageResult{"blocked": true, "domain": domain}, nil
	}

	return StageResult{"domain": domain}, nil
}

func (p *Pipeline) processStaticScraping(ctx context.Context, pc *Context) (StageResult, error) {
	p.logger.Info("attempting static scraping", "url", pc.URL)

	doc, requiresJS, err := p.static.Fetch(ctx, pc.URL)
	if err != nil || doc == nil {
		pc.StaticFailed = true
		pc.RequiresDynamic = true
		if err == nil {
			err = errors.New("no content returned")
		}
		return nil, fmt.Errorf("static scraping: %w", err)
	}

	pc.Doc = doc

	if HasMeaningfulContent(doc) {
		p.logger.Info("page has meaningful content, no browser render needed")
		return StageResult{"success": true}, nil
	}

	if requiresJS {
		// Escalation is recorded as data, not raised as an error: the page
		// loaded fine but cannot be read without a browser.
		p.logger.Info("content requires javascript, will use dynamic scraping")
		pc.StaticFailed = true
		pc.RequiresDynamic = true
		return StageResult{"failed": true, "reason": "requires_javascript"}, nil
	}

	return StageResult{"success": true}, nil
}

func (p *Pipeline) handleStaticScrapingError(pc *Context, err error) bool {
	p.logger.Warn("static scraping error, falling back to dynamic", "error", err)
	pc.StaticFailed = true
	return true
}

func (p *Pipeline) processDynamicScraping(ctx context.Context, pc *Context) (StageResult, error) {
	if !pc.StaticFailed {
		p.logger.Info("skipping dynamic scraping, static was sufficient")
		pc.DynamicSkipped = true
		return StageResult{"skipped": true}, nil
	}

	if p.dynamic == nil {
		pc.DynamicFailed = true
		return nil, errors.New("dynamic scraping: no browser configured")
	}

	p.logger.Info("attempting dynamic scraping", "url", pc.URL)

	doc, err := p.dynamic.Fetch(ctx, pc.URL)
	if err != nil {
		pc.DynamicFailed = true
		return nil, fmt.Errorf("dynamic scraping: %w", err)
	}
	if doc == nil {
		pc.DynamicFailed = true
		return nil, errors.New("dynamic scraping: no content returned")
	}

	pc.Doc = doc
	return StageResult{"success": true}, nil
}

func (p *Pipeline) handleDynamicScrapingError(_ *Context, err error) bool {
	// No recovery here. Ad hoc retries of a broken browser session were
	// found to cause more problems than they solved, so the failure stands.
	p.logger.Warn("dynamic scraping error, failing pipeline", "error", err)
	return false
}

func (p *Pipeline) processContentExtraction(_ context.Context, pc *Context) (StageResult, error) {
	if pc.Doc == nil {
		return nil, errors.New("content extraction: no document available")
	}

	content := p.contentExtractor.Extract(pc.Doc, pc.URL)
	content.RequiresJavaScript = pc.RequiresDynamic
	pc.Content = content

	return StageResult{
		"text_length": len(content.Text),
		"links_count": len(content.Links),
	}, nil
}

func (p *Pipeline) processMetadataExtraction(_ context.Context, pc *Context) (StageResult, error) {
	if pc.Doc == nil {
		return nil, errors.New("metadata extraction: no document available")
	}

	pc.Content = p.metadataExtractor.Extract(pc.Doc, pc.URL, pc.Content)

	return StageResult{
		"headline": pc.Content.Headline != "",
		"author":   pc.Content.Author != "",
		"date":     pc.Content.PublishDate != "",
	}, nil
}

func (p *Pipeline) processContentCleaning(_ context.Context, pc *Context) (StageResult, error) {
	if pc.Content == nil {
		return nil, errors.New("content cleaning: no content available")
	}

	originalLength := len(pc.Content.Text)

	if pc.Content.Text != "" {
		pc.Content.Text = p.cleaner.CleanContent(pc.Content.Text)
	}
	if pc.Content.Author != "" {
		pc.Content.Author = p.cleaner.CleanAuthor(pc.Content.Author)
	}
	if pc.Content.PublishDate != "" {
		pc.Content.PublishDate = p.cleaner.CleanDate(pc.Content.PublishDate)
	}

	cleanedLength := len(pc.Content.Text)
	p.logger.Info("cleaned content", "from", originalLength, "to", cleanedLength)

	return StageResult{
		"original_length": originalLength,
		"cleaned_length":  cleanedLength,
	}, nil
}

func (p *Pipeline) processContentValidation(_ context.Context, pc *Context) (StageResult, error) {
	if pc.Content == nil {
		p.logger.Warn("no content to validate")
		pc.Validated = false
		return StageResult{"valid": false, "reason": "no_content"}, nil
	}

	if pc.Content.Headline == "" {
		// Missing headline alone is not a reason to throw the article away
		p.logger.Warn("content validation: missing headline")
	}

	pc.Validated = true
	return StageResult{
		"valid":        true,
		"text_length":  len(pc.Content.Text),
		"has_headline": pc.Content.Headline != "",
		"has_author":   pc.Content.Author != "",
		"has_date":     pc.Content.PublishDate != "",
	}, nil
}
