// Package truthtracer exposes the article analysis service over HTTP.
// Analyses run in the background; clients poll for progress and results.
package truthtracer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexjohnyoung/truthtracer/analysis"
	"github.com/alexjohnyoung/truthtracer/config"
	"github.com/alexjohnyoung/truthtracer/scrape"
	"github.com/alexjohnyoung/truthtracer/search"
)

// Runner is one analysis run. Satisfied by analysis.Processor.
type Runner interface {
	AnalyzeArticle(ctx context.Context, url string, maxReferences, daysOld int) (*analysis.Result, error)
	Cleanup()
}

// RunnerFactory builds a fresh runner for one analysis. Each run gets its
// own browser so concurrent analyses never share one.
type RunnerFactory func(sink analysis.StatusSink) Runner

// APIServer represents the HTTP API server.
type APIServer struct {
	store     *analysis.Store
	cfg       *config.Config
	logger    *slog.Logger
	newRunner RunnerFactory
}

// NewAPIServer creates an API server backed by the given store. The token
// is the OpenAI API key.
func NewAPIServer(store *analysis.Store, cfg *config.Config, token string, logger *slog.Logger) *APIServer {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &APIServer{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
	s.newRunner = func(sink analysis.StatusSink) Runner {
		return s.buildProcessor(token, sink)
	}
	return s
}

// buildProcessor wires a full processor: scraping pipeline, browser-driven
// search with RSS fallback, and the LLM client.
func (s *APIServer) buildProcessor(token string, sink analysis.StatusSink) *analysis.Processor {
	timeout := time.Duration(s.cfg.Scraping.TimeoutSeconds) * time.Second

	browser := scrape.NewDynamicFetcher(timeout, s.logger)

	rules := scrape.NewDomainRules()
	if len(s.cfg.Scraping.BlockedDomains) > 0 {
		rules = scrape.NewDomainRulesWith(s.cfg.Scraping.BlockedDomains)
	}

	pipeline := scrape.NewPipeline(scrape.Config{
		Dynamic:    browser,
		Rules:      rules,
		Timeout:    timeout,
		MaxRetries: s.cfg.Scraping.MaxRetries,
		Logger:     s.logger,
	})

	harvester := search.NewHarvester(browser, s.logger)
	llm := analysis.NewClient(token, s.cfg.LLM.Model, s.cfg.LLM.SkipCleaning, s.logger)

	return analysis.NewProcessor(pipeline, harvester, llm, sink, s.logger)
}

// AnalysisStartResponse is the response for GET /analyse-start.
type AnalysisStartResponse struct {
	AnalysisID string          `json:"analysis_id"`
	URL        string          `json:"url"`
	Status     analysis.Status `json:"status"`
}

// AnalysisStatusResponse is the response for GET /analyse-status/{id}.
// Success, Error and Result appear only once the analysis is complete.
type AnalysisStatusResponse struct {
	URL         string           `json:"url"`
	Status      analysis.Status  `json:"status"`
	LogMessages []string         `json:"log_messages"`
	Complete    bool             `json:"complete"`
	Success     *bool            `json:"success,omitempty"`
	Error       *string          `json:"error,omitempty"`
	Result      *analysis.Result `json:"result,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleAnalyseStart handles GET /analyse-start. It registers the analysis,
// kicks off a background run and returns the tracking ID immediately.
func (s *APIServer) HandleAnalyseStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	query := r.URL.Query()

	url := query.Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", "Missing url parameter")
		return
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", "url must be an http(s) URL")
		return
	}

	daysOld := s.cfg.Search.DaysOld
	if param := query.Get("days_old"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 1 || parsed > 3650 {
			s.writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid days_old parameter: must be between 1 and 3650")
			return
		}
		daysOld = parsed
	}

	maxReferences := s.cfg.Search.MaxReferences
	if param := query.Get("max_references"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 1 || parsed > 20 {
			s.writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid max_references parameter: must be between 1 and 20")
			return
		}
		maxReferences = parsed
	}

	record, err := s.store.Create(url)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to register analysis: "+err.Error())
		return
	}

	go s.runAnalysis(record.AnalysisID, url, maxReferences, daysOld)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(AnalysisStartResponse{
		AnalysisID: record.AnalysisID.String(),
		URL:        record.URL,
		Status:     record.Status,
	})
}

// runAnalysis executes one analysis in the background and records the
// outcome.
func (s *APIServer) runAnalysis(id uuid.UUID, url string, maxReferences, daysOld int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("analysis panicked", "analysis_id", id, "panic", r)
			s.store.SetError(id, fmt.Sprintf("Error analysing article: %v", r))
		}
	}()

	sink := s.store.SinkFor(id)
	runner := s.newRunner(sink)
	defer runner.Cleanup()

	result, err := runner.AnalyzeArticle(context.Background(), url, maxReferences, daysOld)
	if err != nil {
		s.logger.Error("analysis failed", "analysis_id", id, "url", url, "error", err)
		sink.Update("Analysis failed: could not process article", 100, "Error", -1)
		if err := s.store.SetError(id, "Failed to analyse article"); err != nil {
			s.logger.Error("failed to record analysis error", "analysis_id", id, "error", err)
		}
		return
	}

	sink.Update("Analysis complete", 100, "Complete", 5)
	if err := s.store.SetResult(id, result); err != nil {
		s.logger.Error("failed to store analysis result", "analysis_id", id, "error", err)
		s.store.SetError(id, "Failed to store analysis result")
		return
	}

	s.logger.Info("analysis completed", "analysis_id", id, "url", url)
}

// HandleAnalyseStatus handles GET /analyse-status/{id}.
func (s *APIServer) HandleAnalyseStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/analyse-status/")
	idStr = strings.TrimSuffix(idStr, "/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid analysis ID: "+err.Error())
		return
	}

	record, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get analysis: "+err.Error())
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "Analysis ID not found")
		return
	}

	response := AnalysisStatusResponse{
		URL:         record.URL,
		Status:      record.Status,
		LogMessages: record.LogMessages,
		Complete:    record.Complete,
	}
	if record.Complete {
		response.Success = record.Success
		if record.Success != nil && *record.Success {
			response.Result = record.Result
		} else {
			response.Error = record.Error
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleRoot handles GET / with basic API information.
func (s *APIServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not_found", "Not found")
		return
	}

	info := map[string]any{
		"name":        "TruthTracer API",
		"version":     "1.0.0",
		"description": "News article analysis for detecting misleading content",
		"endpoints": []map[string]string{
			{
				"path":        "/analyse-start",
				"description": "Start asynchronous analysis of a news article",
			},
			{
				"path":        "/analyse-status/{analysis_id}",
				"description": "Check the status of an ongoing analysis",
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}

// writeError writes an error response.
func (s *APIServer) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// CORSMiddleware adds CORS headers so browser frontends can call the API.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed, CORS-wrapped HTTP handler.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HandleRoot)
	mux.HandleFunc("/analyse-start", s.HandleAnalyseStart)
	mux.HandleFunc("/analyse-status/", s.HandleAnalyseStatus)
	return CORSMiddleware(mux)
}

// Start starts the HTTP server on the given address.
func (s *APIServer) Start(addr string) error {
	s.logger.Info("starting api server", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}
