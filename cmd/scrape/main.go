// Command scrape runs the scraping pipeline against a single URL and
// prints the extracted content record as JSON. Useful for checking what
// the analyser would see for a given page.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alexjohnyoung/truthtracer/config"
	"github.com/alexjohnyoung/truthtracer/scrape"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.truthtracer/config.yaml)")
	timeout := flag.Duration("timeout", 0, "per-fetch timeout (overrides config)")
	verbose := flag.Bool("v", false, "log pipeline stages to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <url>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	url := flag.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fetchTimeout := time.Duration(cfg.Scraping.TimeoutSeconds) * time.Second
	if *timeout > 0 {
		fetchTimeout = *timeout
	}

	rules := scrape.NewDomainRules()
	if len(cfg.Scraping.BlockedDomains) > 0 {
		rules = scrape.NewDomainRulesWith(cfg.Scraping.BlockedDomains)
	}

	pipeline := scrape.NewPipeline(scrape.Config{
		Dynamic:    scrape.NewDynamicFetcher(fetchTimeout, logger),
		Rules:      rules,
		Timeout:    fetchTimeout,
		MaxRetries: cfg.Scraping.MaxRetries,
		Logger:     logger,
	})
	defer pipeline.Cleanup()

	content, err := pipeline.Scrape(context.Background(), url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(content); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
