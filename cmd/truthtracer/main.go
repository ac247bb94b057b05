// Command truthtracer runs the article analysis API server.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	truthtracer "github.com/alexjohnyoung/truthtracer"
	"github.com/alexjohnyoung/truthtracer/analysis"
	"github.com/alexjohnyoung/truthtracer/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.truthtracer/config.yaml)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Secrets come from the environment; .env is a development convenience
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	token := os.Getenv("OPENAI_API_KEY")
	if token == "" {
		logger.Error("OPENAI_API_KEY is not set")
		os.Exit(1)
	}

	store, err := analysis.NewStore(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open analysis store", "path", cfg.Storage.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	server := truthtracer.NewAPIServer(store, cfg, token, logger)
	if err := server.Start(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
