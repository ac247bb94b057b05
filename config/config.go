// Package config holds runtime configuration for the truthtracer server
// and CLI, loaded from an optional YAML file over built-in defaults.
package config

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scraping ScrapingConfig `yaml:"scraping"`
	Search   SearchConfig   `yaml:"search"`
	LLM      LLMConfig      `yaml:"llm"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ScrapingConfig configures the scraping pipeline.
type ScrapingConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxRetries     int      `yaml:"max_retries"`
	BlockedDomains []string `yaml:"blocked_domains"`
}

// SearchConfig configures the reference search defaults. Per-request query
// parameters override these.
type SearchConfig struct {
	DaysOld       int `yaml:"days_old"`
	MaxReferences int `yaml:"max_references"`
}

// LLMConfig configures the language-model client. The API token is never
// read from the file; it comes from the OPENAI_API_KEY environment
// variable.
type LLMConfig struct {
	Model        string `yaml:"model"`
	SkipCleaning bool   `yaml:"skip_cleaning"`
}

// StorageConfig configures the analysis store.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Scraping: ScrapingConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Search: SearchConfig{
			DaysOld:       7,
			MaxReferences: 3,
		},
		LLM: LLMConfig{
			Model: "",
		},
		Storage: StorageConfig{
			Path: "truthtracer.db",
		},
	}
}
