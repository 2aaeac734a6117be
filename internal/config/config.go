package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for reel.
type Config struct {
	// DataDir holds the film lists, archived SERP responses, records and
	// the failed-queries log.
	DataDir string        `mapstructure:"data_dir" yaml:"data_dir"`
	Fetch   FetchConfig   `mapstructure:"fetch"    yaml:"fetch"`
	Apify   ApifyConfig   `mapstructure:"apify"    yaml:"apify"`
	Storage StorageConfig `mapstructure:"storage"  yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging"  yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"  yaml:"metrics"`
}

// FetchConfig controls Wikipedia page fetches.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	UserAgent    string        `mapstructure:"user_agent"    yaml:"user_agent"`
	Fingerprint  string        `mapstructure:"fingerprint"   yaml:"fingerprint"`
	// RPS <= 0 disables the politeness limiter.
	RPS    float64 `mapstructure:"rps"    yaml:"rps"`
	Jitter float64 `mapstructure:"jitter" yaml:"jitter"`
}

// ApifyConfig controls the Google Search actor task.
type ApifyConfig struct {
	Endpoint         string        `mapstructure:"endpoint"            yaml:"endpoint"`
	APIKey           string        `mapstructure:"api_key"             yaml:"api_key"`
	ResultsPerPage   int           `mapstructure:"results_per_page"    yaml:"results_per_page"`
	MaxPagesPerQuery int           `mapstructure:"max_pages_per_query" yaml:"max_pages_per_query"`
	Timeout          time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	RPS              float64       `mapstructure:"rps"                 yaml:"rps"`
	// Archive keeps every raw API response under <data_dir>/serp_results.
	Archive bool `mapstructure:"archive" yaml:"archive"`
}

// StorageConfig selects where MovieRecords go.
type StorageConfig struct {
	// Type is csv, json, sqlite or postgres.
	Type string `mapstructure:"type" yaml:"type"`
	// Path overrides the per-year file for csv and json, and is the
	// database file for sqlite.
	Path string `mapstructure:"path" yaml:"path"`
	DSN  string `mapstructure:"dsn"  yaml:"dsn"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			MaxRedirects: 10,
			UserAgent:    "reel/1.0 (https://github.com/FranksOps/reel)",
			Fingerprint:  "go",
			RPS:          1,
			Jitter:       0.2,
		},
		Apify: ApifyConfig{
			ResultsPerPage:   10,
			MaxPagesPerQuery: 1,
			// run-sync requests are held open until the actor finishes,
			// which Apify caps at 300s.
			Timeout: 300 * time.Second,
			Archive: true,
		},
		Storage: StorageConfig{
			Type: "csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SERPDir holds archived API responses, one directory per year.
func (c *Config) SERPDir() string {
	return filepath.Join(c.DataDir, "serp_results")
}

// FailedPath is the failed-queries log.
func (c *Config) FailedPath() string {
	return filepath.Join(c.DataDir, "failed_queries", "failed_queries.csv")
}

// RecordsPath is the file backend location for year's records.
func (c *Config) RecordsPath(year int) string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	switch c.Storage.Type {
	case "json":
		return filepath.Join(c.DataDir, "structured_movie_data", fmt.Sprintf("movie_data_%d.jsonl", year))
	case "sqlite":
		return filepath.Join(c.DataDir, "reel.db")
	default:
		return filepath.Join(c.DataDir, "structured_movie_data", fmt.Sprintf("movie_data_%d.csv", year))
	}
}
