package config

import (
	"fmt"
	"net/url"

	"github.com/FranksOps/reel/internal/fingerprint"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if cfg.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must be >= 0, got %d", cfg.Fetch.MaxRedirects)
	}
	if cfg.Fetch.Jitter < 0 || cfg.Fetch.Jitter > 1 {
		return fmt.Errorf("fetch.jitter must be within [0, 1], got %g", cfg.Fetch.Jitter)
	}
	if _, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint); err != nil {
		return fmt.Errorf("fetch.fingerprint: %w", err)
	}

	if cfg.Apify.ResultsPerPage < 1 {
		return fmt.Errorf("apify.results_per_page must be >= 1, got %d", cfg.Apify.ResultsPerPage)
	}
	if cfg.Apify.MaxPagesPerQuery < 1 {
		return fmt.Errorf("apify.max_pages_per_query must be >= 1, got %d", cfg.Apify.MaxPagesPerQuery)
	}
	if cfg.Apify.Timeout <= 0 {
		return fmt.Errorf("apify.timeout must be > 0")
	}

	validStorageTypes := map[string]bool{
		"csv": true, "json": true, "sqlite": true, "postgres": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, json, sqlite, postgres)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "postgres" && cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for postgres")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be 0-65535, got %d", cfg.Metrics.Port)
	}

	return nil
}

// ValidateApify checks the settings needed to call the search API. The
// key and endpoint are only required when queries go to the network.
func ValidateApify(cfg *Config) error {
	if cfg.Apify.APIKey == "" {
		return fmt.Errorf("apify.api_key is not set (set %s or REEL_APIFY_API_KEY)", EnvAPIKey)
	}
	if cfg.Apify.Endpoint == "" {
		return fmt.Errorf("apify.endpoint is not set (set %s or REEL_APIFY_ENDPOINT)", EnvEndpoint)
	}
	u, err := url.Parse(cfg.Apify.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid apify.endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("apify.endpoint must be http or https, got %q", u.Scheme)
	}
	return nil
}
