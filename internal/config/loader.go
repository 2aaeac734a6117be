package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Legacy environment names for the API credentials. They are read
// alongside REEL_APIFY_API_KEY and REEL_APIFY_ENDPOINT.
const (
	EnvAPIKey   = "GOOGLE_SCRAPER_APIFY_API_KEY"
	EnvEndpoint = "GOOGLE_SCRAPER_APIFY_API_ENDPOINT"
)

// envAliases maps config keys to the extra environment names bound to them.
var envAliases = map[string]string{
	"apify.api_key":  EnvAPIKey,
	"apify.endpoint": EnvEndpoint,
}

// Load reads configuration from file, a .env file and the environment.
// Priority (highest to lowest): env vars > .env > config file > defaults.
// CLI flags are applied by the caller on top of the result.
func Load(configPath string) (*Config, error) {
	return load(configPath, ".env")
}

func load(configPath, dotenvPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("REEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range envAliases {
		if err := v.BindEnv(append([]string{key}, envNames(key)...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("reel")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyDotenv(v, dotenvPath); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// applyDotenv loads KEY=VALUE pairs from path. A variable already present
// in the process environment wins over the file. A missing file is not an
// error.
func applyDotenv(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		names := envNames(key)
		if inEnviron(names) {
			continue
		}
		for _, name := range names {
			if env.IsSet(name) {
				v.Set(key, env.GetString(name))
				break
			}
		}
	}
	return nil
}

func inEnviron(names []string) bool {
	for _, name := range names {
		if _, ok := os.LookupEnv(name); ok {
			return true
		}
	}
	return false
}

func envNames(key string) []string {
	names := []string{"REEL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	if alias, ok := envAliases[key]; ok {
		names = append(names, alias)
	}
	return names
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)

	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("fetch.max_redirects", cfg.Fetch.MaxRedirects)
	v.SetDefault("fetch.user_agent", cfg.Fetch.UserAgent)
	v.SetDefault("fetch.fingerprint", cfg.Fetch.Fingerprint)
	v.SetDefault("fetch.rps", cfg.Fetch.RPS)
	v.SetDefault("fetch.jitter", cfg.Fetch.Jitter)

	v.SetDefault("apify.endpoint", cfg.Apify.Endpoint)
	v.SetDefault("apify.api_key", cfg.Apify.APIKey)
	v.SetDefault("apify.results_per_page", cfg.Apify.ResultsPerPage)
	v.SetDefault("apify.max_pages_per_query", cfg.Apify.MaxPagesPerQuery)
	v.SetDefault("apify.timeout", cfg.Apify.Timeout)
	v.SetDefault("apify.rps", cfg.Apify.RPS)
	v.SetDefault("apify.archive", cfg.Apify.Archive)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.port", cfg.Metrics.Port)
}
