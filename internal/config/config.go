// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Upstream
	GitHubUser      string
	GitHubToken     string // optional, raises the rate limit
	GitHubGraphQL   bool   // fetch language stats through GraphQL, needs GitHubToken
	UpstreamTimeout time.Duration

	// Refresh
	CacheDir           string
	RefreshSchedule    string
	RefreshConcurrency int

	// Server
	Port       string
	APIPrefix  string
	CORSOrigin string

	// Client
	APIBaseURL     string
	ClientCacheDir string
}

// LoadDotEnv reads variables from .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		GitHubUser:      os.Getenv("GITHUB_USER"),
		GitHubToken:     os.Getenv("GITHUB_TOKEN"),
		GitHubGraphQL:   envOrDefaultBool("GITHUB_GRAPHQL", false),
		UpstreamTimeout: envOrDefaultDuration("UPSTREAM_TIMEOUT", 15*time.Second),

		CacheDir:           envOrDefault("CACHE_DIR", "data"),
		RefreshSchedule:    envOrDefault("REFRESH_SCHEDULE", "0 * * * *"),
		RefreshConcurrency: envOrDefaultInt("REFRESH_CONCURRENCY", 1),

		Port:       envOrDefault("PORT", "3001"),
		APIPrefix:  envOrDefault("API_PREFIX", "/api"),
		CORSOrigin: envOrDefault("CORS_ORIGIN", "http://localhost:5173"),

		APIBaseURL:     envOrDefault("API_BASE_URL", "http://localhost:3001/api"),
		ClientCacheDir: envOrDefault("CLIENT_CACHE_DIR", defaultClientCacheDir()),
	}
}

// Validate checks the settings the refresh side cannot run without.
func (c *Config) Validate() error {
	if c.GitHubUser == "" {
		return errors.New("GITHUB_USER environment variable is not set")
	}
	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid REFRESH_SCHEDULE %q: %w", c.RefreshSchedule, err)
	}
	if c.RefreshConcurrency < 1 {
		return fmt.Errorf("REFRESH_CONCURRENCY must be at least 1, got %d", c.RefreshConcurrency)
	}
	if c.GitHubGraphQL && c.GitHubToken == "" {
		return errors.New("GITHUB_GRAPHQL requires GITHUB_TOKEN")
	}
	return nil
}

// Addr returns the listen address for the server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func defaultClientCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "repo-cache")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}
