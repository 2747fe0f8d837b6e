package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"GITHUB_USER", "GITHUB_TOKEN", "PORT", "CACHE_DIR", "REFRESH_SCHEDULE", "UPSTREAM_TIMEOUT", "REFRESH_CONCURRENCY", "API_PREFIX", "CORS_ORIGIN"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, ":3001", cfg.Addr())
	assert.Equal(t, "data", cfg.CacheDir)
	assert.Equal(t, "0 * * * *", cfg.RefreshSchedule)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 1, cfg.RefreshConcurrency)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "http://localhost:5173", cfg.CORSOrigin)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GITHUB_USER", "octo")
	t.Setenv("GITHUB_GRAPHQL", "true")
	t.Setenv("REFRESH_CONCURRENCY", "4")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")

	cfg := Load()
	assert.Equal(t, "octo", cfg.GitHubUser)
	assert.True(t, cfg.GitHubGraphQL)
	assert.Equal(t, 4, cfg.RefreshConcurrency)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{GitHubUser: "octo", RefreshSchedule: "0 * * * *", RefreshConcurrency: 1}
	}

	testCases := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing user fails fast", mutate: func(c *Config) { c.GitHubUser = "" }, expectError: true},
		{name: "bad schedule", mutate: func(c *Config) { c.RefreshSchedule = "hourly please" }, expectError: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.RefreshConcurrency = 0 }, expectError: true},
		{name: "graphql without token", mutate: func(c *Config) { c.GitHubGraphQL = true }, expectError: true},
		{name: "graphql with token", mutate: func(c *Config) { c.GitHubGraphQL = true; c.GitHubToken = "t" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			if tc.expectError {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REPO_CACHE_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("REPO_CACHE_TEST_VALUE", "")
	os.Unsetenv("REPO_CACHE_TEST_VALUE")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from-file", os.Getenv("REPO_CACHE_TEST_VALUE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
