package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("PORT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Cache.MaxLocalEntries)
	assert.Equal(t, 30*time.Minute, cfg.Cache.CompareTTL)
	assert.Equal(t, time.Hour, cfg.Cache.SearchTTL)
	assert.Equal(t, time.Hour, cfg.Cache.ProductTTL)
	assert.Equal(t, 2*time.Second, cfg.Scraping.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Scraping.Jitter)
	assert.Equal(t, 3, cfg.Scraping.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.Cache.RecoveryInterval)
	assert.Equal(t, 10*time.Second, cfg.Scraping.RequestTimeout)
	assert.Contains(t, cfg.Sources, "blinkit")
	assert.Empty(t, cfg.Cache.RedisURL)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	t.Setenv("TEST_BLINKIT_URL", "http://127.0.0.1:1234")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "8088")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "7000"
cache:
  max_local_entries: 50
  compare_ttl: 10m
scraping:
  base_delay: 100ms
  max_retries: 5
sources:
  blinkit:
    enabled: true
    base_url: ${TEST_BLINKIT_URL}
warmer:
  queries: [milk, bread]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Server.Port, "environment wins over file")
	assert.Equal(t, "redis://cache:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 50, cfg.Cache.MaxLocalEntries)
	assert.Equal(t, 10*time.Minute, cfg.Cache.CompareTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Scraping.BaseDelay)
	assert.Equal(t, 5, cfg.Scraping.MaxRetries)
	assert.Equal(t, "http://127.0.0.1:1234", cfg.Sources["blinkit"].BaseURL)
	assert.NotContains(t, cfg.Sources, "lidl")
	assert.Equal(t, []string{"milk", "bread"}, cfg.Warmer.Queries)
}

func TestLoad_ExplicitZeroDisablesRetriesAndDelays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
scraping:
  base_delay: 0s
  jitter: 0s
  max_retries: 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Zero(t, cfg.Scraping.BaseDelay)
	assert.Zero(t, cfg.Scraping.Jitter)
	assert.Zero(t, cfg.Scraping.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Scraping.RequestTimeout, "unset fields still get defaults")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}
