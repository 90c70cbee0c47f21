package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30000, cfg.Timeout)
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.Equal(t, 10, cfg.MaxRedirects)
	assert.True(t, cfg.IsDefault())
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".reqspec.yaml", `
base_url: https://httpbin.org
timeout: 5000
validate_ssl: false
headers:
  Accept: application/json
variables:
  user_id: adk129
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://httpbin.org", cfg.BaseURL)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.False(t, cfg.GetValidateSSL())
	assert.True(t, cfg.GetFollowRedirects())
	assert.Equal(t, 10, cfg.MaxRedirects)
	assert.Equal(t, "application/json", cfg.Headers["accept"])
	assert.Equal(t, "adk129", cfg.Variables["user_id"])
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.IsDefault())
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "reqspec.config.json", `{"base_url": "http://localhost:8080", "rate_limit": 5}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 5.0, cfg.RateLimit)
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".reqspec.json", `{"proxy": "http://proxy.local:3128"}`)

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.local:3128", cfg.Proxy)
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".reqspec.yaml", "base_url: https://httpbin.org\ntimeout: 5000\n")

	t.Setenv("REQSPEC_TIMEOUT", "1500")
	t.Setenv("REQSPEC_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://httpbin.org", cfg.BaseURL)
	assert.Equal(t, 1500, cfg.Timeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_InvalidBaseURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".reqspec.yaml", "base_url: not a url\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBaseURL))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"Accept": "application/json"}

	merged := base.Merge(&Config{
		Timeout:     1000,
		ValidateSSL: boolPtr(false),
		Headers:     map[string]string{"User-Agent": "reqspec"},
	})

	assert.Equal(t, 1000, merged.Timeout)
	assert.False(t, merged.GetValidateSSL())
	assert.True(t, merged.GetFollowRedirects())
	assert.Equal(t, map[string]string{
		"Accept":     "application/json",
		"User-Agent": "reqspec",
	}, merged.Headers)

	// base is left untouched
	assert.Len(t, base.Headers, 1)
	assert.Equal(t, 30000, base.Timeout)
}

func TestMerge_Nil(t *testing.T) {
	base := DefaultConfig()
	assert.Same(t, base, base.Merge(nil))
}
