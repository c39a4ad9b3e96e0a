package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://www.g2.com", cfg.Sources.G2.BaseURL)
	assert.Equal(t, "https://www.capterra.com", cfg.Sources.Capterra.BaseURL)
	assert.Equal(t, "https://www.trustradius.com", cfg.Sources.TrustRadius.BaseURL)

	assert.Equal(t, 10, cfg.Pagination.MaxPages)
	assert.Equal(t, 2, cfg.Pagination.EmptyPageLimit)
	assert.Equal(t, 3, cfg.Pagination.MaxConsecutiveFailures)

	assert.Equal(t, time.Second, cfg.Pacing.MinInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.Jitter)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)

	assert.False(t, cfg.Aggregation.Concurrent)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestSite(t *testing.T) {
	cfg := DefaultConfig()

	site, ok := cfg.Site("Capterra")
	require.True(t, ok)
	assert.Equal(t, cfg.Sources.Capterra.BaseURL, site.BaseURL)

	_, ok = cfg.Site("yelp")
	assert.False(t, ok)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REVIEWSCRAPER_G2_BASE_URL", "http://localhost:9000")
	t.Setenv("REVIEWSCRAPER_MAX_PAGES", "4")
	t.Setenv("REVIEWSCRAPER_MIN_INTERVAL", "250ms")
	t.Setenv("REVIEWSCRAPER_CONCURRENT", "true")
	t.Setenv("REVIEWSCRAPER_OUTPUT_DIR", "/env/output")
	t.Setenv("REVIEWSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "http://localhost:9000", cfg.Sources.G2.BaseURL)
	assert.Equal(t, 4, cfg.Pagination.MaxPages)
	assert.Equal(t, 250*time.Millisecond, cfg.Pacing.MinInterval)
	assert.True(t, cfg.Aggregation.Concurrent)
	assert.Equal(t, "/env/output", cfg.Output.Directory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("REVIEWSCRAPER_MAX_PAGES", "many")
	t.Setenv("REVIEWSCRAPER_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVIEWSCRAPER_MAX_PAGES")
	assert.Contains(t, err.Error(), "REVIEWSCRAPER_TIMEOUT")
	assert.Equal(t, 10, cfg.Pagination.MaxPages)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("layers over defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
sources:
  capterra:
    base_url: http://capterra.test
pagination:
  max_pages: 5
pacing:
  min_interval: 2s
retry:
  max_backoff: 1m30s
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, "http://capterra.test", cfg.Sources.Capterra.BaseURL)
		assert.Equal(t, "https://www.g2.com", cfg.Sources.G2.BaseURL)
		assert.Equal(t, 5, cfg.Pagination.MaxPages)
		assert.Equal(t, 2, cfg.Pagination.EmptyPageLimit)
		assert.Equal(t, 2*time.Second, cfg.Pacing.MinInterval)
		assert.Equal(t, 90*time.Second, cfg.Retry.MaxBackoff)
		assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("pagination: [unclosed"), 0644))

		err := DefaultConfig().LoadFromFile(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("missing explicit file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Sources.G2.BaseURL = "g2.com" },
			wantErr: "g2 base URL",
		},
		{
			name:    "zero max pages",
			mutate:  func(c *Config) { c.Pagination.MaxPages = 0 },
			wantErr: "max pages",
		},
		{
			name:    "jitter factor out of range",
			mutate:  func(c *Config) { c.Retry.JitterFactor = 1.5 },
			wantErr: "jitter factor",
		},
		{
			name:    "unknown output format",
			mutate:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: "output format",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pagination.MaxPages = 0
	cfg.Fetch.UserAgent = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max pages must be positive")
	assert.Contains(t, err.Error(), "user agent is required")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"max-pages":    7,
		"concurrent":   true,
		"format":       "yaml",
		"verbose":      true,
		"metrics-file": "/tmp/metrics.prom",
	})

	assert.Equal(t, 7, cfg.Pagination.MaxPages)
	assert.True(t, cfg.Aggregation.Concurrent)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/metrics.prom", cfg.Metrics.TextFile)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Pagination.MaxPages = 8
	cfg.Sources.TrustRadius.PageSize = 50
	require.NoError(t, cfg.Save(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))
	assert.Equal(t, 8, loaded.Pagination.MaxPages)
	assert.Equal(t, 50, loaded.Sources.TrustRadius.PageSize)
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
pagination:
  max_pages: 5
output:
  directory: /file/output
  format: yaml
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		t.Setenv("REVIEWSCRAPER_OUTPUT_DIR", "/env/output")
		t.Setenv("REVIEWSCRAPER_MAX_PAGES", "6")

		cfg, err := Load(configPath, map[string]interface{}{"max-pages": 9})
		require.NoError(t, err)

		assert.Equal(t, 9, cfg.Pagination.MaxPages)          // flag
		assert.Equal(t, "/env/output", cfg.Output.Directory) // env
		assert.Equal(t, "yaml", cfg.Output.Format)           // file
		assert.Equal(t, 2, cfg.Pagination.EmptyPageLimit)    // default
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("REVIEWSCRAPER_OUTPUT_FORMAT", "csv")

		cfg, err := Load("", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
		assert.Nil(t, cfg)
	})

	t.Run("loads .env file", func(t *testing.T) {
		tempDir := t.TempDir()
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)
		require.NoError(t, os.Chdir(tempDir))
		t.Setenv("HOME", tempDir)

		require.NoError(t, os.WriteFile(".env", []byte("REVIEWSCRAPER_LOG_LEVEL=warn\n"), 0644))
		t.Setenv("REVIEWSCRAPER_LOG_LEVEL", "")
		os.Unsetenv("REVIEWSCRAPER_LOG_LEVEL")

		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})
}

func TestDurationParsing(t *testing.T) {
	yamlContent := `
pacing:
  min_interval: 750ms
  jitter: 1s
fetch:
  timeout: 45s
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(yamlContent), &cfg))

	assert.Equal(t, 750*time.Millisecond, cfg.Pacing.MinInterval)
	assert.Equal(t, time.Second, cfg.Pacing.Jitter)
	assert.Equal(t, 45*time.Second, cfg.Fetch.Timeout)
}
