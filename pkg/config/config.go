package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the scraper reads.
const EnvPrefix = "REVIEWSCRAPER_"

// Config holds all configuration options for the review scraper
type Config struct {
	// Per-platform upstream settings
	Sources SourcesConfig `yaml:"sources" json:"sources"`

	// Page walking limits
	Pagination PaginationConfig `yaml:"pagination" json:"pagination"`

	// Politeness delay between page fetches
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Backoff for transient fetch failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// HTTP client settings
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// How sources are scheduled within a run
	Aggregation AggregationConfig `yaml:"aggregation" json:"aggregation"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// SiteConfig describes one review platform upstream
type SiteConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url"`
	PageSize int    `yaml:"page_size" json:"page_size"`
}

// SourcesConfig holds the upstream settings for every supported platform
type SourcesConfig struct {
	G2          SiteConfig `yaml:"g2" json:"g2"`
	Capterra    SiteConfig `yaml:"capterra" json:"capterra"`
	TrustRadius SiteConfig `yaml:"trustradius" json:"trustradius"`
}

// PaginationConfig bounds how far a single source is walked
type PaginationConfig struct {
	MaxPages               int `yaml:"max_pages" json:"max_pages"`
	EmptyPageLimit         int `yaml:"empty_page_limit" json:"empty_page_limit"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
}

// PacingConfig holds the minimum spacing between consecutive fetches of one source
type PacingConfig struct {
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
	Jitter      time.Duration `yaml:"jitter" json:"jitter"`
}

// RetryConfig holds retry configuration for transient failures
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor   float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// FetchConfig holds HTTP client configuration
type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language" json:"accept_language"`
}

// AggregationConfig controls scheduling of source chains
type AggregationConfig struct {
	Concurrent  bool `yaml:"concurrent" json:"concurrent"`
	MaxParallel int  `yaml:"max_parallel" json:"max_parallel"`
}

// OutputConfig holds output artifact configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	Format    string `yaml:"format" json:"format"`
	Pretty    bool   `yaml:"pretty" json:"pretty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	// Format is one of auto, console or json. Auto picks console on a terminal.
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	// TextFile, when set, receives run metrics in Prometheus text format
	TextFile string `yaml:"textfile" json:"textfile"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			G2:          SiteConfig{BaseURL: "https://www.g2.com"},
			Capterra:    SiteConfig{BaseURL: "https://www.capterra.com"},
			TrustRadius: SiteConfig{BaseURL: "https://www.trustradius.com", PageSize: 25},
		},
		Pagination: PaginationConfig{
			MaxPages:               10,
			EmptyPageLimit:         2,
			MaxConsecutiveFailures: 3,
		},
		Pacing: PacingConfig{
			MinInterval: 1 * time.Second,
			Jitter:      500 * time.Millisecond,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			JitterFactor:   0.2,
		},
		Fetch: FetchConfig{
			Timeout:        30 * time.Second,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9",
		},
		Aggregation: AggregationConfig{
			Concurrent:  false,
			MaxParallel: 3,
		},
		Output: OutputConfig{
			Directory: ".",
			Format:    "json",
			Pretty:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Site returns the upstream settings for a platform selector (g2, capterra, trustradius).
func (c *Config) Site(name string) (SiteConfig, bool) {
	switch strings.ToLower(name) {
	case "g2":
		return c.Sources.G2, true
	case "capterra":
		return c.Sources.Capterra, true
	case "trustradius":
		return c.Sources.TrustRadius, true
	default:
		return SiteConfig{}, false
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("G2_BASE_URL", &c.Sources.G2.BaseURL)
	str("CAPTERRA_BASE_URL", &c.Sources.Capterra.BaseURL)
	str("TRUSTRADIUS_BASE_URL", &c.Sources.TrustRadius.BaseURL)
	integer("MAX_PAGES", &c.Pagination.MaxPages)
	duration("MIN_INTERVAL", &c.Pacing.MinInterval)
	duration("JITTER", &c.Pacing.Jitter)
	integer("RETRY_ATTEMPTS", &c.Retry.MaxAttempts)
	duration("TIMEOUT", &c.Fetch.Timeout)
	str("USER_AGENT", &c.Fetch.UserAgent)
	boolean("CONCURRENT", &c.Aggregation.Concurrent)
	integer("MAX_PARALLEL", &c.Aggregation.MaxParallel)
	str("OUTPUT_DIR", &c.Output.Directory)
	str("OUTPUT_FORMAT", &c.Output.Format)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	str("LOG_FORMAT", &c.Logging.Format)
	str("METRICS_FILE", &c.Metrics.TextFile)

	return errors.Join(errs...)
}

// LoadFromFile layers a YAML file over the current values. Fields left empty
// in the file keep their current value.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := mergo.Merge(c, fromFile, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".reviewscraper.yaml",
		".reviewscraper.yml",
		filepath.Join(home, ".config", "reviewscraper", "config.yaml"),
		filepath.Join(home, ".config", "reviewscraper", "config.yml"),
		filepath.Join(home, ".reviewscraper.yaml"),
		filepath.Join(home, ".reviewscraper.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	for name, site := range map[string]SiteConfig{
		"g2":          c.Sources.G2,
		"capterra":    c.Sources.Capterra,
		"trustradius": c.Sources.TrustRadius,
	} {
		u, err := url.Parse(site.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s base URL must be an absolute URL", name))
		}
		if site.PageSize < 0 {
			errs = append(errs, fmt.Errorf("%s page size cannot be negative", name))
		}
	}

	if c.Pagination.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Pagination.EmptyPageLimit <= 0 {
		errs = append(errs, errors.New("empty page limit must be positive"))
	}
	if c.Pagination.MaxConsecutiveFailures <= 0 {
		errs = append(errs, errors.New("max consecutive failures must be positive"))
	}

	if c.Pacing.MinInterval < 0 {
		errs = append(errs, errors.New("pacing interval cannot be negative"))
	}
	if c.Pacing.Jitter < 0 {
		errs = append(errs, errors.New("pacing jitter cannot be negative"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be positive"))
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		errs = append(errs, errors.New("retry backoff cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}

	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}

	if c.Aggregation.MaxParallel <= 0 {
		errs = append(errs, errors.New("max parallel sources must be positive"))
	}

	switch strings.ToLower(c.Output.Format) {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("invalid output format %q", c.Output.Format))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Pagination.MaxPages = maxPages
	}
	if concurrent, ok := flags["concurrent"].(bool); ok {
		c.Aggregation.Concurrent = concurrent
	}
	if parallel, ok := flags["max-parallel"].(int); ok && parallel > 0 {
		c.Aggregation.MaxParallel = parallel
	}
	if interval, ok := flags["min-interval"].(time.Duration); ok && interval >= 0 {
		c.Pacing.MinInterval = interval
	}
	if format, ok := flags["format"].(string); ok && format != "" {
		c.Output.Format = format
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if verbose, ok := flags["verbose"].(bool); ok && verbose {
		c.Logging.Level = "debug"
	}
	if metricsFile, ok := flags["metrics-file"].(string); ok && metricsFile != "" {
		c.Metrics.TextFile = metricsFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".reviewscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
