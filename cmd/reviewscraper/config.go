package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"reviewscraper/pkg/config"
	"reviewscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Review Scraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (REVIEWSCRAPER_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.reviewscraper.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after layering defaults, the
configuration file and environment variables.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Upstream base URLs
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# Review Scraper Configuration File
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with REVIEWSCRAPER_
# For example: REVIEWSCRAPER_MAX_PAGES, REVIEWSCRAPER_OUTPUT_DIR

# Review platform upstreams
sources:
  g2:
    base_url: "https://www.g2.com"
  capterra:
    base_url: "https://www.capterra.com"
  trustradius:
    base_url: "https://www.trustradius.com"
    # Reviews requested per page
    page_size: 25

# How far each platform is walked
pagination:
  # Hard cap on pages per platform
  max_pages: 10

  # Stop after this many pages in a row without records
  empty_page_limit: 2

  # Stop a platform after this many skipped pages in a row
  max_consecutive_failures: 3

# Politeness between requests to the same platform
pacing:
  min_interval: 1s
  # Random extra delay added on top of min_interval
  jitter: 500ms

# Retry configuration for transient failures (429, 5xx, timeouts)
retry:
  max_attempts: 3
  initial_backoff: 1s
  max_backoff: 30s
  multiplier: 2.0
  # Range: 0-1
  jitter_factor: 0.2

# HTTP client configuration
fetch:
  timeout: 30s
  user_agent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
  accept_language: "en-US,en;q=0.9"

# Scheduling of platforms within one run
aggregation:
  concurrent: false
  max_parallel: 3

# Output configuration
output:
  # Directory for auto-named output files
  directory: "."
  # Format: json, yaml
  format: "json"
  pretty: true

# Logging configuration
logging:
  # Level: debug, info, warn, error
  level: "info"
  # Log file path (optional, logs go to stderr when empty)
  file: ""
  # Format: auto, console, json
  format: "auto"

# Metrics export
metrics:
  # Prometheus text file written at the end of each run (optional)
  textfile: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".reviewscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Fprintln(ui.Output, "\nTo overwrite, first remove the existing file:")
		fmt.Fprintf(ui.Output, "  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Adjust pacing and limits in the configuration file")
	fmt.Fprintln(ui.Output, "2. Run 'reviewscraper config validate' to check the configuration")
	fmt.Fprintln(ui.Output, "3. Start collecting with 'reviewscraper scrape --company <name> --start <date> --end <date> --source all'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))

	fmt.Fprintln(ui.Output, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output, "1. Command line flags")
	fmt.Fprintln(ui.Output, "2. Environment variables (REVIEWSCRAPER_*)")
	if configFile != "" {
		fmt.Fprintf(ui.Output, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(ui.Output, "3. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(ui.Output, "4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = findConfigFile()
		if path == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	problems, warnings := checkEnvironment(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Output, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Output)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Output: %s (%s)\n", cfg.Output.Directory, cfg.Output.Format)
	fmt.Fprintf(ui.Output, "  Max pages per source: %d\n", cfg.Pagination.MaxPages)
	fmt.Fprintf(ui.Output, "  Pacing: %s + up to %s jitter\n", cfg.Pacing.MinInterval, cfg.Pacing.Jitter)
	fmt.Fprintf(ui.Output, "  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Fprintf(ui.Output, "  Concurrent: %t (max %d)\n", cfg.Aggregation.Concurrent, cfg.Aggregation.MaxParallel)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
}

// checkEnvironment looks for problems Validate cannot see, such as
// directories that cannot be created.
func checkEnvironment(cfg *config.Config) (problems, warnings []string) {
	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	if cfg.Metrics.TextFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Metrics.TextFile), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create metrics directory: %v", err))
		}
	}

	if cfg.Pacing.MinInterval == 0 && cfg.Pacing.Jitter == 0 {
		warnings = append(warnings, "pacing is disabled; upstreams may start rejecting requests")
	}
	if cfg.Aggregation.Concurrent && cfg.Aggregation.MaxParallel == 1 {
		warnings = append(warnings, "concurrent is enabled but max_parallel is 1")
	}
	return problems, warnings
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	for _, path := range []string{
		".reviewscraper.yaml",
		".reviewscraper.yml",
		filepath.Join(home, ".config", "reviewscraper", "config.yaml"),
		filepath.Join(home, ".reviewscraper.yaml"),
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
