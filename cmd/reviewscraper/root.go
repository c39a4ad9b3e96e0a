package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"reviewscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reviewscraper",
	Short: "Collect product reviews from G2, Capterra and TrustRadius",
	Long: `Review Scraper collects customer reviews for a product from several review
platforms, keeps the ones written inside a date window and writes them as a
single JSON or YAML document.

Features:
  - G2, Capterra and TrustRadius adapters behind one extraction contract
  - Polite per-source pacing with jitter
  - Automatic retry with exponential backoff for transient failures
  - Sequential or concurrent source scheduling
  - Partial results when a platform fails
  - Per-source run summary and optional Prometheus metrics`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(!noColor && term.IsTerminal(int(os.Stdout.Fd())))

		// Streaming the document to stdout keeps decorations on stderr
		if cmd.Name() == "scrape" && outputPath == "-" {
			ui.Output = os.Stderr
		}

		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.reviewscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.SetVersionTemplate(versionText("{{.Version}}"))

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func versionText(v string) string {
	return `Review Scraper ` + v + `
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), versionText(rootCmd.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
