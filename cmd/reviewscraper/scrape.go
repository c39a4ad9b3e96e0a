package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reviewscraper/pkg/aggregator"
	"reviewscraper/pkg/config"
	"reviewscraper/pkg/logger"
	"reviewscraper/pkg/models"
	"reviewscraper/pkg/sink"
	"reviewscraper/pkg/ui"
)

var (
	// Scrape command flags
	companyName    string
	startDate      string
	endDate        string
	sourceSelector string
	outputPath     string
	maxPages       int
	concurrentRun  bool
	maxParallel    int
	minInterval    time.Duration
	runTimeout     time.Duration
	metricsFile    string
	outputFormat   string
	notify         bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect reviews for a product inside a date window",
	Long: `Collect reviews for a product from one or more review platforms.

Only reviews dated inside the inclusive window [--start, --end] are kept.
Platforms are selected with --source: g2, capterra, trustradius, all, or a
comma separated list. A platform that fails does not fail the run; its
status is reported in the summary and in the output document.`,
	Example: `  # Collect a year of G2 reviews
  reviewscraper scrape --company "Slack" --start 2024-01-01 --end 2024-12-31 --source g2

  # Collect from every platform concurrently
  reviewscraper scrape -c "Notion" -s 2024-06-01 -e 2024-12-01 --source all --concurrent

  # Write to a specific file, or stream YAML to stdout
  reviewscraper scrape -c "Asana" -s 2024-01-01 -e 2024-06-30 --source capterra -o asana_reviews.json
  reviewscraper scrape -c "Asana" -s 2024-01-01 -e 2024-06-30 --source capterra -o - --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runScrape(cmd); err != nil {
			ui.PrintError("SCRAPE FAILED", err.Error())
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&companyName, "company", "c", "", "product or company name to collect reviews for")
	scrapeCmd.Flags().StringVarP(&startDate, "start", "s", "", "first day of the window (YYYY-MM-DD)")
	scrapeCmd.Flags().StringVarP(&endDate, "end", "e", "", "last day of the window (YYYY-MM-DD)")
	scrapeCmd.Flags().StringVar(&sourceSelector, "source", "", "platforms to query: g2, capterra, trustradius, all, or a comma separated list")
	scrapeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file, or - for stdout (default: auto-generated name)")
	scrapeCmd.Flags().IntVar(&maxPages, "max-pages", 10, "maximum pages fetched per platform")
	scrapeCmd.Flags().BoolVar(&concurrentRun, "concurrent", false, "query platforms concurrently")
	scrapeCmd.Flags().IntVar(&maxParallel, "max-parallel", 3, "maximum platforms queried at once with --concurrent")
	scrapeCmd.Flags().DurationVar(&minInterval, "min-interval", time.Second, "minimum delay between requests to one platform")
	scrapeCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the run after this long (0 means no limit)")
	scrapeCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	scrapeCmd.Flags().StringVar(&outputFormat, "format", "", "output format: json or yaml (default: from file extension)")
	scrapeCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")

	for _, name := range []string{"company", "start", "end", "source"} {
		_ = scrapeCmd.MarkFlagRequired(name)
	}
}

// flagOverrides collects only the flags the user set, keyed the way
// config.MergeCommandLineFlags expects.
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if changed("concurrent") {
		flags["concurrent"] = concurrentRun
	}
	if changed("max-parallel") {
		flags["max-parallel"] = maxParallel
	}
	if changed("min-interval") {
		flags["min-interval"] = minInterval
	}
	if changed("format") {
		flags["format"] = outputFormat
	}
	if changed("metrics-file") {
		flags["metrics-file"] = metricsFile
	}
	if changed("log-level") {
		flags["log-level"] = logLevel
	}
	if verbose {
		flags["verbose"] = true
	}
	return flags
}

func runScrape(cmd *cobra.Command) error {
	company := strings.TrimSpace(companyName)

	// Everything the user typed is checked before any request goes out
	window, err := models.ParseDateWindow(startDate, endDate)
	if err != nil {
		return err
	}
	selected, err := models.ParseSelector(sourceSelector)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, flagOverrides(cmd))
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Review Scraper starting")

	ui.PrintInfo("Target Product", company)
	ui.PrintInfo("Date Window", window.String())
	ui.PrintInfo("Sources", models.SelectorString(selected))

	if window.EndsAfter(time.Now()) {
		log.WithField("end", window.End().Format(models.DateLayout)).Warn("end date is in the future")
		ui.PrintWarning("End date is in the future", "reviews can only exist up to today")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	metrics := aggregator.NewMetricsObserver()
	observer := aggregator.MultiObserver{
		aggregator.NewLogObserver(log),
		ui.NewConsoleObserver(ui.Output, cfg.Pagination.MaxPages, cfg.Logging.Level == "debug"),
		metrics,
	}

	agg, err := aggregator.New(cfg, aggregator.WithLogger(log), aggregator.WithObserver(observer))
	if err != nil {
		return fmt.Errorf("failed to initialize aggregator: %w", err)
	}

	ui.PrintHighlight("[COLLECTING REVIEWS]")
	res, err := agg.Run(ctx, company, window, selected)
	if err != nil {
		return err
	}

	out, dest := resolveSink(cfg, res)
	// Delivery gets its own context so an interrupted run still keeps what it gathered
	if err := sink.Deliver(context.WithoutCancel(ctx), out, res, log); err != nil {
		return err
	}

	if cfg.Metrics.TextFile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextFile); err != nil {
			log.WithError(err).WithField("path", cfg.Metrics.TextFile).Warn("failed to write metrics file")
		}
	}

	ui.RenderSummary(ui.Output, res.Metadata)
	finishRun(res, dest)

	return runError(res.Metadata)
}

// resolveSink picks stdout for "-", the explicit path when given, or a
// generated name inside the configured output directory.
func resolveSink(cfg *config.Config, res *aggregator.Result) (sink.Sink, string) {
	if outputPath == "-" {
		return &sink.WriterSink{W: os.Stdout, Format: cfg.Output.Format, Pretty: cfg.Output.Pretty}, "stdout"
	}

	path := outputPath
	if path == "" {
		name := sink.DefaultFilename(res.Metadata.Company, res.Metadata.SourceSelector, cfg.Output.Format, res.Metadata.ScrapedAt)
		path = filepath.Join(cfg.Output.Directory, name)
	}
	return sink.NewFileSink(path, cfg.Output.Format, cfg.Output.Pretty), path
}

func finishRun(res *aggregator.Result, dest string) {
	meta := res.Metadata
	summary := fmt.Sprintf("Scraped %d reviews for %s", meta.TotalReviews, meta.Company)

	switch {
	case meta.Cancelled:
		ui.PrintWarning("RUN INTERRUPTED", fmt.Sprintf("%d reviews kept", meta.TotalReviews))
	case len(meta.Failed()) > 0:
		ui.PrintWarning("PARTIAL RESULT", fmt.Sprintf("failed sources: %s", models.SelectorString(meta.Failed())))
	default:
		ui.PrintSuccess("SUCCESS! " + summary)
	}
	ui.PrintInfo("Output saved to", dest)

	if notify {
		ui.NewNotifier().NotifyRun(meta)
	}
}

// runError turns the run outcome into the process result. A run fails when
// it was interrupted or when no selected source produced anything.
func runError(meta models.RunMetadata) error {
	if meta.Cancelled {
		return fmt.Errorf("run interrupted after %d reviews", meta.TotalReviews)
	}
	if len(meta.Sources) > 0 && len(meta.Failed()) == len(meta.Sources) {
		return fmt.Errorf("all sources failed: %s", models.SelectorString(meta.Failed()))
	}
	return nil
}
