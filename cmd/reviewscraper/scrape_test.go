package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewscraper/internal/fakeupstream"
	"reviewscraper/pkg/aggregator"
	"reviewscraper/pkg/config"
	"reviewscraper/pkg/models"
	"reviewscraper/pkg/sink"
	"reviewscraper/pkg/ui"
)

// quietUI sends decorations to io.Discard for the duration of a test
func quietUI(t *testing.T) {
	t.Helper()
	prev := ui.Output
	ui.Output = io.Discard
	ui.SetColor(false)
	t.Cleanup(func() { ui.Output = prev })
}

// scrapeArgs sets the scrape flag variables and restores them afterwards
func scrapeArgs(t *testing.T, company, start, end, selector, output string) {
	t.Helper()
	prev := []string{companyName, startDate, endDate, sourceSelector, outputPath}
	companyName, startDate, endDate, sourceSelector, outputPath = company, start, end, selector, output
	t.Cleanup(func() {
		companyName, startDate, endDate, sourceSelector, outputPath = prev[0], prev[1], prev[2], prev[3], prev[4]
	})
}

func TestFlagOverrides(t *testing.T) {
	prevPages, prevFormat, prevConcurrent := maxPages, outputFormat, concurrentRun
	t.Cleanup(func() { maxPages, outputFormat, concurrentRun = prevPages, prevFormat, prevConcurrent })

	cmd := &cobra.Command{Use: "scrape"}
	cmd.Flags().IntVar(&maxPages, "max-pages", 10, "")
	cmd.Flags().StringVar(&outputFormat, "format", "", "")
	cmd.Flags().BoolVar(&concurrentRun, "concurrent", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--max-pages", "4", "--format", "yaml"}))

	flags := flagOverrides(cmd)

	assert.Equal(t, 4, flags["max-pages"])
	assert.Equal(t, "yaml", flags["format"])
	assert.NotContains(t, flags, "concurrent", "unset flags must not override the config")
	assert.NotContains(t, flags, "min-interval")
}

func TestResolveSink(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Directory = t.TempDir()

	w, err := models.ParseDateWindow("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	meta := models.NewRunMetadata("Acme Corp", "all", w)
	meta.ScrapedAt = time.Date(2024, time.February, 1, 9, 30, 0, 0, time.UTC)
	res := &aggregator.Result{Metadata: meta}

	t.Run("generated name", func(t *testing.T) {
		scrapeArgs(t, "", "", "", "", "")
		s, dest := resolveSink(cfg, res)
		fs, ok := s.(*sink.FileSink)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(cfg.Output.Directory, "reviews_Acme_Corp_all_20240201_093000.json"), dest)
		assert.Equal(t, sink.FormatJSON, fs.Format)
	})

	t.Run("explicit yaml path", func(t *testing.T) {
		scrapeArgs(t, "", "", "", "", "out/reviews.yaml")
		s, dest := resolveSink(cfg, res)
		fs, ok := s.(*sink.FileSink)
		require.True(t, ok)
		assert.Equal(t, "out/reviews.yaml", dest)
		assert.Equal(t, sink.FormatYAML, fs.Format)
	})

	t.Run("stdout", func(t *testing.T) {
		scrapeArgs(t, "", "", "", "", "-")
		s, dest := resolveSink(cfg, res)
		_, ok := s.(*sink.WriterSink)
		assert.True(t, ok)
		assert.Equal(t, "stdout", dest)
	})
}

func TestRunError(t *testing.T) {
	report := func(src models.Source, status models.SourceStatus) models.SourceReport {
		return models.SourceReport{Source: src, Status: status}
	}

	tests := []struct {
		name    string
		meta    models.RunMetadata
		wantErr string
	}{
		{
			name: "all succeeded",
			meta: models.RunMetadata{Sources: []models.SourceReport{report(models.SourceG2, models.StatusSuccess)}},
		},
		{
			name: "one failed",
			meta: models.RunMetadata{Sources: []models.SourceReport{
				report(models.SourceG2, models.StatusSuccess),
				report(models.SourceCapterra, models.StatusFailed),
			}},
		},
		{
			name: "all failed",
			meta: models.RunMetadata{Sources: []models.SourceReport{
				report(models.SourceG2, models.StatusFailed),
				report(models.SourceCapterra, models.StatusFailed),
			}},
			wantErr: "all sources failed",
		},
		{
			name:    "interrupted",
			meta:    models.RunMetadata{Cancelled: true, TotalReviews: 3},
			wantErr: "run interrupted after 3 reviews",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runError(tt.meta)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunScrapeRejectsBadInputBeforeFetching(t *testing.T) {
	quietUI(t)
	server := fakeupstream.New()
	defer server.Close()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REVIEWSCRAPER_G2_BASE_URL", server.URL())

	tests := []struct {
		name     string
		start    string
		end      string
		selector string
	}{
		{name: "bad date", start: "2024-13-01", end: "2024-12-31", selector: "g2"},
		{name: "inverted range", start: "2024-12-31", end: "2024-01-01", selector: "g2"},
		{name: "unknown source", start: "2024-01-01", end: "2024-12-31", selector: "yelp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scrapeArgs(t, "Acme", tt.start, tt.end, tt.selector, filepath.Join(t.TempDir(), "out.json"))
			scrapeCmd.SetContext(context.Background())

			assert.Error(t, runScrape(scrapeCmd))
			assert.Empty(t, server.Requests(models.SourceG2))
		})
	}
}

func TestRunScrapeWritesDocument(t *testing.T) {
	quietUI(t)
	server := fakeupstream.New()
	defer server.Close()

	start := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	for _, src := range models.AllSources {
		server.SetPages(src, fakeupstream.Paginate(fakeupstream.Reviews(string(src), start, 6), 3))
	}

	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"G2_BASE_URL", "CAPTERRA_BASE_URL", "TRUSTRADIUS_BASE_URL"} {
		t.Setenv(config.EnvPrefix+key, server.URL())
	}
	t.Setenv(config.EnvPrefix+"MIN_INTERVAL", "0s")
	t.Setenv(config.EnvPrefix+"JITTER", "0s")
	t.Setenv(config.EnvPrefix+"LOG_LEVEL", "error")

	dir := t.TempDir()
	out := filepath.Join(dir, "acme.json")
	metricsPath := filepath.Join(dir, "metrics.prom")
	t.Setenv(config.EnvPrefix+"METRICS_FILE", metricsPath)

	scrapeArgs(t, "Acme", "2024-01-01", "2024-01-31", "all", out)
	scrapeCmd.SetContext(context.Background())

	require.NoError(t, runScrape(scrapeCmd))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var doc sink.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Acme", doc.Company)
	assert.Equal(t, "all", doc.Source)
	assert.Equal(t, sink.DateRange{Start: "2024-01-01", End: "2024-01-31"}, doc.DateRange)
	assert.Equal(t, 18, doc.TotalReviews)
	assert.Len(t, doc.Reviews, 18)
	require.Len(t, doc.Sources, 3)
	for _, r := range doc.Sources {
		assert.Equal(t, models.StatusSuccess, r.Status, r.Source)
		assert.Equal(t, 2, r.PagesFetched, r.Source)
	}

	assert.FileExists(t, metricsPath)
}

func TestExampleConfigIsValid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "example.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0644))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestCheckEnvironment(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Directory = filepath.Join(t.TempDir(), "nested", "out")
	cfg.Pacing.MinInterval = 0
	cfg.Pacing.Jitter = 0

	problems, warnings := checkEnvironment(cfg)
	assert.Empty(t, problems)
	assert.DirExists(t, cfg.Output.Directory)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "pacing is disabled")
}
