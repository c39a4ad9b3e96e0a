package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"reviewscraper/pkg/config"
	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/fetch"
	"reviewscraper/pkg/logger"
	"reviewscraper/pkg/models"
	"reviewscraper/pkg/normalize"
	"reviewscraper/pkg/paginator"
	"reviewscraper/pkg/ratelimit"
	"reviewscraper/pkg/retry"
	"reviewscraper/pkg/sources"
)

// Result is the merged output of one run
type Result struct {
	Reviews  []models.Review
	Metadata models.RunMetadata
}

// Aggregator runs one adapter, paginator and normalizer chain per selected
// source and merges their reviews.
type Aggregator struct {
	cfg        *config.Config
	fetcher    fetch.Fetcher
	log        logger.Logger
	observer   Observer
	now        func() time.Time
	pacerOpts  []ratelimit.Option
	retrySleep retry.SleepFunc
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithFetcher replaces the HTTP client
func WithFetcher(f fetch.Fetcher) Option {
	return func(a *Aggregator) { a.fetcher = f }
}

// WithLogger sets the logger passed down to every chain
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithObserver sets the run event receiver. It must be safe for concurrent
// use when concurrent aggregation is enabled.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithClock replaces the time source for run timestamps and pacing
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
		a.pacerOpts = append(a.pacerOpts, ratelimit.WithClock(now))
	}
}

// WithSleep replaces every blocking wait: pacing and retry backoff
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Aggregator) {
		a.pacerOpts = append(a.pacerOpts, ratelimit.WithSleep(sleep))
		a.retrySleep = sleep
	}
}

// New creates an Aggregator. Without WithFetcher it builds the HTTP client
// from cfg.Fetch.
func New(cfg *config.Config, opts ...Option) (*Aggregator, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	a := &Aggregator{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.NewNopLogger()
	}
	if a.observer == nil {
		a.observer = NopObserver{}
	}
	if a.fetcher == nil {
		client, err := fetch.NewClient(cfg.Fetch, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		a.fetcher = client
	}
	return a, nil
}

type sourceResult struct {
	reviews []models.Review
	report  models.SourceReport
}

// Run scrapes every selected source for reviews of company dated within w.
// Per-source failures and cancellation are reported in the metadata, not as
// errors; an error is returned only when the request itself is invalid.
func (a *Aggregator) Run(ctx context.Context, company string, w models.DateWindow, selected []models.Source) (*Result, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, errs.Config(errs.ErrEmptyCompany, "company name is required")
	}
	if len(selected) == 0 {
		return nil, errs.Config(errs.ErrUnknownSource, "no sources selected")
	}

	adapters := make([]sources.Adapter, len(selected))
	for i, src := range selected {
		adapter, err := sources.FromConfig(src, a.cfg)
		if err != nil {
			return nil, err
		}
		adapters[i] = adapter
	}

	started := a.now()
	meta := models.NewRunMetadata(company, models.SelectorString(selected), w)
	meta.ScrapedAt = started.UTC()
	log := a.log.WithFields(map[string]interface{}{
		"run_id":  meta.RunID,
		"company": company,
	})
	log.InfoWithFields("starting review scrape", map[string]interface{}{
		"sources":    meta.SourceSelector,
		"window":     w.String(),
		"concurrent": a.cfg.Aggregation.Concurrent,
	})

	slots := make([]sourceResult, len(adapters))
	if a.cfg.Aggregation.Concurrent && len(adapters) > 1 {
		a.runConcurrent(ctx, company, w, adapters, slots, log)
	} else {
		for i, adapter := range adapters {
			slots[i] = a.runSource(ctx, adapter, company, w, log)
		}
	}

	res := &Result{Reviews: []models.Review{}}
	for _, slot := range slots {
		res.Reviews = append(res.Reviews, slot.reviews...)
		meta.Sources = append(meta.Sources, slot.report)
		if slot.report.Status == models.StatusCancelled {
			meta.Cancelled = true
		}
	}
	if ctx.Err() != nil {
		meta.Cancelled = true
	}
	meta.TotalReviews = len(res.Reviews)
	meta.Duration = a.now().Sub(started)
	res.Metadata = meta

	log.InfoWithFields("review scrape finished", map[string]interface{}{
		"total_reviews": meta.TotalReviews,
		"cancelled":     meta.Cancelled,
		"duration_ms":   meta.Duration.Milliseconds(),
	})
	return res, nil
}

func (a *Aggregator) runConcurrent(ctx context.Context, company string, w models.DateWindow, adapters []sources.Adapter, slots []sourceResult, log logger.Logger) {
	limit := a.cfg.Aggregation.MaxParallel
	if limit <= 0 {
		limit = len(adapters)
	}
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, adapter := range adapters {
		// acquire before launching; a cancelled run never starts the rest
		if err := sem.Acquire(ctx, 1); err != nil {
			slots[i] = cancelledBeforeStart(adapter.Source(), err)
			continue
		}

		wg.Add(1)
		go func(i int, adapter sources.Adapter) {
			defer wg.Done()
			defer sem.Release(1)
			slots[i] = a.runSource(ctx, adapter, company, w, log)
		}(i, adapter)
	}

	wg.Wait()
}

func cancelledBeforeStart(src models.Source, err error) sourceResult {
	return sourceResult{report: models.SourceReport{
		Source:     src,
		Status:     models.StatusCancelled,
		StopReason: string(paginator.StopCancelled),
		Error:      err.Error(),
	}}
}

// runSource drives one chain to completion. Everything it touches besides
// the shared fetcher, logger and observer is private to the call.
func (a *Aggregator) runSource(ctx context.Context, adapter sources.Adapter, company string, w models.DateWindow, log logger.Logger) sourceResult {
	src := adapter.Source()
	log = log.WithField("source", string(src))
	started := a.now()
	a.observer.SourceStarted(src)

	pacer := ratelimit.NewPacer(ratelimit.Policy{
		MinInterval: a.cfg.Pacing.MinInterval,
		Jitter:      a.cfg.Pacing.Jitter,
	}, a.pacerOpts...)
	pg := paginator.New(adapter, a.fetcher, company, paginator.OptionsFromConfig(a.cfg),
		paginator.WithPacer(pacer),
		paginator.WithObserver(a.observer),
		paginator.WithLogger(log),
		paginator.WithRetrySleep(a.retrySleep))
	norm := normalize.New(src, w, log)

	report := models.SourceReport{Source: src}
	var reviews []models.Review
	seen := make(map[models.DedupKey]struct{})

	for page := range pg.Pages(ctx) {
		for _, rec := range page.Records {
			report.RecordsSeen++

			candidate, err := adapter.ToReview(rec)
			if err != nil {
				norm.Count(normalize.ReasonUnmappable)
				a.observer.RecordDropped(src, normalize.ReasonUnmappable)
				log.WarnWithFields("cannot map record", map[string]interface{}{
					"page":  page.PageNumber,
					"error": err.Error(),
				})
				continue
			}

			review, reason := norm.Normalize(candidate)
			if reason != "" {
				a.observer.RecordDropped(src, reason)
				continue
			}

			key := review.Key()
			if _, dup := seen[key]; dup {
				report.Duplicates++
				continue
			}
			seen[key] = struct{}{}
			reviews = append(reviews, review)
		}
	}

	out := pg.Outcome()
	report.PagesFetched = out.PagesFetched
	report.PagesSkipped = out.PagesSkipped
	report.ReviewsKept = len(reviews)
	report.RecordsDropped = norm.Stats().TotalDropped()
	report.StopReason = string(out.Reason)
	report.Status = statusFor(out)
	if out.Err != nil {
		report.Error = out.Err.Error()
	}
	report.Duration = a.now().Sub(started)

	if report.Status == models.StatusFailed {
		a.observer.SourceFailed(src, out.Err)
	}
	a.observer.SourceFinished(report)

	return sourceResult{reviews: reviews, report: report}
}

// statusFor maps a pagination outcome to a source status. Any page that
// could not be processed makes the result partial, or failed when no page
// was processed at all.
func statusFor(out paginator.Outcome) models.SourceStatus {
	switch {
	case out.Reason == paginator.StopCancelled:
		return models.StatusCancelled
	case out.Err == nil && out.PagesSkipped == 0:
		return models.StatusSuccess
	case out.PagesFetched > 0:
		return models.StatusPartial
	default:
		return models.StatusFailed
	}
}
