// Package paginator walks the pages of one source in order, pacing and
// retrying fetches, until the listing ends or a stop rule fires.
package paginator

import (
	"context"
	"errors"
	"iter"
	"time"

	"reviewscraper/pkg/config"
	"reviewscraper/pkg/fetch"
	"reviewscraper/pkg/logger"
	"reviewscraper/pkg/models"
	"reviewscraper/pkg/ratelimit"
	"reviewscraper/pkg/retry"
	"reviewscraper/pkg/sources"
)

// StopReason says why pagination ended
type StopReason string

const (
	StopNoMorePages         StopReason = "no_more_pages"
	StopMaxPages            StopReason = "max_pages"
	StopEmptyPages          StopReason = "empty_pages"
	StopConsecutiveFailures StopReason = "consecutive_failures"
	StopPermanentError      StopReason = "permanent_error"
	StopCancelled           StopReason = "cancelled"
	// StopConsumer means the caller stopped ranging over the pages
	StopConsumer StopReason = "consumer_stopped"
)

// Outcome summarises a finished pagination
type Outcome struct {
	PagesFetched int
	PagesSkipped int
	LastPage     int
	Reason       StopReason
	// Err is the error that ended pagination, if any
	Err error
}

// Observer receives page level events
type Observer interface {
	PageFetched(src models.Source, page, records int)
	PageSkipped(src models.Source, page int, err error)
}

// Options holds the stop rules and retry budget
type Options struct {
	MaxPages               int
	EmptyPageLimit         int
	MaxConsecutiveFailures int
	MaxAttempts            int
	Backoff                *retry.ExponentialBackoff
}

// OptionsFromConfig derives options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxPages:               cfg.Pagination.MaxPages,
		EmptyPageLimit:         cfg.Pagination.EmptyPageLimit,
		MaxConsecutiveFailures: cfg.Pagination.MaxConsecutiveFailures,
		MaxAttempts:            cfg.Retry.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.Retry.InitialBackoff,
			MaxDelay:     cfg.Retry.MaxBackoff,
			Multiplier:   cfg.Retry.Multiplier,
			JitterFactor: cfg.Retry.JitterFactor,
		},
	}
}

// Option configures a Paginator
type Option func(*Paginator)

// WithPacer sets the limiter consulted before every fetch attempt
func WithPacer(l ratelimit.Limiter) Option {
	return func(p *Paginator) { p.pacer = l }
}

// WithObserver sets the page event receiver
func WithObserver(o Observer) Option {
	return func(p *Paginator) { p.observer = o }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(p *Paginator) { p.log = l }
}

// WithRetrySleep replaces the wait between retry attempts
func WithRetrySleep(sleep retry.SleepFunc) Option {
	return func(p *Paginator) { p.retrySleep = sleep }
}

// Paginator produces the pages of one company on one source. It is
// single-use: the sequence from Pages can be ranged over once.
type Paginator struct {
	adapter    sources.Adapter
	fetcher    fetch.Fetcher
	company    string
	opts       Options
	pacer      ratelimit.Limiter
	observer   Observer
	log        logger.Logger
	retrySleep retry.SleepFunc

	used    bool
	outcome Outcome
}

// New creates a paginator. Without WithPacer requests are not paced.
func New(a sources.Adapter, f fetch.Fetcher, company string, opts Options, options ...Option) *Paginator {
	p := &Paginator{
		adapter: a,
		fetcher: f,
		company: company,
		opts:    opts,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.pacer == nil {
		p.pacer = ratelimit.NewPacer(ratelimit.Policy{})
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.log == nil {
		p.log = logger.NewNopLogger()
	}
	p.log = p.log.WithField("source", string(a.Source()))
	if p.opts.MaxAttempts <= 0 {
		p.opts.MaxAttempts = 1
	}
	return p
}

// Pages returns the lazy sequence of parsed pages. Ranging over it a second
// time yields nothing.
func (p *Paginator) Pages(ctx context.Context) iter.Seq[*sources.RawPage] {
	return func(yield func(*sources.RawPage) bool) {
		if p.used {
			p.log.Warn("paginator already consumed, yielding nothing")
			return
		}
		p.used = true
		p.run(ctx, yield)
	}
}

// Outcome reports how pagination ended. It is complete once ranging over
// Pages has returned.
func (p *Paginator) Outcome() Outcome {
	return p.outcome
}

func (p *Paginator) run(ctx context.Context, yield func(*sources.RawPage) bool) {
	src := p.adapter.Source()
	emptyRun, failureRun := 0, 0

	for page := 1; ; page++ {
		if p.opts.MaxPages > 0 && page > p.opts.MaxPages {
			p.stop(StopMaxPages, nil)
			return
		}
		if err := ctx.Err(); err != nil {
			p.stop(StopCancelled, err)
			return
		}
		p.outcome.LastPage = page

		started := time.Now()
		raw, err := p.fetch(ctx, page)
		if err != nil {
			// Only the caller's context cancels; a client timeout is a fetch failure
			if cerr := ctx.Err(); cerr != nil {
				p.stop(StopCancelled, cerr)
				return
			}
			var exhausted *retry.ExhaustedError
			if !errors.As(err, &exhausted) {
				p.log.ErrorWithFields("permanent fetch failure, stopping source", map[string]interface{}{
					"page":  page,
					"error": err.Error(),
				})
				p.stop(StopPermanentError, err)
				return
			}
			if p.skip(src, page, err, &failureRun) {
				return
			}
			continue
		}

		parsed, err := p.adapter.ParsePage(raw, page)
		if err != nil {
			if p.skip(src, page, err, &failureRun) {
				return
			}
			continue
		}

		failureRun = 0
		p.outcome.PagesFetched++
		p.observer.PageFetched(src, page, len(parsed.Records))
		p.log.DebugWithFields("page fetched", map[string]interface{}{
			"page":        page,
			"records":     len(parsed.Records),
			"has_next":    parsed.HasNext,
			"duration_ms": time.Since(started).Milliseconds(),
		})

		if len(parsed.Records) == 0 {
			emptyRun++
		} else {
			emptyRun = 0
		}

		if !yield(parsed) {
			p.stop(StopConsumer, nil)
			return
		}
		if !parsed.HasNext {
			p.stop(StopNoMorePages, nil)
			return
		}
		if p.opts.EmptyPageLimit > 0 && emptyRun >= p.opts.EmptyPageLimit {
			p.stop(StopEmptyPages, nil)
			return
		}
	}
}

// skip records a page that could not be processed and reports whether the
// consecutive failure limit has been reached.
func (p *Paginator) skip(src models.Source, page int, err error, failureRun *int) bool {
	*failureRun++
	p.outcome.PagesSkipped++
	p.observer.PageSkipped(src, page, err)
	p.log.WarnWithFields("skipping page", map[string]interface{}{
		"page":  page,
		"error": err.Error(),
	})

	if p.opts.MaxConsecutiveFailures > 0 && *failureRun >= p.opts.MaxConsecutiveFailures {
		p.log.ErrorWithFields("too many consecutive failed pages, stopping source", map[string]interface{}{
			"failures": *failureRun,
		})
		p.stop(StopConsecutiveFailures, err)
		return true
	}
	return false
}

func (p *Paginator) fetch(ctx context.Context, page int) ([]byte, error) {
	req := p.adapter.BuildRequest(p.company, page)

	cfg := &retry.Config{
		MaxAttempts: p.opts.MaxAttempts,
		Backoff:     p.opts.Backoff,
		RetryIf:     retry.DefaultRetryIf,
		Sleep:       p.retrySleep,
		Logger:      p.log.WithField("page", page),
	}
	if p.opts.Backoff != nil {
		cfg.ErrorBackoff = retry.NewErrorTypeBackoff(p.opts.Backoff)
	}

	return retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		if err := p.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		return p.fetcher.Fetch(ctx, req)
	}, cfg)
}

func (p *Paginator) stop(reason StopReason, err error) {
	p.outcome.Reason = reason
	p.outcome.Err = err
	p.log.DebugWithFields("pagination stopped", map[string]interface{}{
		"reason":        string(reason),
		"pages_fetched": p.outcome.PagesFetched,
		"pages_skipped": p.outcome.PagesSkipped,
	})
}

type nopObserver struct{}

func (nopObserver) PageFetched(models.Source, int, int)    {}
func (nopObserver) PageSkipped(models.Source, int, error) {}
