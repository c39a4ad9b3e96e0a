package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until the next request to an upstream may be sent
type Limiter interface {
	Wait(ctx context.Context) error
}

// Policy describes how requests to one upstream are spaced
type Policy struct {
	// MinInterval is the minimum time between two consecutive requests
	MinInterval time.Duration
	// Jitter is the upper bound of a random extra delay added before every request but the first
	Jitter time.Duration
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer enforces a Policy for one upstream. It is safe for concurrent use,
// but each source chain is expected to own its own Pacer.
type Pacer struct {
	policy  Policy
	limiter *rate.Limiter
	now     func() time.Time
	sleep   SleepFunc
	jitter  func(max time.Duration) time.Duration

	mu     sync.Mutex
	first  bool
	waited time.Duration
}

// Option configures a Pacer
type Option func(*Pacer)

// WithClock replaces the time source; tests pair it with WithSleep
func WithClock(now func() time.Time) Option {
	return func(p *Pacer) { p.now = now }
}

// WithSleep replaces the blocking wait
func WithSleep(sleep SleepFunc) Option {
	return func(p *Pacer) { p.sleep = sleep }
}

// WithJitterSource replaces the random jitter generator
func WithJitterSource(fn func(max time.Duration) time.Duration) Option {
	return func(p *Pacer) { p.jitter = fn }
}

// NewPacer creates a pacer for the given policy
func NewPacer(policy Policy, opts ...Option) *Pacer {
	limit := rate.Inf
	if policy.MinInterval > 0 {
		limit = rate.Every(policy.MinInterval)
	}
	p := &Pacer{
		policy:  policy,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		sleep:   sleepCtx,
		jitter:  randomJitter,
		first:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait blocks until the next request may be sent. Jitter is slept before the
// interval reservation so that two returns are never closer than MinInterval.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !p.first && p.policy.Jitter > 0 {
		if j := p.jitter(p.policy.Jitter); j > 0 {
			if err := p.sleep(ctx, j); err != nil {
				return err
			}
			p.waited += j
		}
	}
	p.first = false

	now := p.now()
	r := p.limiter.ReserveN(now, 1)
	if !r.OK() {
		return nil
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if err := p.sleep(ctx, delay); err != nil {
		r.CancelAt(p.now())
		return err
	}
	p.waited += delay
	return nil
}

// Waited returns the total time this pacer has spent blocking
func (p *Pacer) Waited() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waited
}

// Policy returns the pacing policy
func (p *Pacer) Policy() Policy {
	return p.policy
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max + 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
