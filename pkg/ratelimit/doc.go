// Package ratelimit paces requests to a single review platform.
//
// A Pacer enforces a minimum interval between consecutive requests plus a
// random jitter, using golang.org/x/time/rate for the interval bookkeeping.
// Every source chain owns its own Pacer, so platforms are paced
// independently and no limiter state is shared across them.
//
//	p := ratelimit.NewPacer(ratelimit.Policy{
//		MinInterval: time.Second,
//		Jitter:      500 * time.Millisecond,
//	})
//	if err := p.Wait(ctx); err != nil {
//		return err // cancelled
//	}
//
// The clock, sleep and jitter source are injectable so that tests can drive
// a Pacer with a fake clock and observe the delays it asks for.
package ratelimit
