package middleware

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// SampledObserver forwards notifications to another observer at a bounded rate.
// Notifications over the rate are dropped; dispatch is never delayed.
type SampledObserver struct {
	next    Observer
	limiter *rate.Limiter
	dropped atomic.Uint64
}

// Sampled forwards at most limit notifications per second, with the given burst, to next.
func Sampled(limit float64, burst int, next Observer) *SampledObserver {
	return &SampledObserver{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
	}
}

func (s *SampledObserver) Observe(ctx context.Context, call Call) {
	if !s.limiter.Allow() {
		s.dropped.Add(1)
		return
	}
	s.next.Observe(ctx, call)
}

// Dropped returns how many notifications were not forwarded.
func (s *SampledObserver) Dropped() uint64 { return s.dropped.Load() }
