package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// RateLimiter serializes request issuance so that consecutive grants are
// spaced at least 1/rate apart, regardless of how many goroutines call
// Acquire concurrently. A single limiter instance is shared by all callers
// that should be throttled together.
//
// The critical section is a channel-owned lock rather than a sync.Mutex so
// waiters can bail out on context cancellation or the wait-timeout bound
// instead of hanging silently.
type RateLimiter struct {
	interval    time.Duration // Minimum spacing between grants (1/rate)
	waitTimeout time.Duration // Bound on how long a caller may be parked
	lock        chan struct{} // Capacity 1; holding the token = holding the lock
	lastGrant   time.Time     // Timestamp of the most recent grant, guarded by lock
	log         *logrus.Entry
}

// NewRateLimiter creates a limiter allowing requestsPerSecond grants per
// second. waitTimeout bounds the total time Acquire may block; zero or
// negative applies the 60s default. A non-positive rate disables spacing
// (every Acquire succeeds immediately).
func NewRateLimiter(requestsPerSecond float64, waitTimeout time.Duration, log *logrus.Entry) *RateLimiter {
	var interval time.Duration
	if requestsPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	if waitTimeout <= 0 {
		waitTimeout = 60 * time.Second
	}
	return &RateLimiter{
		interval:    interval,
		waitTimeout: waitTimeout,
		lock:        make(chan struct{}, 1),
		log:         log,
	}
}

// Interval returns the minimum spacing between grants.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Acquire blocks until at least 1/rate has elapsed since the previous
// grant, then records the new grant timestamp. Returns ErrRateLimitTimeout
// if the total wait (lock acquisition plus spacing sleep) exceeds the
// configured bound, or ctx.Err() on cancellation. Exactly one grant
// timestamp update happens per successful call.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	if rl.interval <= 0 {
		return nil
	}

	deadline := time.NewTimer(rl.waitTimeout)
	defer deadline.Stop()

	select {
	case rl.lock <- struct{}{}:
	case <-deadline.C:
		rl.log.Warnf("Rate limiter wait exceeded %v while queued for lock", rl.waitTimeout)
		return fmt.Errorf("%w: waited %v for grant", utils.ErrRateLimitTimeout, rl.waitTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-rl.lock }()

	if !rl.lastGrant.IsZero() {
		if remaining := rl.interval - time.Since(rl.lastGrant); remaining > 0 {
			spacing := time.NewTimer(remaining)
			defer spacing.Stop()
			select {
			case <-spacing.C:
			case <-deadline.C:
				rl.log.Warnf("Rate limiter wait exceeded %v during spacing sleep", rl.waitTimeout)
				return fmt.Errorf("%w: waited %v for grant", utils.ErrRateLimitTimeout, rl.waitTimeout)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	rl.lastGrant = time.Now()
	return nil
}
