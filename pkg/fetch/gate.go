package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// Gate bounds how many network operations may be in flight at once. It is
// a thin wrapper over a weighted semaphore with an instrumented in-flight
// counter so callers (and tests) can observe occupancy.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	mu       sync.Mutex
	inFlight int64
	peak     int64
	log      *logrus.Entry
}

// NewGate creates a gate admitting at most capacity concurrent operations.
func NewGate(capacity int, log *logrus.Entry) *Gate {
	limit := int64(capacity)
	if limit <= 0 {
		limit = 1
		log.Warnf("gate capacity invalid or zero, defaulting to %d", limit)
	}
	return &Gate{
		sem:      semaphore.NewWeighted(limit),
		capacity: limit,
		log:      log,
	}
}

// Enter blocks until a slot is available or ctx is cancelled.
func (g *Gate) Enter(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %v", utils.ErrGateTimeout, err)
		}
		return err
	}
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()
	return nil
}

// Leave releases one slot. Must be called exactly once per successful Enter.
func (g *Gate) Leave() {
	g.mu.Lock()
	if g.inFlight <= 0 {
		g.mu.Unlock()
		g.log.Error("gate: Leave called with no slots held")
		return
	}
	g.inFlight--
	g.mu.Unlock()
	g.sem.Release(1)
}

// Do runs fn with a gate slot held. The slot is released even if fn
// panics or returns an error, so a failing operation never leaks capacity.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.Enter(ctx); err != nil {
		return err
	}
	defer g.Leave()
	return fn()
}

// Capacity returns the configured slot count.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// InFlight returns the number of currently admitted operations.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.inFlight)
}

// Peak returns the high-water mark of concurrent admissions.
func (g *Gate) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.peak)
}
