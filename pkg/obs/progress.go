package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProgressTracker reports progress of a long-running batch of units.
// Updates are logged every `frequency` completed units, on a zero-increment
// update (explicit checkpoint), and when the total is reached.
type ProgressTracker struct {
	log        *logrus.Entry
	mu         sync.Mutex
	total      int
	current    int
	frequency  int
	startTime  time.Time
	milestones map[string]time.Time
}

// NewProgressTracker creates a tracker for `total` expected units with the
// given update cadence.
func NewProgressTracker(log *logrus.Entry, total, frequency int) *ProgressTracker {
	if frequency <= 0 {
		frequency = 1
	}
	return &ProgressTracker{
		log:        log,
		total:      total,
		frequency:  frequency,
		startTime:  time.Now(),
		milestones: make(map[string]time.Time),
	}
}

// Update advances the counter by increment. Negative increments are a
// programming error and are ignored with a warning.
func (p *ProgressTracker) Update(increment int, message string) {
	if increment < 0 {
		p.log.Warnf("Progress increment must be non-negative, got %d", increment)
		return
	}

	p.mu.Lock()
	p.current += increment
	shouldLog := increment == 0 || p.current%p.frequency == 0 || p.current == p.total
	current, total := p.current, p.total
	elapsed := time.Since(p.startTime)
	p.mu.Unlock()

	if shouldLog {
		p.logProgress(current, total, elapsed, message)
	}
}

// Current returns the number of completed units.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Milestone marks a named point in time for later inspection.
func (p *ProgressTracker) Milestone(name string) {
	p.mu.Lock()
	p.milestones[name] = time.Now()
	p.mu.Unlock()
}

func (p *ProgressTracker) logProgress(current, total int, elapsed time.Duration, message string) {
	secs := elapsed.Seconds()
	if secs < 0.001 {
		secs = 0.001
	}
	rate := float64(current) / secs

	var pct, eta float64
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	if rate > 0.001 {
		eta = float64(total-current) / rate
	} else {
		eta = float64(total - current) / 0.001
	}

	status := fmt.Sprintf("Progress: %d/%d (%.1f%%) Rate: %.1f items/sec ETA: %.0fs",
		current, total, pct, rate, eta)
	if message != "" {
		status = fmt.Sprintf("%s - %s", status, message)
	}
	p.log.Info(status)
}
