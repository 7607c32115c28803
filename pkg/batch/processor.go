// Package batch provides a queue-draining processor that hands work to a
// caller-supplied handler in fixed-size batches, with failed or
// interrupted batches returned to the queue for a later run.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/obs"
)

// Handler processes one batch of items. A non-nil error marks the whole
// batch failed; the processor requeues it and moves on.
type Handler[T any] func(ctx context.Context, items []T) error

// Processor drains an unbounded FIFO queue in batches of up to BatchSize
// items. Items enter via AddItems and are consumed by ProcessBatches.
// Safe for concurrent producers.
type Processor[T any] struct {
	batchSize int
	delay     time.Duration

	mu    sync.Mutex
	queue []T

	progress *obs.ProgressTracker
	log      *logrus.Entry
}

// NewProcessor creates a Processor. batchSize below 1 is clamped to 1.
// delay is slept after each successfully handled batch.
func NewProcessor[T any](batchSize int, delay time.Duration, log *logrus.Entry) *Processor[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	if delay < 0 {
		delay = 0
	}
	return &Processor[T]{
		batchSize: batchSize,
		delay:     delay,
		log:       log,
	}
}

// AddItems appends items to the queue and resets progress tracking so a
// following ProcessBatches run reports against the new queue length.
func (p *Processor[T]) AddItems(items []T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, items...)
	p.progress = obs.NewProgressTracker(p.log, len(p.queue), p.batchSize)
	p.log.WithField("queue_len", len(p.queue)).Info("Items queued for batch processing")
}

// Len returns the current queue length.
func (p *Processor[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Items returns a copy of the queued items, in order.
func (p *Processor[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.queue))
	copy(out, p.queue)
	return out
}

// ProcessBatches drains the queue through handler until it is empty or
// ctx is cancelled. A failing handler does not stop the run: the batch is
// requeued at the tail and processing continues with the next batch. On
// cancellation any batch in flight is requeued before the context error
// is returned, so no items are lost.
func (p *Processor[T]) ProcessBatches(ctx context.Context, handler Handler[T]) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := p.takeBatch()
		if len(batch) == 0 {
			p.log.Info("Batch queue drained")
			return nil
		}

		if err := handler(ctx, batch); err != nil {
			if ctx.Err() != nil {
				p.requeue(batch)
				p.log.WithField("batch_len", len(batch)).Warn("Cancelled mid-batch, items requeued")
				return ctx.Err()
			}
			p.requeue(batch)
			p.log.WithError(err).WithField("batch_len", len(batch)).Error("Batch handler failed, items requeued")
			continue
		}

		if tracker := p.tracker(); tracker != nil {
			tracker.Update(len(batch), "")
		}

		if p.delay > 0 {
			timer := time.NewTimer(p.delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			timer.Stop()
		}
	}
}

func (p *Processor[T]) takeBatch() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.batchSize
	if n > len(p.queue) {
		n = len(p.queue)
	}
	batch := p.queue[:n:n]
	p.queue = p.queue[n:]
	return batch
}

func (p *Processor[T]) requeue(batch []T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, batch...)
}

func (p *Processor[T]) tracker() *obs.ProgressTracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}
