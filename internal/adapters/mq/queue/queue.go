// Package queue provides the bounded in-memory job queue between the API and
// the evaluation workers.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/tiebreak/internal/domain/model"
	"github.com/okian/tiebreak/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Queue carries evaluation jobs to workers.
type Queue interface {
	// Enqueue adds a job without blocking. It returns ErrFull when the buffer
	// is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, job model.Job) error

	// Dequeue returns a channel that yields jobs until the queue is closed
	// and drained or ctx ends. A job already taken from the buffer when ctx
	// ends is dropped.
	Dequeue(ctx context.Context) <-chan model.Job

	// Len reports the number of buffered jobs.
	Len(ctx context.Context) int

	// Capacity reports the buffer bound.
	Capacity() int

	Close() error
	IsClosed() bool
}

// InMemoryQueue is a channel-backed Queue.
type InMemoryQueue struct {
	jobs     chan model.Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan model.Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job model.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.jobs <- job:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordQueueEnqueueError("full")
		return fmt.Errorf("%w: capacity %d", ErrFull, q.capacity)
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Job {
	out := make(chan model.Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.jobs))
				select {
				case out <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity implements Queue.Capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting jobs. Buffered jobs can still be dequeued.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
