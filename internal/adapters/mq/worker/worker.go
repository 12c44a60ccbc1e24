// Package worker evaluates queued jobs and publishes the resulting standings.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/tiebreak/internal/domain/model"
	"github.com/okian/tiebreak/internal/domain/types"
	"github.com/okian/tiebreak/pkg/logger"
	"github.com/okian/tiebreak/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Evaluator turns a job into one player's standing.
type Evaluator interface {
	Evaluate(ctx context.Context, job model.Job) (types.Standing, error)
}

// Updater stores the standing evaluated for a job.
type Updater interface {
	Upsert(ctx context.Context, job model.Job, s types.Standing) error
}

// FailureRecorder is implemented by updaters that track jobs which could not
// be evaluated.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, job model.Job, err error)
}

// Queue is the consumer side of the job queue.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Job
}

// Worker processes jobs until its queue drains or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// Counters tracks job outcomes across workers.
type Counters struct {
	processed atomic.Int64
	failed    atomic.Int64
}

// Processed returns the number of jobs stored successfully.
func (c *Counters) Processed() int64 { return c.processed.Load() }

// Failed returns the number of jobs that errored.
func (c *Counters) Failed() int64 { return c.failed.Load() }

// InMemoryWorker consumes jobs from a Queue.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	updater   Updater
	name      string
	counters  *Counters

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a worker reading from queue.
func NewInMemoryWorker(queue Queue, evaluator Evaluator, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		evaluator: evaluator,
		updater:   updater,
		name:      "worker",
		counters:  &Counters{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}

	return w
}

// Run blocks until ctx ends, Shutdown is called or the queue is drained.
// The queue sees a context that also ends on Shutdown, so its delivery
// goroutine does not outlive the worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-runCtx.Done():
		}
	}()

	jobs := w.queue.Dequeue(runCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "job failed",
					logger.String("request_id", job.RequestID),
					logger.String("tournament_id", job.TournamentID),
					logger.Int("player_id", int(job.PlayerID)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job model.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerJob(float64(time.Since(start).Microseconds()) / 1000)
	}()

	standing, err := w.evaluator.Evaluate(ctx, job)
	if err != nil {
		w.counters.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "evaluate")
		if fr, ok := w.updater.(FailureRecorder); ok {
			fr.RecordFailure(ctx, job, err)
		}
		return fmt.Errorf("evaluate: %w", err)
	}

	if err := w.updater.Upsert(ctx, job, standing); err != nil {
		w.counters.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store")
		return fmt.Errorf("store: %w", err)
	}

	w.counters.processed.Add(1)
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	counters *Counters
	logger   logger.Logger
}

// NewPool creates workerCount workers. A count below one means one worker
// per CPU.
func NewPool(workerCount int, queue Queue, evaluator Evaluator, updater Updater) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		counters: &Counters{},
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(queue, evaluator, updater,
			WithName("worker-"+strconv.Itoa(i)),
			WithCounters(p.counters),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Counters returns the shared job counters.
func (p *Pool) Counters() *Counters { return p.counters }

// Shutdown closes the queue when it can be closed, lets workers drain it and
// stops whatever is still running when ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			if err := w.Shutdown(shutdownCtx); err != nil {
				p.logger.Warn(ctx, "worker shutdown failed", logger.Int("worker_id", i), logger.Error(err))
			}
		}
	}

	metrics.UpdateWorkerCount(0)
	return nil
}
