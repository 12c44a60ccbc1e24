package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tiebreak/internal/adapters/mq/worker"
	"github.com/okian/tiebreak/internal/domain/model"
	"github.com/okian/tiebreak/internal/domain/types"
	logging "github.com/okian/tiebreak/pkg/logger"
)

type mockQueue struct {
	jobs chan model.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan model.Job, 16)}
}

func (q *mockQueue) Dequeue(context.Context) <-chan model.Job { return q.jobs }

func (q *mockQueue) Close() error {
	q.once.Do(func() { close(q.jobs) })
	return nil
}

type mockEvaluator struct {
	fail map[model.PlayerID]error
}

func (e *mockEvaluator) Evaluate(_ context.Context, job model.Job) (types.Standing, error) {
	if err, ok := e.fail[job.PlayerID]; ok {
		return types.Standing{}, err
	}
	return types.Standing{
		PlayerID: int(job.PlayerID),
		MaxRound: job.MaxRound,
		Points:   float64(job.PlayerID),
		SortKey:  []float64{float64(job.PlayerID)},
	}, nil
}

type mockUpdater struct {
	mu       sync.Mutex
	rows     map[string][]types.Standing
	failures []model.Job
	err      error
}

func newMockUpdater() *mockUpdater {
	return &mockUpdater{rows: map[string][]types.Standing{}}
}

func (u *mockUpdater) Upsert(_ context.Context, job model.Job, s types.Standing) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.rows[job.TournamentID] = append(u.rows[job.TournamentID], s)
	return nil
}

func (u *mockUpdater) RecordFailure(_ context.Context, job model.Job, _ error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures = append(u.failures, job)
}

func (u *mockUpdater) failed() []model.Job {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]model.Job(nil), u.failures...)
}

// ctxQueue never delivers a job and remembers the context it was read with.
type ctxQueue struct {
	got chan context.Context
}

func (q *ctxQueue) Dequeue(ctx context.Context) <-chan model.Job {
	q.got <- ctx
	return make(chan model.Job)
}

func (u *mockUpdater) count(tournamentID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rows[tournamentID])
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a mock queue", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := newMockQueue()
		eval := &mockEvaluator{fail: map[model.PlayerID]error{9: errors.New("boom")}}
		upd := newMockUpdater()
		counters := &worker.Counters{}
		w := worker.NewInMemoryWorker(q, eval, upd, worker.WithName("test-worker"), worker.WithCounters(counters))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is queued", func() {
			q.jobs <- model.Job{RequestID: "r1", TournamentID: "club", PlayerID: 3, MaxRound: 2}

			convey.Convey("Then the standing is stored", func() {
				convey.So(waitFor(func() bool { return upd.count("club") == 1 }), convey.ShouldBeTrue)
				convey.So(upd.rows["club"][0].PlayerID, convey.ShouldEqual, 3)
				convey.So(upd.rows["club"][0].MaxRound, convey.ShouldEqual, 2)
				convey.So(counters.Processed(), convey.ShouldEqual, int64(1))
			})
		})

		convey.Convey("When evaluation fails", func() {
			q.jobs <- model.Job{TournamentID: "club", PlayerID: 9}
			q.jobs <- model.Job{TournamentID: "club", PlayerID: 1}

			convey.Convey("Then the job is counted as failed and the worker keeps going", func() {
				convey.So(waitFor(func() bool { return upd.count("club") == 1 }), convey.ShouldBeTrue)
				convey.So(counters.Failed(), convey.ShouldEqual, int64(1))
			})

			convey.Convey("Then the updater is told which job failed", func() {
				convey.So(waitFor(func() bool { return len(upd.failed()) == 1 }), convey.ShouldBeTrue)
				convey.So(upd.failed()[0].PlayerID, convey.ShouldEqual, model.PlayerID(9))
			})
		})

		convey.Convey("When the store fails", func() {
			upd.mu.Lock()
			upd.err = errors.New("store down")
			upd.mu.Unlock()
			q.jobs <- model.Job{TournamentID: "club", PlayerID: 2}

			convey.Convey("Then the job is counted as failed", func() {
				convey.So(waitFor(func() bool { return counters.Failed() == 1 }), convey.ShouldBeTrue)
				convey.So(counters.Processed(), convey.ShouldEqual, int64(0))
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose queue never delivers", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := &ctxQueue{got: make(chan context.Context, 1)}
		w := worker.NewInMemoryWorker(q, &mockEvaluator{}, newMockUpdater())
		go w.Run(context.Background())
		dequeueCtx := <-q.got

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			err := w.Shutdown(sctx)

			convey.Convey("Then the context handed to the queue ends too", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(waitFor(func() bool { return dequeueCtx.Err() != nil }), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := newMockQueue()
		upd := newMockUpdater()
		pool := worker.NewPool(3, q, &mockEvaluator{}, upd)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When jobs are queued and the pool shuts down", func() {
			for i := 1; i <= 10; i++ {
				q.jobs <- model.Job{TournamentID: "club", PlayerID: model.PlayerID(i)}
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued job is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(upd.count("club"), convey.ShouldEqual, 10)
				convey.So(pool.Counters().Processed(), convey.ShouldEqual, int64(10))
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))
		pool := worker.NewPool(0, newMockQueue(), &mockEvaluator{}, newMockUpdater())

		convey.Convey("Then one worker per CPU is created", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
