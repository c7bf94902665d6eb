package inference

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	// Workers caps concurrently running jobs, abandoned ones included.
	// Defaults to runtime.NumCPU().
	Workers int
	// QueueDepth caps jobs waiting for a worker. Defaults to 4*Workers.
	QueueDepth int
	// QueueWait bounds how long a job may wait for a queue or worker slot.
	QueueWait time.Duration
	Logger    zerolog.Logger
}

// Pool runs generation jobs on a bounded set of workers. Admission is two
// staged: a queue slot (buffered channel) and then a worker slot (weighted
// semaphore). A job keeps its worker slot until it actually returns, even
// after the caller stopped waiting for it.
type Pool struct {
	queueCh   chan struct{}
	sem       *semaphore.Weighted
	workers   int
	queueWait time.Duration
	log       zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	running   atomic.Int64
	queued    atomic.Int64
	abandoned atomic.Int64
}

// PoolStats is a point-in-time view of pool occupancy.
type PoolStats struct {
	Workers   int   `json:"workers"`
	Running   int64 `json:"running"`
	Queued    int64 `json:"queued"`
	Abandoned int64 `json:"abandoned"`
}

// NewPool constructs a Pool, applying defaults for unset fields.
func NewPool(cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 4 * workers
	}
	wait := cfg.QueueWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Pool{
		queueCh:   make(chan struct{}, depth),
		sem:       semaphore.NewWeighted(int64(workers)),
		workers:   workers,
		queueWait: wait,
		log:       cfg.Logger.With().Str("component", "pool").Logger(),
	}
}

// Task is a submitted job. Done is closed when the job returns.
type Task struct {
	p    *Pool
	done chan struct{}
	err  error

	mu        sync.Mutex
	finished  bool
	abandoned bool
}

// Done is closed once the job has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the job error. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }

// Abandon marks the task as no longer awaited. The worker keeps its slot
// until the job returns.
func (t *Task) Abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished || t.abandoned {
		return
	}
	t.abandoned = true
	poolAbandoned.Set(float64(t.p.abandoned.Add(1)))
}

func (t *Task) finish() {
	t.mu.Lock()
	t.finished = true
	if t.abandoned {
		poolAbandoned.Set(float64(t.p.abandoned.Add(-1)))
	}
	t.mu.Unlock()
}

// Submit reserves a queue slot and then a worker slot and starts job on its
// own goroutine with ctx. Canceling ctx is how callers stop a running job;
// the job is expected to honor it. Returns a tooBusyError when no slot frees
// up within QueueWait, or ctx.Err() if ctx ends first.
func (p *Pool) Submit(ctx context.Context, job func(ctx context.Context) error) (*Task, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	// Registered under the read lock so Close cannot miss it.
	p.wg.Add(1)
	p.mu.RUnlock()

	started := false
	defer func() {
		if !started {
			p.wg.Done()
		}
	}()

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(p.queueWait)
	defer timer.Stop()
	select {
	case p.queueCh <- struct{}{}:
		poolQueued.Set(float64(p.queued.Add(1)))
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, tooBusyError{reason: "generation queue full"}
	}
	defer func() {
		<-p.queueCh
		poolQueued.Set(float64(p.queued.Add(-1)))
	}()

	actx, cancel := context.WithTimeout(ctx, p.queueWait)
	defer cancel()
	if err := p.sem.Acquire(actx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tooBusyError{reason: "no worker available"}
	}

	t := &Task{p: p, done: make(chan struct{})}
	started = true
	poolRunning.Set(float64(p.running.Add(1)))
	go p.run(ctx, t, job)
	return t, nil
}

func (p *Pool) run(ctx context.Context, t *Task, job func(ctx context.Context) error) {
	defer p.wg.Done()
	defer p.sem.Release(1)
	defer func() {
		poolRunning.Set(float64(p.running.Add(-1)))
		t.finish()
		close(t.done)
	}()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("worker panic")
			t.err = panicError{v: r}
		}
	}()
	t.err = job(ctx)
}

// Stats reports current occupancy.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		Running:   p.running.Load(),
		Queued:    p.queued.Load(),
		Abandoned: p.abandoned.Load(),
	}
}

// Close rejects new work and waits for running jobs, abandoned ones
// included, until ctx ends.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.log.Warn().Int64("running", p.running.Load()).Msg("pool close timed out")
		return ctx.Err()
	}
}
