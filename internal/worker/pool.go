package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"sidekick/internal/agent"
)

var (
	ErrWorkerPanic = errors.New("worker panic")
	ErrPoolStopped = errors.New("worker pool stopped")
	ErrQueueFull   = errors.New("worker queue full")
)

const queueSize = 64

// Runner executes a job to completion. *agent.Loop implements it.
type Runner interface {
	Run(ctx context.Context, job *agent.Job)
}

// History persists a finished job before it is delivered.
type History interface {
	SaveJob(ctx context.Context, job *agent.Job) error
}

type task struct {
	job     *agent.Job
	deliver func(*agent.Job)
}

// Pool manages N worker goroutines that run jobs.
type Pool struct {
	n       int
	runner  Runner
	history History
	tasks   chan task

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPool returns a pool of n workers. history may be nil.
func NewPool(n int, runner Runner, history History) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		n:       n,
		runner:  runner,
		history: history,
		tasks:   make(chan task, queueSize),
		done:    make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop cancels running jobs, waits for the workers and fails whatever is
// still queued with ErrPoolStopped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	for {
		select {
		case t := <-p.tasks:
			t.job.Err = ErrPoolStopped
			t.job.Reply = ErrPoolStopped.Error()
			t.job.FinishedAt = time.Now()
			t.deliver(t.job)
		default:
			return
		}
	}
}

// Submit queues job without blocking. deliver is called exactly once from a
// worker goroutine when the job finishes.
func (p *Pool) Submit(job *agent.Job, deliver func(*agent.Job)) error {
	select {
	case <-p.done:
		return ErrPoolStopped
	default:
	}
	select {
	case p.tasks <- task{job: job, deliver: deliver}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	slog.Debug("worker started", "id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("worker stopping", "id", id)
			return
		case t := <-p.tasks:
			p.processJob(ctx, id, t)
		}
	}
}

func (p *Pool) processJob(ctx context.Context, workerID int, t task) {
	slog.Info("worker processing job", "worker", workerID, "job", t.job.ID, "provider", t.job.Provider.String())
	p.runJob(ctx, workerID, t.job)

	if p.history != nil {
		// Persist even when Stop cancelled the run.
		if err := p.history.SaveJob(context.WithoutCancel(ctx), t.job); err != nil {
			slog.Error("save job history failed", "job", t.job.ID, "err", err)
		}
	}
	t.deliver(t.job)
}

func (p *Pool) runJob(ctx context.Context, workerID int, job *agent.Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker panic", "worker", workerID, "job", job.ID, "panic", r, "stack", string(debug.Stack()))
			job.Err = ErrWorkerPanic
			job.Reply = ErrWorkerPanic.Error()
			job.FinishedAt = time.Now()
		}
	}()
	p.runner.Run(ctx, job)
}
