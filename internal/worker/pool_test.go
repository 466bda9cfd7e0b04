package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sidekick/internal/agent"
	"sidekick/internal/tools"
)

type runnerFunc func(ctx context.Context, job *agent.Job)

func (f runnerFunc) Run(ctx context.Context, job *agent.Job) { f(ctx, job) }

type recordingHistory struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (h *recordingHistory) SaveJob(_ context.Context, job *agent.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, job.ID)
	return h.err
}

func (h *recordingHistory) saved() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.jobs...)
}

func waitDelivered(t *testing.T, ch <-chan *agent.Job) *agent.Job {
	t.Helper()
	select {
	case job := <-ch:
		return job
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for delivery")
		return nil
	}
}

func TestPoolRunsAndDelivers(t *testing.T) {
	t.Parallel()

	history := &recordingHistory{err: errors.New("disk full")}
	pool := NewPool(2, runnerFunc(func(_ context.Context, job *agent.Job) {
		job.Reply = "answer to " + job.Question
	}), history)
	pool.Start(context.Background())
	defer pool.Stop()

	delivered := make(chan *agent.Job, 1)
	job := &agent.Job{ID: "job-1", Question: "q"}
	if err := pool.Submit(job, func(j *agent.Job) { delivered <- j }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	got := waitDelivered(t, delivered)
	if got.Reply != "answer to q" {
		t.Fatalf("unexpected reply %q", got.Reply)
	}
	if saved := history.saved(); len(saved) != 1 || saved[0] != "job-1" {
		t.Fatalf("expected history to be written before delivery even when it fails, got %v", saved)
	}
}

func TestPoolRecoversPanic(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, runnerFunc(func(context.Context, *agent.Job) {
		panic("boom")
	}), nil)
	pool.Start(context.Background())
	defer pool.Stop()

	delivered := make(chan *agent.Job, 1)
	if err := pool.Submit(&agent.Job{ID: "p"}, func(j *agent.Job) { delivered <- j }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	got := waitDelivered(t, delivered)
	if !errors.Is(got.Err, ErrWorkerPanic) || got.Reply != "worker panic" {
		t.Fatalf("expected worker panic result, got reply=%q err=%v", got.Reply, got.Err)
	}
}

func TestPoolStopFailsQueuedJobs(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, runnerFunc(func(context.Context, *agent.Job) {
		t.Errorf("runner must not be called for a pool that never started")
	}), nil)

	delivered := make(chan *agent.Job, 1)
	if err := pool.Submit(&agent.Job{ID: "queued"}, func(j *agent.Job) { delivered <- j }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	pool.Stop()

	got := waitDelivered(t, delivered)
	if !errors.Is(got.Err, ErrPoolStopped) {
		t.Fatalf("expected ErrPoolStopped, got %v", got.Err)
	}
	if err := pool.Submit(&agent.Job{}, func(*agent.Job) {}); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("expected Submit after Stop to fail, got %v", err)
	}
}

func TestPoolStopCancelsRunningJob(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	pool := NewPool(1, runnerFunc(func(ctx context.Context, job *agent.Job) {
		close(started)
		<-ctx.Done()
		job.Err = ctx.Err()
	}), nil)
	pool.Start(context.Background())

	delivered := make(chan *agent.Job, 1)
	if err := pool.Submit(&agent.Job{ID: "slow", Snapshot: tools.Snapshot{Dataset: "d"}}, func(j *agent.Job) { delivered <- j }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	<-started
	pool.Stop()

	got := waitDelivered(t, delivered)
	if !errors.Is(got.Err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", got.Err)
	}
}
