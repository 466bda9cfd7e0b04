package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sidekick/internal/agent"
	"sidekick/internal/llm"
	"sidekick/internal/tools"
)

type countingSource struct {
	mu sync.Mutex
	n  int
}

func (s *countingSource) Capture() tools.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return tools.Snapshot{Dataset: strings.Repeat("d", s.n), LastError: "err"}
}

func waitCompletion(t *testing.T, s *Session) Completion {
	t.Helper()
	select {
	case c := <-s.Completions():
		return c
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for completion")
		return Completion{}
	}
}

func TestSessionAskAccept(t *testing.T) {
	t.Parallel()

	var seen tools.Snapshot
	var prompt string
	pool := NewPool(1, runnerFunc(func(_ context.Context, job *agent.Job) {
		seen = job.Snapshot
		prompt = job.Prompt
		job.Reply = "done"
		job.Insert = "ols y x"
		job.FinishedAt = time.Now()
	}), nil)
	pool.Start(context.Background())
	defer pool.Stop()

	source := &countingSource{}
	s := NewSession(pool, source)
	id, err := s.Ask(Request{
		Question:     "why?",
		Provider:     llm.ProviderGemini,
		ToolsEnabled: true,
		Sections:     []string{"[Last error]\nerr\n"},
	})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if !s.Busy() {
		t.Fatalf("expected session to be busy")
	}

	c := waitCompletion(t, s)
	if c.JobID() != id {
		t.Fatalf("completion for %q, want %q", c.JobID(), id)
	}
	res, ok := s.Accept(c)
	if !ok {
		t.Fatalf("expected completion to be accepted")
	}
	if res.Reply != "done" || res.Insert != "ols y x" || res.Provider != llm.ProviderGemini || res.Question != "why?" {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.Busy() {
		t.Fatalf("expected busy to clear after Accept")
	}
	if seen.Dataset != "d" {
		t.Fatalf("expected the runner to see the snapshot captured at ask time, got %+v", seen)
	}
	if !strings.Contains(prompt, "User request:\nwhy?") || !strings.Contains(prompt, "[Last error]\nerr") {
		t.Fatalf("unexpected rendered prompt:\n%s", prompt)
	}
	if c.job.Snapshot != (tools.Snapshot{}) {
		t.Fatalf("expected job snapshot to be released")
	}
}

func TestSessionRejectsWhileBusy(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	pool := NewPool(2, runnerFunc(func(context.Context, *agent.Job) { <-release }), nil)
	pool.Start(context.Background())
	defer pool.Stop()

	s := NewSession(pool, nil)
	if _, err := s.Ask(Request{Question: "one"}); err != nil {
		t.Fatalf("first Ask returned error: %v", err)
	}
	if _, err := s.Ask(Request{Question: "two"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(release)
	if _, ok := s.Accept(waitCompletion(t, s)); !ok {
		t.Fatalf("expected completion to be accepted")
	}
	if _, err := s.Ask(Request{Question: "three"}); err != nil {
		t.Fatalf("Ask after Accept returned error: %v", err)
	}
	s.Accept(waitCompletion(t, s))
}

func TestSessionRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	s := NewSession(NewPool(1, runnerFunc(func(context.Context, *agent.Job) {}), nil), nil)
	_, err := s.Ask(Request{Question: "  \n"})
	if !errors.Is(err, llm.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if s.Busy() {
		t.Fatalf("rejected ask must not mark the session busy")
	}
}

func TestSessionAcceptRejectsForeignCompletion(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, runnerFunc(func(context.Context, *agent.Job) {}), nil)
	pool.Start(context.Background())
	defer pool.Stop()

	a := NewSession(pool, &countingSource{})
	b := NewSession(pool, nil)
	if _, err := a.Ask(Request{Question: "q"}); err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	c := waitCompletion(t, a)
	if _, ok := b.Accept(c); ok {
		t.Fatalf("expected another session's completion to be rejected")
	}
	if !a.Busy() {
		t.Fatalf("rejecting elsewhere must not clear the owner's busy flag")
	}
	if c.job.Snapshot == (tools.Snapshot{}) {
		t.Fatalf("rejecting elsewhere must not release the owner's job")
	}

	if _, ok := a.Accept(c); !ok {
		t.Fatalf("expected the owning session to accept its completion")
	}
	if a.Busy() {
		t.Fatalf("expected busy to clear after the owner accepts")
	}
	if c.job.Snapshot != (tools.Snapshot{}) {
		t.Fatalf("expected the owner's Accept to release the job")
	}
}

func TestSessionClosedReleasesJob(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var job *agent.Job
	pool := NewPool(1, runnerFunc(func(_ context.Context, j *agent.Job) {
		job = j
		close(started)
		<-release
	}), nil)
	pool.Start(context.Background())

	s := NewSession(pool, &countingSource{})
	if _, err := s.Ask(Request{Question: "q"}); err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	<-started
	s.Close()
	close(release)
	pool.Stop()

	if job == nil || job.Snapshot != (tools.Snapshot{}) {
		t.Fatalf("expected the job delivered into a closed session to be released")
	}
	select {
	case c := <-s.Completions():
		t.Fatalf("unexpected completion %s after Close", c.JobID())
	default:
	}
	if _, err := s.Ask(Request{Question: "again"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
