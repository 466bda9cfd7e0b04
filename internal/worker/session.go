package worker

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sidekick/internal/agent"
	"sidekick/internal/llm"
	"sidekick/internal/tools"
)

var (
	ErrBusy          = errors.New("assistant is busy")
	ErrSessionClosed = errors.New("session closed")
)

// SnapshotSource captures the application context for a new question.
type SnapshotSource interface {
	Capture() tools.Snapshot
}

// Request is a question as the interactive side phrases it.
type Request struct {
	Question     string
	Provider     llm.Provider
	ToolsEnabled bool
	// Sections are context blocks appended to the prompt.
	Sections []string
}

// Completion is a finished job handed back to the interactive goroutine.
// Pass it to Accept.
type Completion struct {
	session *Session
	job     *agent.Job
}

// JobID identifies the job the completion belongs to.
func (c Completion) JobID() string {
	if c.job == nil {
		return ""
	}
	return c.job.ID
}

// Result is the caller-visible outcome of a question.
type Result struct {
	ID       string
	Question string
	Provider llm.Provider
	Reply    string
	Insert   string
	Err      error
	Rounds   []agent.Round
	Duration time.Duration
}

// Session allows one outstanding question at a time. Ask, Accept and Busy
// belong to the interactive goroutine; completions arrive on Completions.
type Session struct {
	pool   *Pool
	source SnapshotSource

	completions chan Completion
	busy        bool

	mu     sync.Mutex
	closed bool
}

func NewSession(pool *Pool, source SnapshotSource) *Session {
	return &Session{
		pool:        pool,
		source:      source,
		completions: make(chan Completion, 1),
	}
}

// Ask captures a snapshot, renders the prompt and queues the job. It returns
// the job ID.
func (s *Session) Ask(req Request) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	if strings.TrimSpace(req.Question) == "" {
		return "", &llm.Error{Kind: llm.ErrInvalidInput, Provider: req.Provider, Msg: "Missing prompt"}
	}
	if s.busy {
		return "", ErrBusy
	}

	var snap tools.Snapshot
	if s.source != nil {
		snap = s.source.Capture()
	}
	job := &agent.Job{
		ID:           uuid.NewString(),
		Provider:     req.Provider,
		ToolsEnabled: req.ToolsEnabled,
		Question:     req.Question,
		Prompt: agent.RenderPrompt(agent.PromptInput{
			Request:      req.Question,
			ToolsEnabled: req.ToolsEnabled,
			Sections:     req.Sections,
		}),
		Snapshot:  snap,
		CreatedAt: time.Now(),
	}
	if err := s.pool.Submit(job, s.deliver); err != nil {
		return "", err
	}
	s.busy = true
	return job.ID, nil
}

// Busy reports whether a question is outstanding.
func (s *Session) Busy() bool { return s.busy }

// Completions delivers finished jobs. At most one is ever pending.
func (s *Session) Completions() <-chan Completion { return s.completions }

// Accept takes ownership of a completion. It reports false for completions
// that belong to another session, which are left untouched, or that arrive
// after Close, which are released.
func (s *Session) Accept(c Completion) (Result, bool) {
	if c.job == nil {
		return Result{}, false
	}
	if c.session != s {
		return Result{}, false
	}
	defer c.job.Release()
	if s.isClosed() {
		return Result{}, false
	}
	s.busy = false

	job := c.job
	res := Result{
		ID:       job.ID,
		Question: job.Question,
		Provider: job.Provider,
		Reply:    job.Reply,
		Insert:   job.Insert,
		Err:      job.Err,
		Rounds:   job.Rounds,
	}
	if !job.FinishedAt.IsZero() {
		res.Duration = job.FinishedAt.Sub(job.CreatedAt)
	}
	return res, true
}

// Close invalidates the session. A job still running is released when it
// finishes.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	select {
	case c := <-s.completions:
		c.job.Release()
	default:
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// deliver runs on a worker goroutine.
func (s *Session) deliver(job *agent.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		job.Release()
		return
	}
	s.completions <- Completion{session: s, job: job}
}
