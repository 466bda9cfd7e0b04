// Package agent runs the two-round ask/tool/answer exchange with a provider.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sidekick/internal/llm"
	"sidekick/internal/reply"
	"sidekick/internal/tools"
)

// MaxRounds is the number of provider invocations a job may make when tools
// are enabled.
const MaxRounds = 2

// Completer sends one prompt to a provider. *llm.Invoker implements it.
type Completer interface {
	Complete(ctx context.Context, p llm.Provider, prompt string) (string, error)
}

// Job is one question and, once run, its answer.
type Job struct {
	ID           string
	Provider     llm.Provider
	ToolsEnabled bool
	Question     string
	Prompt       string
	Snapshot     tools.Snapshot

	Reply  string
	Insert string
	Err    error
	Rounds []Round

	CreatedAt  time.Time
	FinishedAt time.Time
}

// Round records one provider invocation.
type Round struct {
	N         int
	Prompt    string
	Raw       string
	Err       error
	ToolCalls int
	Duration  time.Duration
}

// Release drops the captured snapshot.
func (j *Job) Release() {
	j.Snapshot = tools.Snapshot{}
}

// Loop drives a Job against a Completer.
type Loop struct {
	llm Completer
}

func NewLoop(c Completer) *Loop {
	return &Loop{llm: c}
}

// Run executes job to completion. Failures end the job with the error text
// as its reply; Run itself never fails.
func (l *Loop) Run(ctx context.Context, job *Job) {
	defer func() { job.FinishedAt = time.Now() }()

	maxRounds := 1
	if job.ToolsEnabled {
		maxRounds = MaxRounds
	}

	var toolLog strings.Builder
	for n := 1; n <= maxRounds; n++ {
		prompt := job.Prompt
		if toolLog.Len() > 0 {
			prompt = followUpPrompt(job.Prompt, toolLog.String())
		}

		start := time.Now()
		raw, err := l.llm.Complete(ctx, job.Provider, prompt)
		round := Round{N: n, Prompt: prompt, Raw: raw, Err: err, Duration: time.Since(start)}

		if err != nil {
			job.Rounds = append(job.Rounds, round)
			job.Reply = err.Error()
			job.Err = err
			slog.Warn("assistant round failed", "job", job.ID, "round", n, "provider", job.Provider.String(), "err", err)
			return
		}

		r := reply.Decode(raw)
		if r.ProposedInsert != "" {
			job.Insert = r.ProposedInsert
		}
		round.ToolCalls = len(r.ToolCalls)
		job.Rounds = append(job.Rounds, round)
		slog.Info("assistant round",
			"job", job.ID,
			"round", n,
			"provider", job.Provider.String(),
			"duration_ms", round.Duration.Milliseconds(),
			"reply_bytes", len(raw),
			"tool_calls", round.ToolCalls,
		)

		if !job.ToolsEnabled || len(r.ToolCalls) == 0 || n == maxRounds {
			job.Reply = reply.RenderForDisplay(r, raw)
			return
		}

		transcript, _ := tools.Execute(r.ToolCalls, job.Snapshot)
		toolLog.WriteString(transcript)
	}
}
