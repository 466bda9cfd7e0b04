// Package llm runs a locally installed LLM command-line agent as a bounded
// subprocess and returns its final textual reply.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Environment overrides read on every invocation.
const (
	EnvCodexBin       = "SIDEKICK_CODEX_BIN"
	EnvGeminiBin      = "SIDEKICK_GEMINI_BIN"
	EnvTimeoutSec     = "SIDEKICK_LLM_TIMEOUT_SEC"
	EnvUnsafe         = "SIDEKICK_LLM_UNSAFE"
	EnvCodexDangerous = "SIDEKICK_CODEX_DANGEROUS"
	EnvProvider       = "SIDEKICK_LLM_PROVIDER"
)

const (
	DefaultTimeout = 300 * time.Second
	MaxTimeout     = 3600 * time.Second

	// MaxReplyBytes bounds the extracted reply text.
	MaxReplyBytes = 2 << 20
	// maxCaptureBytes bounds each of the child's stdout and stderr.
	maxCaptureBytes = 8 << 20

	// backstopGrace is added to the deadline of runs already wrapped by the
	// timeout utility, so the utility fires first.
	backstopGrace = 10 * time.Second
	// waitDelay bounds how long output copying may outlive a killed child.
	waitDelay = 5 * time.Second
)

// Options is the configuration the Invoker falls back to when no
// environment override is present.
type Options struct {
	Paths     map[Provider]string
	ExtraArgs map[Provider][]string
	Timeout   time.Duration
	Unsafe    bool
	Default   Provider
}

// Invoker spawns provider CLIs. It holds no per-call state and is safe for
// concurrent use.
type Invoker struct {
	opts Options

	getenv   func(string) string
	lookPath func(string) (string, error)
	homeDir  func() (string, error)
}

func NewInvoker(opts Options) *Invoker {
	return &Invoker{
		opts:     opts,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		homeDir:  os.UserHomeDir,
	}
}

// DefaultProvider is the provider used for ProviderNone.
func (inv *Invoker) DefaultProvider() Provider {
	if inv.opts.Default != ProviderNone {
		return inv.opts.Default
	}
	return ProviderCodex
}

// Timeout returns the effective per-invocation timeout.
func (inv *Invoker) Timeout() time.Duration {
	if d, ok := ParseTimeoutSec(inv.getenv(EnvTimeoutSec)); ok {
		return d
	}
	if inv.opts.Timeout > 0 && inv.opts.Timeout <= MaxTimeout {
		return inv.opts.Timeout
	}
	return DefaultTimeout
}

// ParseTimeoutSec accepts a whole number of seconds in (0, 3600].
func ParseTimeoutSec(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || time.Duration(n)*time.Second > MaxTimeout {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// Unsafe reports whether codex runs without approvals or sandbox.
func (inv *Invoker) Unsafe() bool {
	return envFlag(inv.getenv(EnvUnsafe)) || envFlag(inv.getenv(EnvCodexDangerous)) || inv.opts.Unsafe
}

func envFlag(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0"
}

// Resolve finds the executable for p: environment override, configured
// path, ~/.local/bin/<name>, then PATH.
func (inv *Invoker) Resolve(p Provider) (string, error) {
	if p == ProviderNone {
		p = inv.DefaultProvider()
	}
	name := p.String()
	if v := strings.TrimSpace(inv.getenv(p.binEnv())); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(inv.opts.Paths[p]); v != "" {
		return v, nil
	}
	if home, err := inv.homeDir(); err == nil && home != "" {
		candidate := filepath.Join(home, ".local", "bin", name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	if path, err := inv.lookPath(name); err == nil {
		return path, nil
	}
	return "", newError(ErrExecutableNotFound, p, "Cannot find %s executable (set %s)", name, p.binEnv())
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// TimeoutUtility returns the path of the external timeout command used to
// hard-kill runaway children, or "" when it is unavailable.
func (inv *Invoker) TimeoutUtility() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	path, err := inv.lookPath("timeout")
	if err != nil {
		return ""
	}
	return path
}

// Complete sends prompt to provider and returns the reply text. Every
// failure is an *Error.
func (inv *Invoker) Complete(ctx context.Context, p Provider, prompt string) (string, error) {
	if p == ProviderNone {
		p = inv.DefaultProvider()
	}
	if strings.TrimSpace(prompt) == "" {
		return "", newError(ErrInvalidInput, p, "Missing prompt")
	}
	exe, err := inv.Resolve(p)
	if err != nil {
		return "", err
	}

	switch p {
	case ProviderGemini:
		return inv.completeGemini(ctx, exe, prompt)
	default:
		return inv.completeCodex(ctx, exe, prompt)
	}
}

// result is what a finished child left behind.
type result struct {
	stdout, stderr  []byte
	stdoutTruncated bool
	err             error
	timedOut        bool
	cancelled       bool
}

// run executes exe with args under the effective timeout. stdin is the null
// device and no shell is involved.
func (inv *Invoker) run(ctx context.Context, p Provider, exe string, args []string) result {
	timeout := inv.Timeout()
	argv := append([]string{exe}, args...)
	deadline := timeout
	if tu := inv.TimeoutUtility(); tu != "" {
		secs := strconv.Itoa(int(timeout / time.Second))
		argv = append([]string{tu, "--signal=KILL", secs + "s"}, argv...)
		deadline += backstopGrace
	}

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	slog.Debug("llm exec", "provider", p.String(), "args_count", len(argv), "timeout", timeout)

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stdin = nil
	stdout := &boundedBuffer{limit: maxCaptureBytes}
	stderr := &boundedBuffer{limit: maxCaptureBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		// The child exited cleanly but left a descendant holding its output.
		err = nil
	}
	res := result{
		stdout:          stdout.Bytes(),
		stderr:          stderr.Bytes(),
		stdoutTruncated: stdout.truncated,
		err:             err,
	}
	slog.Debug("llm exit", "provider", p.String(), "duration_ms", time.Since(start).Milliseconds(), "err", err)

	if err == nil {
		return res
	}
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.timedOut = true
	case ctx.Err() != nil:
		res.cancelled = true
	default:
		res.timedOut = killedByTimeout(err)
	}
	return res
}

// killedByTimeout reports the exit shapes produced by `timeout --signal=KILL`.
func killedByTimeout(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	switch exitErr.ExitCode() {
	case 124, 137:
		return true
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() && ws.Signal() == syscall.SIGKILL {
		return true
	}
	return false
}

// failure converts a non-zero run into the matching *Error.
func (inv *Invoker) failure(p Provider, res result) *Error {
	name := p.String()
	switch {
	case res.timedOut:
		return newError(ErrTimeout, p, "%s timed out after %ds (set %s)", name, int(inv.Timeout()/time.Second), EnvTimeoutSec)
	case res.cancelled:
		return newError(ErrProviderFailed, p, "%s invocation cancelled", name)
	}
	var exitErr *exec.ExitError
	if !errors.As(res.err, &exitErr) {
		return newError(ErrProviderFailed, p, "failed to start %s: %v", name, res.err)
	}
	msg := fmt.Sprintf("%s failed: %v", name, res.err)
	return &Error{Kind: ErrProviderFailed, Provider: p, Msg: withOutput(msg, res.stdout, res.stderr)}
}

// boundedBuffer keeps the first limit bytes written and discards the rest
// while still reporting full writes, so the child never blocks on a pipe.
type boundedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) Bytes() []byte { return b.buf.Bytes() }
