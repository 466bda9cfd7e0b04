package llm

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
)

func (inv *Invoker) codexArgs(outFile, prompt string) []string {
	var args []string
	if inv.Unsafe() {
		args = []string{"exec", "--dangerously-bypass-approvals-and-sandbox"}
	} else {
		args = []string{"-a", "never", "exec", "-s", "read-only"}
	}
	args = append(args, "--color", "never", "--skip-git-repo-check", "--output-last-message", outFile)
	args = append(args, inv.opts.ExtraArgs[ProviderCodex]...)
	return append(args, prompt)
}

// completeCodex runs codex exec and reads the final message it writes to a
// per-call temp file.
func (inv *Invoker) completeCodex(ctx context.Context, exe, prompt string) (string, error) {
	p := ProviderCodex
	f, err := os.CreateTemp("", "sidekick-codex-*.txt")
	if err != nil {
		return "", newError(ErrIO, p, "create codex output file: %v", err)
	}
	outFile := f.Name()
	f.Close()
	defer os.Remove(outFile)

	res := inv.run(ctx, p, exe, inv.codexArgs(outFile, prompt))
	if res.err != nil {
		return "", inv.failure(p, res)
	}

	info, err := os.Stat(outFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &Error{Kind: ErrEmptyReply, Provider: p, Msg: withOutput("codex produced no reply", res.stdout, res.stderr)}
	}
	if err != nil {
		return "", newError(ErrIO, p, "stat codex output file: %v", err)
	}
	if info.Size() > MaxReplyBytes {
		return "", newError(ErrReplyTooLarge, p, "LLM reply too long (%d bytes)", info.Size())
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		return "", newError(ErrIO, p, "read codex output file: %v", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", &Error{Kind: ErrEmptyReply, Provider: p, Msg: withOutput("codex produced no reply", res.stdout, res.stderr)}
	}
	return string(data), nil
}
