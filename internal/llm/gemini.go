package llm

import (
	"context"
	"strings"

	"sidekick/internal/microjson"
)

// geminiNone names an MCP server and tool that do not exist, which leaves
// gemini with no tools at all.
const geminiNone = "sidekick-none"

const geminiCrash = "An unexpected critical error occurred"

func (inv *Invoker) geminiArgs(prompt string) []string {
	args := []string{
		"-p", prompt,
		"--output-format", "json",
		"--allowed-mcp-server-names", geminiNone,
		"--allowed-tools", geminiNone,
	}
	return append(args, inv.opts.ExtraArgs[ProviderGemini]...)
}

// completeGemini runs gemini in JSON output mode and reads the "response"
// field of the object it prints.
func (inv *Invoker) completeGemini(ctx context.Context, exe, prompt string) (string, error) {
	p := ProviderGemini
	res := inv.run(ctx, p, exe, inv.geminiArgs(prompt))
	if !res.timedOut && strings.Contains(string(res.stderr), geminiCrash) {
		return "", newError(ErrProviderFailed, p, "gemini crashed:\n%s", res.stderr)
	}
	if res.err != nil {
		return "", inv.failure(p, res)
	}
	if res.stdoutTruncated {
		return "", newError(ErrReplyTooLarge, p, "LLM reply too long (output exceeded %d bytes)", maxCaptureBytes)
	}

	obj, ok := stripToJSON(string(res.stdout))
	if !ok {
		return "", &Error{Kind: ErrParse, Provider: p, Msg: withOutput("gemini output contained no JSON object", res.stdout, res.stderr)}
	}
	text, ok := microjson.ExtractStringField(obj, "response")
	if !ok {
		return "", &Error{Kind: ErrParse, Provider: p, Msg: withOutput("gemini output has no response field", res.stdout, res.stderr)}
	}
	if len(text) > MaxReplyBytes {
		return "", newError(ErrReplyTooLarge, p, "LLM reply too long (%d bytes)", len(text))
	}
	if strings.TrimSpace(text) == "" {
		return "", newError(ErrEmptyReply, p, "gemini produced no reply")
	}
	return text, nil
}

// stripToJSON isolates the span between the first '{' and the last '}',
// dropping banners and warnings printed around the object.
func stripToJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
