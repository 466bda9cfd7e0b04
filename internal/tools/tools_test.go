package tools

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"sidekick/internal/reply"
)

func tenLines() string {
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func TestExecuteNoCalls(t *testing.T) {
	t.Parallel()

	if out, ok := Execute(nil, Snapshot{Dataset: "x"}); ok || out != "" {
		t.Fatalf("expected no transcript, got %q ok=%v", out, ok)
	}
}

func TestExecuteCommandLogTailFromReply(t *testing.T) {
	t.Parallel()

	r := reply.Decode(`{"tool_calls":[{"name":"get_command_log_tail","args":{"n_lines":3}}]}`)
	if len(r.ToolCalls) != 1 || r.ToolCalls[0].NLines != 3 {
		t.Fatalf("unexpected calls %+v", r.ToolCalls)
	}

	out, ok := Execute(r.ToolCalls, Snapshot{CommandLog: tenLines()})
	if !ok {
		t.Fatalf("expected a transcript")
	}
	want := "--- tool:get_command_log_tail ---\nline 8\nline 9\nline 10\n--- end ---\n"
	if out != want {
		t.Fatalf("unexpected transcript:\n%q\nwant:\n%q", out, want)
	}
}

func TestExecuteTable(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Dataset:         "nobs=100, vars=4",
		LastError:       "",
		ScriptSelection: "ols y 0 x\n",
		ScriptFull:      "open data.gdt\nols y 0 x\n",
		LastModelSimple: "simple summary",
		LastModelFull:   "full summary",
	}
	tests := []struct {
		call reply.ToolCall
		body string
	}{
		{call: reply.ToolCall{Name: DatasetSummary}, body: "nobs=100, vars=4\n"},
		{call: reply.ToolCall{Name: LastError}, body: "(unavailable)\n"},
		{call: reply.ToolCall{Name: ScriptSelection}, body: "ols y 0 x\n"},
		{call: reply.ToolCall{Name: ScriptFull}, body: "open data.gdt\nols y 0 x\n"},
		{call: reply.ToolCall{Name: CommandLogTail, NLines: 5}, body: "(unavailable)\n"},
		{call: reply.ToolCall{Name: LastModelSummary, Style: "full"}, body: "full summary\n"},
		{call: reply.ToolCall{Name: LastModelSummary, Style: "simple"}, body: "simple summary\n"},
		{call: reply.ToolCall{Name: LastModelSummary, Style: "other"}, body: "simple summary\n"},
		{call: reply.ToolCall{Name: "rm_rf"}, body: "(unavailable)\n"},
	}
	for _, tc := range tests {
		out, ok := Execute([]reply.ToolCall{tc.call}, snap)
		if !ok {
			t.Fatalf("%s: expected a transcript", tc.call.Name)
		}
		want := "--- tool:" + tc.call.Name + " ---\n" + tc.body + "--- end ---\n"
		if out != want {
			t.Fatalf("%s: got %q want %q", tc.call.Name, out, want)
		}
	}
}

func TestExecuteCapsCalls(t *testing.T) {
	t.Parallel()

	var calls []reply.ToolCall
	for i := 0; i < 10; i++ {
		calls = append(calls, reply.ToolCall{Name: fmt.Sprintf("t%d", i)})
	}
	out, _ := Execute(calls, Snapshot{})
	if n := strings.Count(out, "--- end ---\n"); n != reply.MaxToolCalls {
		t.Fatalf("expected %d blocks, got %d", reply.MaxToolCalls, n)
	}
	if strings.Contains(out, "tool:t8") || !strings.Contains(out, "tool:t7") {
		t.Fatalf("expected only the first calls to run:\n%s", out)
	}
}

func TestExecuteTruncatesTranscript(t *testing.T) {
	t.Parallel()

	snap := Snapshot{ScriptFull: strings.Repeat("é", 15000)}
	calls := []reply.ToolCall{{Name: ScriptFull}, {Name: ScriptFull}}
	out, _ := Execute(calls, snap)

	if !strings.HasSuffix(out, TruncatedMarker) {
		t.Fatalf("expected truncation marker at the end")
	}
	if len(out) > MaxTranscript+len(TruncatedMarker) {
		t.Fatalf("transcript too long: %d", len(out))
	}
	body := strings.TrimSuffix(out, TruncatedMarker)
	if !utf8.ValidString(body) {
		t.Fatalf("truncation split a UTF-8 sequence")
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "last three", in: tenLines(), n: 3, want: "line 8\nline 9\nline 10\n"},
		{name: "more than available", in: "a\nb\n", n: 5, want: "a\nb\n"},
		{name: "no trailing newline", in: "a\nb\nc", n: 2, want: "b\nc"},
		{name: "default", in: tenLines(), n: 0, want: tenLines()},
		{name: "empty", in: "", n: 3, want: ""},
	}
	for _, tc := range tests {
		if got := Tail(tc.in, tc.n); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestCommandLogTailCapped(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", MaxLogTail+500) + "\n"
	out, _ := Execute([]reply.ToolCall{{Name: CommandLogTail, NLines: 1}}, Snapshot{CommandLog: long})
	want := "--- tool:get_command_log_tail ---\n" + strings.Repeat("x", MaxLogTail) + "\n--- end ---\n"
	if out != want {
		t.Fatalf("expected the tail to be capped at %d bytes, got length %d", MaxLogTail, len(out))
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	names := Names()
	if len(names) != 6 || names[0] != DatasetSummary || names[5] != LastModelSummary {
		t.Fatalf("unexpected vocabulary %v", names)
	}
}
