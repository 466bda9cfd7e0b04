// Package tools answers a model's tool calls from a read-only snapshot of
// application state.
package tools

import (
	"strings"
	"unicode/utf8"

	"sidekick/internal/reply"
)

const (
	DatasetSummary   = "get_dataset_summary"
	LastError        = "get_last_error"
	ScriptSelection  = "get_script_selection"
	ScriptFull       = "get_script_full"
	CommandLogTail   = reply.ToolCommandLogTail
	LastModelSummary = reply.ToolLastModelSummary
)

const (
	// MaxTranscript bounds the tool results fed back into the next prompt.
	MaxTranscript   = 40000
	TruncatedMarker = "\n...[truncated]...\n"
	// MaxLogTail bounds the output of one command log tail.
	MaxLogTail = 32000

	unavailable = "(unavailable)"
)

// Names returns the tool vocabulary in the order it is offered to models.
func Names() []string {
	return []string{DatasetSummary, LastError, ScriptSelection, ScriptFull, CommandLogTail, LastModelSummary}
}

// Snapshot is the application context captured when a question is asked.
// Every field is already size-bounded by whoever captured it. A Snapshot is
// never modified after capture.
type Snapshot struct {
	Dataset         string
	LastError       string
	ScriptSelection string
	ScriptFull      string
	CommandLog      string
	LastModelSimple string
	LastModelFull   string
}

// Execute runs up to reply.MaxToolCalls calls in order and returns the framed
// transcript. It reports false when there is nothing to run.
func Execute(calls []reply.ToolCall, snap Snapshot) (string, bool) {
	if len(calls) == 0 {
		return "", false
	}
	if len(calls) > reply.MaxToolCalls {
		calls = calls[:reply.MaxToolCalls]
	}

	var b strings.Builder
	for _, call := range calls {
		body := lookup(call, snap)
		if body == "" {
			body = unavailable
		}
		b.WriteString("--- tool:")
		b.WriteString(call.Name)
		b.WriteString(" ---\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("--- end ---\n")
	}

	out := b.String()
	if len(out) > MaxTranscript {
		out = Truncate(out, MaxTranscript) + TruncatedMarker
	}
	return out, true
}

func lookup(call reply.ToolCall, snap Snapshot) string {
	switch call.Name {
	case DatasetSummary:
		return snap.Dataset
	case LastError:
		return snap.LastError
	case ScriptSelection:
		return snap.ScriptSelection
	case ScriptFull:
		return snap.ScriptFull
	case CommandLogTail:
		return Truncate(Tail(snap.CommandLog, call.NLines), MaxLogTail)
	case LastModelSummary:
		if call.Style == "full" {
			return snap.LastModelFull
		}
		return snap.LastModelSimple
	default:
		return ""
	}
}

// Tail returns the last n lines of s. A final newline does not start an
// extra empty line. n <= 0 means reply.DefaultLogLines.
func Tail(s string, n int) string {
	if n <= 0 {
		n = reply.DefaultLogLines
	}
	end := len(s)
	if strings.HasSuffix(s, "\n") {
		end--
	}
	i := end
	for ; n > 0; n-- {
		j := strings.LastIndexByte(s[:i], '\n')
		if j < 0 {
			return s
		}
		i = j
	}
	return s[i+1:]
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
