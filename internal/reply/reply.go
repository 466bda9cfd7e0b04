// Package reply decodes the structured answer a model is asked to produce.
//
// The expected shape is
//
//	{"assistant_text": "...", "proposed_insert": "...",
//	 "tool_calls": [{"name": "...", "args": {...}}]}
//
// but every field is optional and anything else in the text is ignored.
package reply

import (
	"strings"

	"sidekick/internal/microjson"
)

// MaxToolCalls bounds how many tool calls one reply may carry.
const MaxToolCalls = 8

const (
	DefaultLogLines   = 50
	DefaultModelStyle = "simple"

	ToolCommandLogTail    = "get_command_log_tail"
	ToolLastModelSummary  = "get_last_model_summary"
	proposedScriptHeading = "[Proposed script]\n"
)

// ToolCall is one request for read-only application context.
type ToolCall struct {
	Name   string
	NLines int
	Style  string
}

// Reply is a decoded model answer.
type Reply struct {
	AssistantText  string
	ProposedInsert string
	ToolCalls      []ToolCall
}

// Empty reports whether the reply carries no displayable text.
func (r Reply) Empty() bool {
	return r.AssistantText == "" && r.ProposedInsert == ""
}

// Decode reads whatever known fields raw contains. It never fails; a reply
// in plain prose decodes to the zero Reply.
func Decode(raw string) Reply {
	var r Reply
	r.AssistantText, _ = microjson.ExtractStringField(raw, "assistant_text")
	r.ProposedInsert, _ = microjson.ExtractStringField(raw, "proposed_insert")

	calls, ok := microjson.ExtractArraySpan(raw, "tool_calls")
	if !ok {
		return r
	}
	microjson.Objects(calls, func(obj string) bool {
		if call, ok := decodeCall(obj); ok {
			r.ToolCalls = append(r.ToolCalls, call)
		}
		return len(r.ToolCalls) < MaxToolCalls
	})
	return r
}

func decodeCall(obj string) (ToolCall, bool) {
	args, hasArgs := microjson.ExtractObjectSpan(obj, "args")
	// Look for the name outside args so an argument called "name" cannot
	// shadow it.
	head := obj
	if hasArgs {
		head = strings.Replace(obj, args, "{}", 1)
	}
	name, ok := microjson.ExtractStringField(head, "name")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return ToolCall{}, false
	}

	call := ToolCall{Name: name, NLines: DefaultLogLines, Style: DefaultModelStyle}
	if !hasArgs {
		return call, true
	}
	switch name {
	case ToolCommandLogTail:
		if p := microjson.FindFieldValueStart(args, "n_lines"); p >= 0 {
			if n, _, ok := microjson.ParseInt(args, p); ok {
				call.NLines = n
			}
		}
	case ToolLastModelSummary:
		if style, ok := microjson.ExtractStringField(args, "style"); ok {
			call.Style = style
		}
	}
	return call, true
}

// RenderForDisplay formats r for the reply pane: the assistant text, then
// the proposed script under a heading. When r has neither, fallback is
// returned verbatim.
func RenderForDisplay(r Reply, fallback string) string {
	if r.Empty() {
		return fallback
	}
	var b strings.Builder
	b.WriteString(r.AssistantText)
	if r.ProposedInsert != "" {
		if r.AssistantText != "" {
			b.WriteString("\n\n")
		}
		b.WriteString(proposedScriptHeading)
		b.WriteString(r.ProposedInsert)
		if !strings.HasSuffix(r.ProposedInsert, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
