package agent

import (
	"fmt"
	"strings"

	"sidekick/internal/tools"
)

const preamble = "You are an assistant embedded in a statistics and scripting application. " +
	"Be concise. If you propose code, output plain script text without Markdown fences.\n\n"

const round2Format = "%s\n\nTool results:\n%s\n\nNow respond using the JSON schema. Do not request further tool calls.\n"

// toolArgHints documents the arguments a tool accepts.
var toolArgHints = map[string]string{
	tools.CommandLogTail:   ` (args: {"n_lines": 50})`,
	tools.LastModelSummary: ` (args: {"style": "simple"|"full"})`,
}

// PromptInput is what the caller contributes to the first-round prompt.
type PromptInput struct {
	Request      string
	ToolsEnabled bool
	// Sections are pre-rendered context blocks such as "[Dataset]\n...".
	Sections []string
}

// RenderPrompt builds the first-round prompt. With tools enabled it asks for
// the JSON reply schema and lists the tool vocabulary the executor serves.
func RenderPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(preamble)

	if in.ToolsEnabled {
		b.WriteString("Return ONLY a single JSON object with this schema:\n")
		b.WriteString(`{"assistant_text": "...", "proposed_insert": "...", "tool_calls": [{"name":"...","args":{...}}]}` + "\n")
		b.WriteString("If you do not need tools, set tool_calls to [].\n")
		b.WriteString("Available read-only tools:\n")
		for _, name := range tools.Names() {
			fmt.Fprintf(&b, "- %s%s\n", name, toolArgHints[name])
		}
		b.WriteString("Do not include Markdown fences.\n\n")
	}

	b.WriteString("User request:\n")
	b.WriteString(in.Request)
	b.WriteString("\n\n")

	for _, s := range in.Sections {
		if s == "" {
			continue
		}
		b.WriteString(s)
		if !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func followUpPrompt(prompt, toolLog string) string {
	return fmt.Sprintf(round2Format, prompt, toolLog)
}
