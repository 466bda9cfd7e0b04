package tui

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"sidekick/internal/appctx"
	"sidekick/internal/config"
	"sidekick/internal/db"
	"sidekick/internal/llm"
	"sidekick/internal/worker"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// ── Styles ──────────────────────────────────────────────────────────────────

const pad = 2 // horizontal padding on each side

const inputHeight = 3

var (
	frameStyle    = lipgloss.NewStyle().Padding(1, pad)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("37"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	onStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// ── Model ───────────────────────────────────────────────────────────────────

// exchange is one question and, once it arrives, its answer.
type exchange struct {
	id       string
	question string
	provider llm.Provider
	reply    string
	insert   string
	err      error
	rounds   int
	duration time.Duration
	done     bool
}

// Model is the BubbleTea model for the interactive assistant. It owns the
// session: Ask and Accept only ever run inside Update.
type Model struct {
	session *worker.Session
	source  *appctx.FileSource

	provider   llm.Provider
	tools      bool
	dataset    bool
	lastError  bool
	script     bool
	scriptPath string

	input   textarea.Model
	output  viewport.Model
	spinner spinner.Model

	exchanges []exchange
	pendingID string

	confirmAction string // "insert" or "" (none)
	flash         string
	flashErr      bool

	copyText func(string) error

	width  int
	height int
}

func NewModel(session *worker.Session, source *appctx.FileSource, cfg *config.Config) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your data or script…"
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = promptStyle

	m := Model{
		session:  session,
		source:   source,
		provider: llm.ProviderCodex,
		tools:    true,
		input:    ta,
		output:   viewport.New(80, 10),
		spinner:  sp,
		copyText: clipboard.WriteAll,
	}
	if cfg != nil {
		m.provider = cfg.DefaultProvider()
		m.tools = cfg.Assistant.Tools
		m.dataset = cfg.Assistant.IncludeDataset
		m.lastError = cfg.Assistant.IncludeLastError
		m.script = cfg.Assistant.IncludeScript
		m.scriptPath = cfg.Context.Script
	}
	return m
}

// ── Messages ────────────────────────────────────────────────────────────────

type completionMsg worker.Completion

type insertResultMsg struct {
	path string
	n    int
	err  error
}

type copyResultMsg struct {
	err error
}

// ── Init / Commands ─────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd { return textarea.Blink }

// waitForCompletion blocks on the session's completion channel. One is
// started per successful Ask.
func waitForCompletion(ch <-chan worker.Completion) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return completionMsg(c)
	}
}

func (m Model) copyReply(text string) tea.Cmd {
	copyText := m.copyText
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text)}
	}
}

func insertIntoScript(path, text string) tea.Cmd {
	return func() tea.Msg {
		n, err := appendToFile(path, text)
		return insertResultMsg{path: path, n: n, err: err}
	}
}

// appendToFile appends text as whole lines, adding a separating newline when
// the file does not already end with one.
func appendToFile(path, text string) (int, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat script: %w", err)
	}
	if info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			text = "\n" + text
		}
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	n, err := f.WriteString(text)
	if err != nil {
		return n, fmt.Errorf("append to script: %w", err)
	}
	return n, nil
}

// ── Update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.layout()
		return m, nil
	case completionMsg:
		return m.handleCompletion(worker.Completion(msg)), nil
	case insertResultMsg:
		if msg.err != nil {
			m = m.setFlash(fmt.Sprintf("Insert failed: %v", msg.err), true)
		} else {
			slog.Info("inserted proposed script", "path", msg.path, "bytes", msg.n)
			m = m.setFlash(fmt.Sprintf("Appended %d bytes to %s", msg.n, msg.path), false)
		}
		return m, nil
	case copyResultMsg:
		if msg.err != nil {
			m = m.setFlash(fmt.Sprintf("Copy failed: %v", msg.err), true)
		} else {
			m = m.setFlash("Reply copied to clipboard", false)
		}
		return m, nil
	case spinner.TickMsg:
		if m.pendingID == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleCompletion(c worker.Completion) Model {
	res, ok := m.session.Accept(c)
	if !ok {
		return m
	}
	// The conversation was cleared while this reply was in flight.
	if res.ID != m.pendingID {
		slog.Debug("discarding stale reply", "ask", db.ShortID(res.ID))
		return m.setFlash("Discarded reply to a cleared question", false)
	}
	m.pendingID = ""
	for i := range m.exchanges {
		if m.exchanges[i].id != res.ID {
			continue
		}
		ex := &m.exchanges[i]
		ex.reply = res.Reply
		ex.insert = res.Insert
		ex.err = res.Err
		ex.rounds = len(res.Rounds)
		ex.duration = res.Duration
		ex.done = true
	}
	m.refresh()
	return m
}

// ── Key Handling ────────────────────────────────────────────────────────────

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	if k == "ctrl+c" {
		return m, tea.Quit
	}

	// Confirmation prompt active: only y/n/esc are handled.
	if m.confirmAction != "" {
		switch k {
		case "y":
			action := m.confirmAction
			m.confirmAction = ""
			if action == "insert" {
				if text := m.insertText(); text != "" {
					return m, insertIntoScript(m.scriptPath, text)
				}
			}
		case "n", "esc":
			m.confirmAction = ""
		}
		return m, nil
	}

	switch k {
	case "esc":
		return m, tea.Quit
	case "enter":
		return m.submit()
	case "alt+p":
		m.provider = nextProvider(m.provider)
		return m, nil
	case "alt+t":
		m.tools = !m.tools
		return m, nil
	case "alt+d":
		m.dataset = !m.dataset
		return m, nil
	case "alt+e":
		m.lastError = !m.lastError
		return m, nil
	case "alt+s":
		m.script = !m.script
		return m, nil
	case "alt+c":
		ex, ok := m.lastAnswered()
		if !ok || ex.reply == "" {
			return m.setFlash("Nothing to copy", true), nil
		}
		return m, m.copyReply(ex.reply)
	case "alt+i":
		if m.scriptPath == "" {
			return m.setFlash("No script file configured ([context] script)", true), nil
		}
		if m.insertText() == "" {
			return m.setFlash("Nothing to insert", true), nil
		}
		m.confirmAction = "insert"
		return m, nil
	case "ctrl+l":
		m.exchanges = nil
		m.pendingID = ""
		m.flash, m.flashErr = "", false
		m.refresh()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}
	var sections []string
	if m.source != nil {
		sections = m.source.Sections(m.dataset, m.lastError, m.script)
	}
	id, err := m.session.Ask(worker.Request{
		Question:     question,
		Provider:     m.provider,
		ToolsEnabled: m.tools,
		Sections:     sections,
	})
	if err != nil {
		return m.setFlash(err.Error(), true), nil
	}
	slog.Info("question submitted", "ask", db.ShortID(id), "provider", m.provider, "tools", m.tools)

	m.pendingID = id
	m.exchanges = append(m.exchanges, exchange{id: id, question: question, provider: m.provider})
	m.input.Reset()
	m.flash, m.flashErr = "", false
	m.refresh()
	return m, tea.Batch(waitForCompletion(m.session.Completions()), m.spinner.Tick)
}

func nextProvider(p llm.Provider) llm.Provider {
	for i, cand := range llm.Providers {
		if cand == p {
			return llm.Providers[(i+1)%len(llm.Providers)]
		}
	}
	return llm.Providers[0]
}

func (m Model) lastAnswered() (exchange, bool) {
	for i := len(m.exchanges) - 1; i >= 0; i-- {
		if m.exchanges[i].done {
			return m.exchanges[i], true
		}
	}
	return exchange{}, false
}

// insertText is the proposed script of the latest answer, or the reply
// itself when the model proposed none. Failed answers insert nothing.
func (m Model) insertText() string {
	ex, ok := m.lastAnswered()
	if !ok || ex.err != nil {
		return ""
	}
	if strings.TrimSpace(ex.insert) != "" {
		return ex.insert
	}
	return ex.reply
}

func (m Model) setFlash(s string, isErr bool) Model {
	m.flash = s
	m.flashErr = isErr
	return m
}

// ── Layout / Rendering ──────────────────────────────────────────────────────

// cw returns the usable content width.
func (m Model) cw() int {
	w := m.width - 2*pad
	if w < 20 {
		return 76
	}
	return w
}

func (m Model) layout() Model {
	w := m.cw()
	m.input.SetWidth(w)
	// Title, status, two rules, flash, footer and the frame's vertical padding.
	h := m.height - inputHeight - 8
	if h < 3 {
		h = 3
	}
	m.output.Width = w
	m.output.Height = h
	m.refresh()
	return m
}

// refresh re-renders the conversation into the viewport.
func (m *Model) refresh() {
	m.output.SetContent(m.renderExchanges())
	m.output.GotoBottom()
}

func (m Model) renderExchanges() string {
	if len(m.exchanges) == 0 {
		return dimStyle.Render("No questions yet. Type one below and press enter.")
	}
	var b strings.Builder
	for i, ex := range m.exchanges {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(promptStyle.Render("> "))
		b.WriteString(questionStyle.Render(ex.question))
		b.WriteString("\n")
		switch {
		case !ex.done:
			b.WriteString(dimStyle.Render(fmt.Sprintf("(waiting for %s)", ex.provider)))
			b.WriteString("\n")
		case ex.err != nil:
			b.WriteString(errStyle.Render(ex.reply))
			b.WriteString("\n")
		default:
			b.WriteString(renderMarkdown(ex.reply, m.cw()))
			b.WriteString("\n")
			b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %d round(s) · %s", ex.provider, ex.rounds, ex.duration.Round(time.Second))))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderMarkdown renders text as terminal-styled markdown via glamour.
// Falls back to plain text on error.
func renderMarkdown(text string, width int) string {
	if width < 40 {
		width = 76
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	// Trim trailing newlines that glamour adds.
	return strings.TrimRight(rendered, "\n")
}

// ── Views ───────────────────────────────────────────────────────────────────

func (m Model) View() string {
	var b strings.Builder
	w := m.cw()

	b.WriteString(titleStyle.Render("SIDEKICK"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", w)))
	b.WriteString("\n")

	b.WriteString(m.output.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", w)))
	b.WriteString("\n")

	switch {
	case m.confirmAction == "insert":
		b.WriteString(promptStyle.Render(fmt.Sprintf("Append proposed script to %s? (y/n)", m.scriptPath)))
	case m.pendingID != "":
		b.WriteString(m.spinner.View() + " " + dimStyle.Render(fmt.Sprintf("%s is thinking…", m.provider)))
	case m.flash != "" && m.flashErr:
		b.WriteString(errStyle.Render(m.flash))
	case m.flash != "":
		b.WriteString(onStyle.Render(m.flash))
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter ask  ctrl+j newline  alt+p provider  alt+t/d/e/s toggles  alt+c copy  alt+i insert  ctrl+l clear  esc quit"))
	return frameStyle.Render(b.String())
}

func (m Model) statusLine() string {
	toggle := func(name string, on bool) string {
		if on {
			return labelStyle.Render(name+":") + onStyle.Render("on")
		}
		return labelStyle.Render(name+":") + dimStyle.Render("off")
	}
	return strings.Join([]string{
		headerStyle.Render(m.provider.String()),
		toggle("tools", m.tools),
		toggle("dataset", m.dataset),
		toggle("last-error", m.lastError),
		toggle("script", m.script),
	}, "  ")
}
