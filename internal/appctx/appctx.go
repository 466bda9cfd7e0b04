// Package appctx captures application context from files on disk: the
// dataset summary, last error, script, command log and model summaries a
// host application leaves behind.
package appctx

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sidekick/internal/tools"
)

const (
	// MaxScript bounds script text, whether a selection or the whole file.
	MaxScript = 32000
	// MaxCommandLog bounds the command log; the newest bytes are kept.
	MaxCommandLog = 200000
)

// Paths names the files context is read from. Empty means unavailable.
type Paths struct {
	Dataset     string
	LastError   string
	Script      string
	CommandLog  string
	ModelSimple string
	ModelFull   string
}

// LineRange selects lines First..Last of the script, 1-based and inclusive.
// The zero value selects nothing.
type LineRange struct {
	First, Last int
}

func (r LineRange) IsZero() bool { return r.First == 0 && r.Last == 0 }

// ParseLineRange accepts "N" or "N-M".
func ParseLineRange(s string) (LineRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LineRange{}, nil
	}
	first, last, found := strings.Cut(s, "-")
	a, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || a < 1 {
		return LineRange{}, fmt.Errorf("invalid line range %q", s)
	}
	b := a
	if found {
		b, err = strconv.Atoi(strings.TrimSpace(last))
		if err != nil || b < a {
			return LineRange{}, fmt.Errorf("invalid line range %q", s)
		}
	}
	return LineRange{First: a, Last: b}, nil
}

// FileSource reads context files on every Capture, so each question sees
// the files as they are when it is asked.
type FileSource struct {
	Paths     Paths
	Selection LineRange
}

// Capture implements worker.SnapshotSource.
func (f *FileSource) Capture() tools.Snapshot {
	script, _ := readFile(f.Paths.Script)
	snap := tools.Snapshot{
		Dataset:         load(f.Paths.Dataset),
		LastError:       load(f.Paths.LastError),
		ScriptFull:      truncate(script, MaxScript),
		ScriptSelection: truncate(selectLines(script, f.Selection), MaxScript),
		CommandLog:      readTail(f.Paths.CommandLog, MaxCommandLog),
		LastModelSimple: load(f.Paths.ModelSimple),
		LastModelFull:   load(f.Paths.ModelFull),
	}
	return snap
}

// Sections returns the prompt context blocks the caller asked for.
func (f *FileSource) Sections(dataset, lastError, script bool) []string {
	var out []string
	if dataset {
		out = append(out, f.DatasetSection())
	}
	if lastError {
		out = append(out, f.LastErrorSection())
	}
	if script {
		out = append(out, f.ScriptSection())
	}
	return out
}

func (f *FileSource) DatasetSection() string {
	if s := strings.TrimSpace(load(f.Paths.Dataset)); s != "" {
		return "[Dataset]\n" + s + "\n"
	}
	return "[Dataset]\n(no dataset loaded)\n"
}

func (f *FileSource) LastErrorSection() string {
	if s := strings.TrimSpace(load(f.Paths.LastError)); s != "" {
		return "[Last error]\n" + s + "\n"
	}
	return "[Last error]\n(none)\n"
}

func (f *FileSource) ScriptSection() string {
	if f.Paths.Script == "" {
		return "[Script]\n(no script configured)\n"
	}
	text, err := readFile(f.Paths.Script)
	if err != nil {
		return "[Script]\n(unavailable)\n"
	}
	kind := "full"
	if !f.Selection.IsZero() {
		kind = "selection"
		text = selectLines(text, f.Selection)
	}
	if len(text) > MaxScript {
		return fmt.Sprintf("[Script] (%s; truncated)\n%s\n", kind, truncate(text, MaxScript))
	}
	return fmt.Sprintf("[Script] (%s)\n%s\n", kind, text)
}

// load reads a whole context file; missing or unreadable files yield "".
func load(path string) string {
	s, _ := readFile(path)
	return s
}

func readFile(path string) (string, error) {
	if path == "" {
		return "", os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readTail reads the last max bytes of path, starting at a line boundary
// when it has to cut.
func readTail(path string, max int64) string {
	if path == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if info.Size() <= max {
		data, err := io.ReadAll(f)
		if err != nil {
			return ""
		}
		return string(data)
	}
	if _, err := f.Seek(info.Size()-max, io.SeekStart); err != nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(f, max))
	if err != nil {
		return ""
	}
	s := string(data)
	if i := strings.IndexByte(s, '\n'); i >= 0 && i+1 < len(s) {
		s = s[i+1:]
	}
	return s
}

// selectLines returns the lines of s in r. A zero range selects nothing.
func selectLines(s string, r LineRange) string {
	if r.IsZero() || s == "" {
		return ""
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if r.First > len(lines) {
		return ""
	}
	last := r.Last
	if last > len(lines) {
		last = len(lines)
	}
	return strings.Join(lines[r.First-1:last], "")
}

func truncate(s string, max int) string {
	return tools.Truncate(s, max)
}
