package appctx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCaptureReadsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := &FileSource{
		Paths: Paths{
			Dataset:     writeFile(t, dir, "dataset.txt", "nobs=50\n"),
			LastError:   writeFile(t, dir, "error.txt", "singular matrix\n"),
			Script:      writeFile(t, dir, "script.inp", "open a\nols y x\nprint y\n"),
			CommandLog:  writeFile(t, dir, "cmd.log", "1\n2\n3\n"),
			ModelSimple: writeFile(t, dir, "simple.txt", "R2=0.5"),
			ModelFull:   filepath.Join(dir, "missing.txt"),
		},
		Selection: LineRange{First: 2, Last: 3},
	}

	snap := src.Capture()
	if snap.Dataset != "nobs=50\n" || snap.LastError != "singular matrix\n" {
		t.Fatalf("unexpected dataset/error %+v", snap)
	}
	if snap.ScriptFull != "open a\nols y x\nprint y\n" {
		t.Fatalf("unexpected script %q", snap.ScriptFull)
	}
	if snap.ScriptSelection != "ols y x\nprint y\n" {
		t.Fatalf("unexpected selection %q", snap.ScriptSelection)
	}
	if snap.CommandLog != "1\n2\n3\n" || snap.LastModelSimple != "R2=0.5" {
		t.Fatalf("unexpected log/model %+v", snap)
	}
	if snap.LastModelFull != "" {
		t.Fatalf("expected missing file to be empty, got %q", snap.LastModelFull)
	}
}

func TestCaptureCapsSizes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var log strings.Builder
	for log.Len() <= MaxCommandLog+100 {
		log.WriteString("command line of some length\n")
	}
	src := &FileSource{Paths: Paths{
		Script:     writeFile(t, dir, "script.inp", strings.Repeat("x", MaxScript+10)),
		CommandLog: writeFile(t, dir, "cmd.log", "FIRST\n"+log.String()+"LAST\n"),
	}}

	snap := src.Capture()
	if len(snap.ScriptFull) != MaxScript {
		t.Fatalf("expected script capped at %d, got %d", MaxScript, len(snap.ScriptFull))
	}
	if len(snap.CommandLog) > MaxCommandLog {
		t.Fatalf("expected command log capped at %d, got %d", MaxCommandLog, len(snap.CommandLog))
	}
	if strings.Contains(snap.CommandLog, "FIRST") || !strings.HasSuffix(snap.CommandLog, "LAST\n") {
		t.Fatalf("expected the newest part of the log to be kept")
	}
	if !strings.HasPrefix(snap.CommandLog, "command line") {
		t.Fatalf("expected the tail to start on a line boundary, got %q", snap.CommandLog[:20])
	}
}

func TestSections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := &FileSource{Paths: Paths{
		Dataset: writeFile(t, dir, "dataset.txt", "  \n"),
		Script:  writeFile(t, dir, "script.inp", "a\nb\nc\n"),
	}}

	got := src.Sections(true, true, true)
	want := []string{
		"[Dataset]\n(no dataset loaded)\n",
		"[Last error]\n(none)\n",
		"[Script] (full)\na\nb\nc\n\n",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("section %d: got %q want %q", i, got[i], want[i])
		}
	}

	src.Selection = LineRange{First: 2, Last: 2}
	if got := src.ScriptSection(); got != "[Script] (selection)\nb\n\n" {
		t.Fatalf("unexpected selection section %q", got)
	}
	if got := src.Sections(false, false, false); len(got) != 0 {
		t.Fatalf("expected no sections, got %v", got)
	}
}

func TestParseLineRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    LineRange
		wantErr bool
	}{
		{in: "", want: LineRange{}},
		{in: "7", want: LineRange{First: 7, Last: 7}},
		{in: "3-9", want: LineRange{First: 3, Last: 9}},
		{in: " 3 - 9 ", want: LineRange{First: 3, Last: 9}},
		{in: "0", wantErr: true},
		{in: "9-3", wantErr: true},
		{in: "a-b", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseLineRange(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseLineRange(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseLineRange(%q) = %+v, %v; want %+v", tc.in, got, err, tc.want)
		}
	}
}

func TestSelectLinesOutOfRange(t *testing.T) {
	t.Parallel()

	if got := selectLines("a\nb\n", LineRange{First: 5, Last: 6}); got != "" {
		t.Fatalf("expected empty selection, got %q", got)
	}
	if got := selectLines("a\nb", LineRange{First: 2, Last: 9}); got != "b" {
		t.Fatalf("expected clamped selection, got %q", got)
	}
}
