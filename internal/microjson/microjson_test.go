package microjson

import (
	"math"
	"testing"
)

func TestMatchClosingSkipsQuotedDelimiters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		open  byte
		close byte
		want  int
	}{
		{name: "brace inside string", in: `{"a":"x}y","b":{}}`, open: '{', close: '}', want: 17},
		{name: "escaped quote inside string", in: `{"a":"q\"}","b":1}`, open: '{', close: '}', want: 17},
		{name: "nested arrays", in: `[[1,2],["]"]]`, open: '[', close: ']', want: 12},
		{name: "unbalanced", in: `{"a":{}`, open: '{', close: '}', want: -1},
		{name: "not at opener", in: `x{}`, open: '{', close: '}', want: -1},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := MatchClosing(tc.in, 0, tc.open, tc.close)
			if got != tc.want {
				t.Fatalf("MatchClosing(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseStringDecodesEscapes(t *testing.T) {
	t.Parallel()

	got, next, ok := ParseString(`  "a\nb\tc" rest`, 0)
	if !ok {
		t.Fatalf("expected string to parse")
	}
	if got != "a\nb\tc" {
		t.Fatalf("unexpected value %q", got)
	}
	if next != 11 {
		t.Fatalf("expected next position 11, got %d", next)
	}

	got, _, ok = ParseString(`"q\"\\\/\b\f\r"`, 0)
	if !ok || got != "q\"\\/\b\f\r" {
		t.Fatalf("unexpected value %q ok=%v", got, ok)
	}
}

func TestParseStringUnicodeEscapes(t *testing.T) {
	t.Parallel()

	got, _, ok := ParseString(`"caf\u00e9"`, 0)
	if !ok {
		t.Fatalf("expected string to parse")
	}
	if got != "caf\xe9" {
		t.Fatalf("expected single byte 0xe9, got %q", got)
	}

	got, _, ok = ParseString(`"x\u1234y"`, 0)
	if !ok || got != "x?y" {
		t.Fatalf("expected placeholder for non-ASCII escape, got %q ok=%v", got, ok)
	}

	got, _, ok = ParseString(`"x\uZZy"`, 0)
	if !ok || got != "x?ZZy" {
		t.Fatalf("expected placeholder for malformed escape, got %q ok=%v", got, ok)
	}
}

func TestParseStringFailsWithoutClosingQuote(t *testing.T) {
	t.Parallel()

	for _, in := range []string{`"abc`, `"abc\"`, `abc"`, ``} {
		if _, _, ok := ParseString(in, 0); ok {
			t.Fatalf("expected %q to fail", in)
		}
	}
}

func TestParseInt(t *testing.T) {
	t.Parallel()

	v, next, ok := ParseInt(" 42,", 0)
	if !ok || v != 42 || next != 3 {
		t.Fatalf("got v=%d next=%d ok=%v", v, next, ok)
	}
	v, _, ok = ParseInt("-7}", 0)
	if !ok || v != -7 {
		t.Fatalf("got v=%d ok=%v", v, ok)
	}
	if _, _, ok := ParseInt(`"3"`, 0); ok {
		t.Fatalf("expected quoted number to fail")
	}
	if _, _, ok := ParseInt("-", 0); ok {
		t.Fatalf("expected bare sign to fail")
	}
	v, _, ok = ParseInt("99999999999999999999999", 0)
	if !ok || v != math.MaxInt {
		t.Fatalf("expected saturation, got v=%d ok=%v", v, ok)
	}
}

func TestFindFieldValueStartRequiresColon(t *testing.T) {
	t.Parallel()

	s := `{"note":"name", "name" : "tool"}`
	p := FindFieldValueStart(s, "name")
	if p < 0 {
		t.Fatalf("expected field to be found")
	}
	v, _, ok := ParseString(s, p)
	if !ok || v != "tool" {
		t.Fatalf("expected value tool, got %q ok=%v", v, ok)
	}
	if FindFieldValueStart(s, "missing") != -1 {
		t.Fatalf("expected missing field to return -1")
	}
}

func TestExtractHelpers(t *testing.T) {
	t.Parallel()

	s := `prose {"text":"hi","args":{"n":3},"list":[{"a":1},{"b":"]"}],"num":5} trailer`

	if v, ok := ExtractStringField(s, "text"); !ok || v != "hi" {
		t.Fatalf("ExtractStringField = %q, %v", v, ok)
	}
	if _, ok := ExtractStringField(s, "num"); ok {
		t.Fatalf("expected non-string field to be not found")
	}
	if v, ok := ExtractObjectSpan(s, "args"); !ok || v != `{"n":3}` {
		t.Fatalf("ExtractObjectSpan = %q, %v", v, ok)
	}
	if _, ok := ExtractObjectSpan(s, "list"); ok {
		t.Fatalf("expected array field to be rejected as object")
	}
	if v, ok := ExtractArraySpan(s, "list"); !ok || v != `[{"a":1},{"b":"]"}]` {
		t.Fatalf("ExtractArraySpan = %q, %v", v, ok)
	}
}

func TestObjectsWalksInOrder(t *testing.T) {
	t.Parallel()

	var got []string
	Objects(`[ {"a":1} , {"b":{"c":2}},{"d":"}"} ]`, func(obj string) bool {
		got = append(got, obj)
		return true
	})
	want := []string{`{"a":1}`, `{"b":{"c":2}}`, `{"d":"}"}`}
	if len(got) != len(want) {
		t.Fatalf("expected %d objects, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("object %d: got %q want %q", i, got[i], want[i])
		}
	}

	got = nil
	Objects(`[{"a":1}, 5, {"b":2}]`, func(obj string) bool {
		got = append(got, obj)
		return true
	})
	if len(got) != 1 {
		t.Fatalf("expected walk to stop at non-object element, got %v", got)
	}
}
