// Package microjson scrapes known fields out of JSON-ish text.
//
// It is not a parser. Replies come from language models that may wrap an
// object in prose, emit stray escapes or omit fields, so every helper reports
// "not found" instead of failing and never validates the surrounding
// structure. Field lookup is not scoped to a nesting level: callers slice
// the relevant object span first.
package microjson

import (
	"errors"
	"strconv"
	"strings"
)

// placeholder replaces \u escapes outside the 00XX range.
const placeholder = '?'

// SkipWhitespace returns the first position at or after pos that is not
// ASCII whitespace.
func SkipWhitespace(s string, pos int) int {
	if pos < 0 {
		return pos
	}
	for pos < len(s) && isSpace(s[pos]) {
		pos++
	}
	return pos
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// ParseString decodes the quoted string starting at pos (after optional
// whitespace). It returns the decoded value and the position just past the
// closing quote.
func ParseString(s string, pos int) (string, int, bool) {
	p := SkipWhitespace(s, pos)
	if p < 0 || p >= len(s) || s[p] != '"' {
		return "", pos, false
	}
	p++

	var b strings.Builder
	for p < len(s) {
		c := s[p]
		p++
		switch c {
		case '"':
			return b.String(), p, true
		case '\\':
			if p >= len(s) {
				return "", pos, false
			}
			e := s[p]
			p++
			switch e {
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				if p+4 > len(s) || !isHex4(s[p:p+4]) {
					b.WriteByte(placeholder)
					continue
				}
				if s[p] == '0' && s[p+1] == '0' {
					b.WriteByte(hexVal(s[p+2])<<4 | hexVal(s[p+3]))
				} else {
					b.WriteByte(placeholder)
				}
				p += 4
			default:
				// \" \\ \/ and anything unknown keep the escaped byte.
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", pos, false
}

func isHex4(s string) bool {
	for i := 0; i < 4; i++ {
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// ParseInt reads a decimal integer at pos (after optional whitespace), using
// the longest run of digits with an optional sign. Values outside the int
// range saturate.
func ParseInt(s string, pos int) (int, int, bool) {
	p := SkipWhitespace(s, pos)
	if p < 0 || p >= len(s) {
		return 0, pos, false
	}
	start := p
	if s[p] == '+' || s[p] == '-' {
		p++
	}
	digits := p
	for p < len(s) && s[p] >= '0' && s[p] <= '9' {
		p++
	}
	if p == digits {
		return 0, pos, false
	}
	v, err := strconv.ParseInt(s[start:p], 10, 0)
	// On ErrRange v already holds the saturated bound.
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, pos, false
	}
	return int(v), p, true
}

// MatchClosing returns the position of the delimiter closing the span that
// opens at pos, or -1. Delimiters inside quoted strings are ignored.
func MatchClosing(s string, pos int, open, close byte) int {
	if pos < 0 || pos >= len(s) || s[pos] != open {
		return -1
	}
	depth := 0
	inStr, esc := false, false
	for i := pos; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// FindFieldValueStart locates the first `"field"` followed by a colon and
// returns the position of its value, or -1.
func FindFieldValueStart(s, field string) int {
	pat := `"` + field + `"`
	from := 0
	for {
		i := strings.Index(s[from:], pat)
		if i < 0 {
			return -1
		}
		q := SkipWhitespace(s, from+i+len(pat))
		if q < len(s) && s[q] == ':' {
			return SkipWhitespace(s, q+1)
		}
		from += i + 1
	}
}

// ExtractStringField returns the decoded string value of field.
func ExtractStringField(s, field string) (string, bool) {
	p := FindFieldValueStart(s, field)
	if p < 0 {
		return "", false
	}
	v, _, ok := ParseString(s, p)
	return v, ok
}

// ExtractObjectSpan returns the `{...}` value of field, braces included.
func ExtractObjectSpan(s, field string) (string, bool) {
	return extractSpan(s, field, '{', '}')
}

// ExtractArraySpan returns the `[...]` value of field, brackets included.
func ExtractArraySpan(s, field string) (string, bool) {
	return extractSpan(s, field, '[', ']')
}

func extractSpan(s, field string, open, close byte) (string, bool) {
	p := FindFieldValueStart(s, field)
	if p < 0 || p >= len(s) || s[p] != open {
		return "", false
	}
	end := MatchClosing(s, p, open, close)
	if end < 0 {
		return "", false
	}
	return s[p : end+1], true
}

// Objects calls fn with each top-level object of an array span, in order.
// Walking stops at the first element that is not a well-formed object, or
// when fn returns false.
func Objects(array string, fn func(obj string) bool) {
	if len(array) < 2 || array[0] != '[' {
		return
	}
	end := len(array) - 1
	p := 1
	for p < end {
		p = SkipWhitespace(array, p)
		if p >= end {
			return
		}
		if array[p] == ',' {
			p++
			continue
		}
		if array[p] != '{' {
			return
		}
		q := MatchClosing(array, p, '{', '}')
		if q < 0 || q > end {
			return
		}
		if !fn(array[p : q+1]) {
			return
		}
		p = q + 1
	}
}
