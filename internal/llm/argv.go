package llm

import (
	"errors"
	"fmt"
	"strings"
)

// shellMeta is rejected outside quotes. No shell ever sees the arguments.
const shellMeta = ";|&<>$`"

// SplitArgs tokenizes a configured extra_args string into argv entries.
// Single quotes are literal, double quotes allow backslash escapes, and a
// bare backslash escapes the next byte.
func SplitArgs(s string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		inArg bool
		quote byte
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\\' && quote != '\'':
			i++
			if i == len(s) {
				return nil, errors.New("invalid extra_args: trailing escape")
			}
			cur.WriteByte(s[i])
			inArg = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inArg = true
		case strings.IndexByte(shellMeta, ch) >= 0:
			return nil, fmt.Errorf("invalid extra_args: shell metacharacter %q at offset %d", string(ch), i)
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteByte(ch)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("invalid extra_args: unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
