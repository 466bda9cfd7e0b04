package llm

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the Invoker wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrExecutableNotFound = errors.New("executable not found")
	ErrTimeout            = errors.New("timed out")
	ErrProviderFailed     = errors.New("provider failed")
	ErrIO                 = errors.New("i/o error")
	ErrEmptyReply         = errors.New("empty reply")
	ErrReplyTooLarge      = errors.New("reply too large")
	ErrParse              = errors.New("unparseable reply")
	ErrInvalidInput       = errors.New("invalid input")
)

// Error is a classified invocation failure. Msg is the user-facing text and
// may carry the child's captured output verbatim.
type Error struct {
	Kind     error
	Provider Provider
	Msg      string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, p Provider, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: p, Msg: fmt.Sprintf(format, args...)}
}

// withOutput appends captured stderr (preferred) or stdout for diagnosis.
func withOutput(msg string, stdout, stderr []byte) string {
	switch {
	case len(stderr) > 0:
		return msg + " (stderr follows)\n" + string(stderr)
	case len(stdout) > 0:
		return msg + " (stdout follows)\n" + string(stdout)
	default:
		return msg
	}
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrExecutableNotFound, "executable_not_found"},
	{ErrTimeout, "timeout"},
	{ErrProviderFailed, "provider_failed"},
	{ErrIO, "io_error"},
	{ErrEmptyReply, "empty_reply"},
	{ErrReplyTooLarge, "reply_too_large"},
	{ErrParse, "parse_error"},
	{ErrInvalidInput, "invalid_input"},
}

// KindName returns a stable identifier for err's kind: "" for nil and
// "other" for errors outside this package's taxonomy.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "other"
}
