package path

import (
	"fmt"
	"strings"
)

type state int

const (
	stateSegmentStart state = iota
	stateBare
	stateQuoted
	stateAfterQuote
)

// SyntaxError reports a malformed path expression.
type SyntaxError struct {
	Path string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Path, e.Pos, e.Msg)
}

type lexer struct {
	input    string
	pos      int
	state    state
	current  strings.Builder
	segments []string
}

// Parse splits a dotted path into its segments. A segment wrapped in double
// quotes is taken verbatim, so `headers."Content-Type"` yields
// ["headers", "Content-Type"] and `body."a.b"` yields ["body", "a.b"].
// Quotes may only enclose a whole segment and cannot be escaped.
func Parse(input string) ([]string, error) {
	if input == "" {
		return nil, &SyntaxError{Path: input, Msg: "empty path"}
	}

	l := &lexer{input: input}
	for l.pos = 0; l.pos < len(l.input); l.pos++ {
		if err := l.step(l.input[l.pos]); err != nil {
			return nil, err
		}
	}
	if err := l.finish(); err != nil {
		return nil, err
	}
	return l.segments, nil
}

func (l *lexer) step(ch byte) error {
	switch l.state {
	case stateSegmentStart:
		switch ch {
		case '"':
			l.state = stateQuoted
		case '.':
			return l.errorf("empty segment")
		default:
			l.current.WriteByte(ch)
			l.state = stateBare
		}
	case stateBare:
		switch ch {
		case '.':
			l.emit()
		case '"':
			return l.errorf("unexpected quote inside unquoted segment")
		default:
			l.current.WriteByte(ch)
		}
	case stateQuoted:
		if ch == '"' {
			l.state = stateAfterQuote
			return nil
		}
		l.current.WriteByte(ch)
	case stateAfterQuote:
		if ch != '.' {
			return l.errorf("expected '.' after quoted segment")
		}
		l.emit()
	}
	return nil
}

func (l *lexer) finish() error {
	switch l.state {
	case stateSegmentStart:
		return l.errorf("trailing '.'")
	case stateQuoted:
		return l.errorf("unterminated quote")
	}
	l.emit()
	return nil
}

func (l *lexer) emit() {
	l.segments = append(l.segments, l.current.String())
	l.current.Reset()
	l.state = stateSegmentStart
}

func (l *lexer) errorf(msg string) error {
	return &SyntaxError{Path: l.input, Pos: l.pos, Msg: msg}
}

func quote(seg string) string {
	if seg == "" || strings.Contains(seg, ".") {
		return `"` + seg + `"`
	}
	return seg
}

// Join builds a path Parse splits back into segs, quoting segments that are
// empty or contain a dot. Quotes cannot be escaped, so a segment containing
// '"' is rejected with a *SyntaxError.
func Join(segs ...string) (string, error) {
	quoted := make([]string, len(segs))
	pos := 0
	for i, s := range segs {
		if j := strings.IndexByte(s, '"'); j >= 0 {
			return "", &SyntaxError{
				Path: strings.Join(segs, "."),
				Pos:  pos + j,
				Msg:  "segment contains a quote",
			}
		}
		quoted[i] = quote(s)
		pos += len(s) + 1
	}
	return strings.Join(quoted, "."), nil
}
