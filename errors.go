package tinkersheet

import (
	"fmt"
	"strings"
)

// ParseError reports a host document that cannot be turned into sheet
// blocks. Fence errors carry the fence's info string and, when one token is
// to blame, that token, so Format can point at it.
type ParseError struct {
	File    string // host document path
	Line    int    // 1-indexed line of the fence
	UID     string // block uid, when the fence declares a usable one
	Info    string // fence info string, e.g. "sheet uid=budget height=tall"
	Token   string // offending token within Info
	Message string
	Hint    string
	First   int // line of the earlier declaration, for duplicate uids
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// Column is the 1-indexed column of Token on the fence line, or 0.
func (e *ParseError) Column() int {
	if e.Token == "" || e.Info == "" {
		return 0
	}
	i := strings.Index(e.fence(), e.Token)
	if i < 0 {
		return 0
	}
	return i + 1
}

func (e *ParseError) fence() string {
	return "```" + e.Info
}

// Format renders the error for a terminal: the fence line with the bad
// token underlined, the hint, and the earlier declaration of a duplicate.
func (e *ParseError) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ %s:%d: %s\n", e.File, e.Line, e.Message)

	if e.Info != "" {
		prefix := fmt.Sprintf("  %4d | ", e.Line)
		b.WriteString("\n" + prefix + e.fence() + "\n")
		if col := e.Column(); col > 0 {
			b.WriteString(strings.Repeat(" ", len(prefix)+col-1))
			b.WriteString(strings.Repeat("^", len(e.Token)) + "\n")
		}
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\n💡 %s\n", e.Hint)
	}
	if e.First > 0 {
		fmt.Fprintf(&b, "🔗 sheet %q first declared at line %d\n", e.UID, e.First)
	}
	return b.String()
}

// fenceError starts a ParseError for one sheet fence.
func fenceError(file string, cb *CodeBlock, format string, args ...any) *ParseError {
	return &ParseError{
		File:    file,
		Line:    cb.Line,
		UID:     cb.Metadata[KeyUID],
		Info:    cb.Info,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ParseError) at(token string) *ParseError {
	e.Token = token
	return e
}

func (e *ParseError) hint(h string) *ParseError {
	e.Hint = h
	return e
}
