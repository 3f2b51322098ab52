// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of a failed run.
type ErrorType string

const (
	LexicalError    ErrorType = "LexicalError"
	ParseError      ErrorType = "ParseError"
	EvaluationError ErrorType = "EvaluationError"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	file := l.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", file, l.Line, l.Column)
}

// ToyError is the single error shape surfaced to the driver. Every failure
// of a run is fatal, so it only carries text plus enough context to point at
// the offending source line.
type ToyError struct {
	Type     ErrorType
	Message  string
	Location SourceLocation
	Source   string // The source line where the error occurred
	cause    error
}

// Error implements the error interface
func (e *ToyError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))

	if e.Location.Line > 0 {
		sb.WriteString(fmt.Sprintf("\n  at %s", e.Location))

		if e.Source != "" {
			gutter := fmt.Sprintf("  %d | ", e.Location.Line)
			sb.WriteString(fmt.Sprintf("\n\n%s%s\n", gutter, e.Source))
			sb.WriteString(strings.Repeat(" ", len(gutter)))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^")
		}
	}

	return sb.String()
}

// Unwrap exposes the underlying cause, if any.
func (e *ToyError) Unwrap() error {
	return e.cause
}

// Is reports a match against another *ToyError of the same Type, so callers
// can test the category with errors.Is(err, errors.Kind(errors.ParseError)).
func (e *ToyError) Is(target error) bool {
	t, ok := target.(*ToyError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// Kind returns a sentinel matching any error of the given type.
func Kind(t ErrorType) error {
	return &ToyError{Type: t}
}

// TypeOf returns the category of err, or "" when err is not a ToyError.
func TypeOf(err error) ErrorType {
	var te *ToyError
	if stderrors.As(err, &te) {
		return te.Type
	}
	return ""
}

func newError(t ErrorType, message string, line, column int) *ToyError {
	return &ToyError{
		Type:    t,
		Message: message,
		Location: SourceLocation{
			Line:   line,
			Column: column,
		},
	}
}

// NewLexicalError creates a new lexical error
func NewLexicalError(message string, line, column int) *ToyError {
	return newError(LexicalError, message, line, column)
}

// NewParseError creates a new parse error
func NewParseError(message string, line, column int) *ToyError {
	return newError(ParseError, message, line, column)
}

// NewEvaluationError creates a new evaluation error
func NewEvaluationError(message string, line, column int) *ToyError {
	return newError(EvaluationError, message, line, column)
}

// WithFile records the file the error was raised in.
func (e *ToyError) WithFile(file string) *ToyError {
	e.Location.File = file
	return e
}

// WithSource adds source code context to the error
func (e *ToyError) WithSource(source string) *ToyError {
	e.Source = source
	return e
}

// WithSourceText picks the offending line out of the full program text.
func (e *ToyError) WithSourceText(text string) *ToyError {
	if e.Location.Line <= 0 || text == "" {
		return e
	}
	lines := strings.Split(text, "\n")
	if e.Location.Line <= len(lines) {
		e.Source = strings.TrimRight(lines[e.Location.Line-1], "\r")
	}
	return e
}

// WithCause wraps the lower-level error that triggered this one.
func (e *ToyError) WithCause(cause error) *ToyError {
	e.cause = cause
	return e
}
