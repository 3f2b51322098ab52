package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorRendering(t *testing.T) {
	err := NewParseError("expecting ';', instead found 'print'", 2, 7).
		WithFile("prog.toy").
		WithSourceText("int x;\nx = 1 print(x);\n")

	got := err.Error()
	want := strings.Join([]string{
		"ParseError: expecting ';', instead found 'print'",
		"  at prog.toy:2:7",
		"",
		"  2 | x = 1 print(x);",
		"            ^",
	}, "\n")
	if got != want {
		t.Errorf("unexpected rendering:\n got: %q\nwant: %q", got, want)
	}
}

func TestErrorWithoutLocation(t *testing.T) {
	err := NewEvaluationError("division by zero", 0, 0)
	if got := err.Error(); got != "EvaluationError: division by zero" {
		t.Errorf("unexpected rendering %q", got)
	}
}

func TestKindMatching(t *testing.T) {
	cause := stderrors.New("index out of bounds")
	err := fmt.Errorf("run: %w", NewEvaluationError("a[5]", 1, 1).WithCause(cause))

	if !stderrors.Is(err, Kind(EvaluationError)) {
		t.Errorf("expected evaluation kind to match")
	}
	if stderrors.Is(err, Kind(ParseError)) {
		t.Errorf("parse kind must not match an evaluation error")
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("expected cause to be reachable through Unwrap")
	}
	if got := TypeOf(err); got != EvaluationError {
		t.Errorf("TypeOf = %q", got)
	}
	if got := TypeOf(cause); got != "" {
		t.Errorf("TypeOf(plain) = %q", got)
	}
}
