package interpreter

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toylang/internal/errors"
	"toylang/internal/parser"
	"toylang/internal/runtime"
)

func mustParse(t *testing.T, src string) *parser.Tree {
	t.Helper()
	tree, err := parser.Parse(src)
	require.NoError(t, err, "parse %q", src)
	return tree
}

func run(t *testing.T, src string, opts Options) (string, *Interpreter, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Output = &out
	in := New(opts)
	err := in.Run(context.Background(), mustParse(t, src))
	return out.String(), in, err
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"scalar", "int x; x = 5; print(x);", "5\n"},
		{"array sum", "int a[3]; a[0]=1; a[1]=2; print(a[0]+a[1]);", "3\n"},
		{"prefix array form", "int[3] a; a[2] = 7; print(a[2]);", "7\n"},
		{"zero value", "int x; boolean b; print(x); print(b);", "0\n0\n"},
		{"booleans as digits", "print(true); print(false);", "1\n0\n"},
		{"precedence", "print(1 + 2 * 3); print((1 + 2) * 3); print(10 - 4 - 3);", "7\n9\n3\n"},
		{"truncating division", "print(7 / 2); print(-7 / 2); print(7 / -2);", "3\n-3\n-3\n"},
		{"unary", "print(- -4); print(!true); print(-(2 + 3));", "4\n0\n-5\n"},
		{"relational", "print(1 < 2); print(2 <= 2); print(3 > 4); print(4 >= 5);", "1\n1\n0\n0\n"},
		{"equality", "print(1 == 1); print(1 != 1); print(true == false); print(true != false);", "1\n0\n0\n1\n"},
		{"logic", "print(true && false); print(false || true); print(!(1 < 2) || 2 == 2);", "0\n1\n1\n"},
		{"if else", "int x; x = 3; if (x > 2) print(1); else print(2); if (x < 2) print(3);", "1\n"},
		{"dangling else", "if (true) if (false) print(1); else print(2);", "2\n"},
		{"while", "int i; i = 0; while (i < 3) { print(i); i = i + 1; }", "0\n1\n2\n"},
		{"do while runs once", "int i; i = 10; do { print(i); i = i + 1; } while (i < 3);", "10\n"},
		{"do while loop", "int i; i = 0; do i = i + 1; while (i < 4); print(i);", "4\n"},
		{"break in while", "int i; i = 0; while (true) { if (i == 3) break; i = i + 1; } print(i);", "3\n"},
		{"break in do", "int i; i = 0; do { i = i + 1; break; } while (true); print(i);", "1\n"},
		{"never entered", "while (false) { break; } print(1);", "1\n"},
		{"nested blocks", "int x; { int y; y = 2; x = y * 2; } print(x);", "4\n"},
		{"braced program", "{ int x; x = 1; print(x); }", "1\n"},
		{"loop body declarations", "int i; i = 0; while (i < 2) { int[2] a; a[i] = i; print(a[i]); i = i + 1; }", "0\n1\n"},
		{"bool array", "boolean f[2]; f[1] = true; print(f[1]);", "1\n"},
		{"wraparound", "int x; x = 9223372036854775807; print(x + 1);", "-9223372036854775808\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := run(t, tt.src, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBreakTerminatesInnermostLoop(t *testing.T) {
	src := `
int i; int j; int n;
i = 0; n = 0;
while (i < 3) {
	j = 0;
	while (true) {
		if (j == 2) break;
		j = j + 1;
		n = n + 1;
	}
	i = i + 1;
}
print(i);
print(n);
`
	got, _, err := run(t, src, Options{})
	require.NoError(t, err)
	assert.Equal(t, "3\n6\n", got)
}

func TestBreakOutsideLoopEndsRun(t *testing.T) {
	got, _, err := run(t, "print(1); { break; print(2); } print(3);", Options{})
	require.NoError(t, err)
	assert.Equal(t, "1\n", got)
}

func TestDeterminism(t *testing.T) {
	src := "int a[4]; int i; i = 0; while (i < 4) { a[i] = i * i; i = i + 1; } i = 0; do { print(a[i]); i = i + 1; } while (i < 4);"
	tree := mustParse(t, src)
	var first, second bytes.Buffer
	require.NoError(t, New(Options{Output: &first}).Run(context.Background(), tree))
	require.NoError(t, New(Options{Output: &second}).Run(context.Background(), tree))
	assert.Equal(t, "0\n1\n4\n9\n", first.String())
	assert.Equal(t, first.String(), second.String())
}

func TestEvaluationErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		cause error
		msg   string
	}{
		{"uninitialized cell", "int a[3]; a[0] = 1; print(a[2]);", runtime.ErrUninitialized, "uninitialized array cell"},
		{"out of bounds write", "int a[2]; a[5] = 1;", runtime.ErrOutOfBounds, "index out of bounds"},
		{"out of bounds read", "int a[2]; a[0] = 1; print(a[-1]);", runtime.ErrOutOfBounds, "index out of bounds"},
		{"undeclared read", "print(y);", runtime.ErrUndeclared, "undeclared identifier y"},
		{"undeclared write", "y = 1;", runtime.ErrUndeclared, "undeclared identifier y"},
		{"scalar indexed", "int x; x[0] = 1;", runtime.ErrNotArray, "not an array"},
		{"array as scalar", "int a[2]; print(a);", runtime.ErrNotScalar, "is an array"},
		{"division by zero", "print(10 / 0);", nil, "division by zero"},
		{"assign mismatch", "int x; x = true;", nil, "type mismatch"},
		{"element mismatch", "boolean f[2]; f[0] = 3;", nil, "type mismatch"},
		{"bool index", "int a[2]; a[true] = 1;", nil, "array index must be int"},
		{"int condition", "if (1) print(1);", nil, "if condition must be boolean"},
		{"while condition", "while (0) print(1);", nil, "while condition must be boolean"},
		{"arith on bool", "print(true + 1);", nil, "must be int"},
		{"not on int", "print(!1);", nil, "must be boolean"},
		{"and on int", "print(1 && true);", nil, "must be boolean"},
		{"mixed equality", "print(1 == true);", nil, "cannot compare int with boolean"},
		{"relational on bool", "print(true < false);", nil, "must be int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.src, Options{})
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.Kind(errors.EvaluationError)), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestDivisionByZeroStopsBeforeEffects(t *testing.T) {
	got, in, err := run(t, "int x; x = 4; print(x); x = 1 + 10 / 0; print(x);", Options{})
	require.Error(t, err)
	assert.Equal(t, "4\n", got)
	v, rerr := in.Environment().Read("x")
	require.NoError(t, rerr)
	assert.Equal(t, runtime.Int(4), v)
}

func TestFailedAssignmentLeavesValue(t *testing.T) {
	_, in, err := run(t, "int x; x = 7; x = true;", Options{})
	require.Error(t, err)
	v, rerr := in.Environment().Read("x")
	require.NoError(t, rerr)
	assert.Equal(t, runtime.Int(7), v)
}

func TestShortCircuit(t *testing.T) {
	got, _, err := run(t, "int a[2]; print(false && a[99] == 1); print(true || a[99] == 1);", Options{})
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n", got)

	_, _, err = run(t, "int a[2]; print(true && a[99] == 1);", Options{})
	assert.ErrorIs(t, err, runtime.ErrOutOfBounds)
}

func TestErrorLocation(t *testing.T) {
	src := "int a[2];\na[0] = 1;\nprint(a[0] / 0);\n"
	var out bytes.Buffer
	in := New(Options{Output: &out, File: "div.toy", Source: src})
	err := in.Run(context.Background(), mustParse(t, src))
	require.Error(t, err)

	var te *errors.ToyError
	require.True(t, stderrors.As(err, &te))
	assert.Equal(t, errors.SourceLocation{File: "div.toy", Line: 3, Column: 12}, te.Location)
	assert.Equal(t, "print(a[0] / 0);", te.Source)
}

func TestBoolWords(t *testing.T) {
	got, _, err := run(t, "print(true); print(1 > 2); print(3);", Options{BoolFormat: runtime.BoolWords})
	require.NoError(t, err)
	assert.Equal(t, "true\nfalse\n3\n", got)
}

func TestStepLimit(t *testing.T) {
	_, _, err := run(t, "while (true) { }", Options{MaxSteps: 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Equal(t, errors.EvaluationError, errors.TypeOf(err))
}

func TestMaxArrayLen(t *testing.T) {
	_, _, err := run(t, "int a[1000];", Options{MaxArrayLen: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the limit of 10")

	_, _, err = run(t, "int a[10]; a[9] = 1;", Options{MaxArrayLen: 10})
	assert.NoError(t, err)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := New(Options{})
	err := in.Run(ctx, mustParse(t, "while (true) { }"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.Contains(err.Error(), "run interrupted"))
}

func TestStats(t *testing.T) {
	_, in, err := run(t, "int x; int a[4]; a[1] = 2; x = a[1] + 1; print(x);", Options{})
	require.NoError(t, err)
	st := in.Stats()
	// block, seq, three statements
	assert.Equal(t, int64(5), st.Steps)
	assert.Equal(t, 2, st.Cells)
	assert.Equal(t, 1, st.Prints)
	// a[1] = 2: index, value; a[1] + 1: sum, a[1], index, 1; print(x): x
	assert.Equal(t, int64(7), st.Expressions)
}

func TestEnvironmentPersistsAcrossRuns(t *testing.T) {
	var out bytes.Buffer
	in := New(Options{Output: &out})
	require.NoError(t, in.Run(context.Background(), mustParse(t, "int x; x = 2;")))
	require.NoError(t, in.Run(context.Background(), mustParse(t, "x = x * 21; print(x);")))
	assert.Equal(t, "42\n", out.String())

	in.Reset()
	assert.Error(t, in.Run(context.Background(), mustParse(t, "print(x);")))
}

type recordingHook struct {
	kinds []parser.StmtKind
	stop  int
}

func (h *recordingHook) BeforeStmt(_ *Interpreter, s parser.Stmt) error {
	h.kinds = append(h.kinds, s.Kind)
	if h.stop > 0 && len(h.kinds) == h.stop {
		return ErrStopped
	}
	return nil
}

func TestHook(t *testing.T) {
	src := "int i; i = 0; while (i < 2) { i = i + 1; } print(i);"
	h := &recordingHook{}
	out, _, err := run(t, src, Options{Hook: h})
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
	assert.Equal(t, []parser.StmtKind{
		parser.AssignStmt, parser.WhileStmt, parser.AssignStmt, parser.AssignStmt, parser.PrintStmt,
	}, h.kinds)

	h = &recordingHook{stop: 4}
	out, _, err = run(t, src, Options{Hook: h})
	require.NoError(t, err, "ErrStopped ends the run quietly")
	assert.Empty(t, out)
}
