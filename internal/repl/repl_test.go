package repl

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toylang/internal/runtime"
)

type scriptedReader struct {
	lines   []string
	prompts []string
	history []string
}

func (r *scriptedReader) Prompt(p string) (string, error) {
	r.prompts = append(r.prompts, p)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) AppendHistory(item string) {
	r.history = append(r.history, item)
}

func TestSessionKeepsState(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(Options{Out: &out})
	ctx := context.Background()

	require.NoError(t, s.Eval(ctx, "int x; x = 20;"))
	require.NoError(t, s.Eval(ctx, "x = x + 22; print(x);"))
	assert.Equal(t, "42\n", out.String())

	err := s.Eval(ctx, "int x;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has already been declared")
}

func TestFailedParseDoesNotDeclare(t *testing.T) {
	s := NewSession(Options{Out: io.Discard})
	ctx := context.Background()
	require.Error(t, s.Eval(ctx, "int y; y = ;"))
	require.NoError(t, s.Eval(ctx, "int y; y = 1;"))
}

func TestBalanced(t *testing.T) {
	assert.True(t, Balanced("print(1);"))
	assert.False(t, Balanced("while (true) {"))
	assert.True(t, Balanced("while (true) {\n break;\n}"))
	assert.True(t, Balanced("print(1); // {"))
}

func TestLoop(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(Options{Out: &out, BoolFormat: runtime.BoolWords})
	r := &scriptedReader{lines: []string{
		"int i; boolean b[2];",
		"i = 0;",
		"while (i < 2) {",
		"  print(i);",
		"  i = i + 1;",
		"}",
		"b[1] = true;",
		"print(nope);",
		":env",
		":quit",
		"print(99);",
	}}

	require.NoError(t, s.Loop(context.Background(), r))

	got := out.String()
	assert.Contains(t, got, "0\n1\n")
	assert.Contains(t, got, "EvaluationError: undeclared identifier nope")
	assert.Contains(t, got, "boolean b[2] = [_ true]\nint i = 2\n")
	assert.NotContains(t, got, "99")
	assert.Equal(t, []string{"toy> ", "toy> ", "toy> ", promptCont, promptCont, promptCont, "toy> "}, r.prompts[:7])
	assert.Equal(t, "while (i < 2) {\n  print(i);\n  i = i + 1;\n}", r.history[2])
}

func TestCommands(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(Options{Out: &out})

	assert.False(t, s.Command(":tree"))
	assert.Contains(t, out.String(), "no input parsed yet")

	require.NoError(t, s.Eval(context.Background(), "print(1);"))
	out.Reset()
	s.Command(":tree")
	assert.Equal(t, "Program(Block(NULL, Seq(Print(IntConstant(1)), NULL)))\n", out.String())

	require.NoError(t, s.Eval(context.Background(), "int z;"))
	out.Reset()
	s.Command(":reset")
	s.Command(":env")
	assert.Equal(t, "environment reset.\n(empty)\n", out.String())
	require.NoError(t, s.Eval(context.Background(), "int z;"))

	out.Reset()
	s.Command(":bogus")
	assert.Contains(t, out.String(), "unknown command :bogus")
	assert.True(t, s.Command(":exit"))
}
