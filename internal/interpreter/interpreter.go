package interpreter

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"toylang/internal/errors"
	"toylang/internal/lexer"
	"toylang/internal/parser"
	"toylang/internal/runtime"
)

// ErrStepLimit is returned (wrapped) when a run exceeds Options.MaxSteps.
var ErrStepLimit = stderrors.New("step limit exceeded")

// Options configures an Interpreter. The zero value writes nowhere and runs
// without limits.
type Options struct {
	Output      io.Writer
	BoolFormat  runtime.BoolFormat
	MaxSteps    int64 // 0 = unlimited
	MaxArrayLen int   // 0 = unlimited
	Logger      *slog.Logger
	File        string
	Source      string
	Hook        Hook
}

// Hook observes a run. BeforeStmt is called ahead of every statement other
// than blocks and sequences; a non-nil error stops the run and is returned
// from Run unchanged.
type Hook interface {
	BeforeStmt(in *Interpreter, s parser.Stmt) error
}

// ErrStopped is what a Hook returns to end a run early without a failure.
var ErrStopped = stderrors.New("run stopped")

// Stats counts the work done by the most recent run.
type Stats struct {
	Steps       int64
	Expressions int64
	Cells       int
	Prints      int
}

// Interpreter walks a syntax tree against an Environment. It is not safe
// for concurrent use; give each goroutine its own instance.
type Interpreter struct {
	opts  Options
	env   *runtime.Environment
	tree  *parser.Tree
	ctx   context.Context
	stats Stats
	log   *slog.Logger
}

// New returns an Interpreter with a fresh environment.
func New(opts Options) *Interpreter {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Interpreter{
		opts: opts,
		env:  runtime.NewEnvironment(),
		log:  logger,
	}
}

// Environment exposes the interpreter's storage. The REPL keeps it across
// runs so that later lines see earlier declarations.
func (in *Interpreter) Environment() *runtime.Environment { return in.env }

// Reset discards every binding.
func (in *Interpreter) Reset() { in.env = runtime.NewEnvironment() }

// Stats returns the counters of the last Run.
func (in *Interpreter) Stats() Stats { return in.stats }

// Run executes tree. Output is written as each print executes, so a failing
// run has already produced the lines printed before the error.
func (in *Interpreter) Run(ctx context.Context, tree *parser.Tree) error {
	if ctx == nil {
		ctx = context.Background()
	}
	in.ctx = ctx
	in.tree = tree
	in.stats = Stats{}
	start := in.env.Cells()

	_, err := in.exec(tree.Root())
	if stderrors.Is(err, ErrStopped) {
		err = nil
	}
	in.stats.Cells = in.env.Cells() - start
	in.log.Debug("run finished",
		"steps", in.stats.Steps,
		"expressions", in.stats.Expressions,
		"cells", in.stats.Cells,
		"error", err != nil)
	return err
}

// Exec scans, parses and runs src with a fresh interpreter. Errors carry
// opts.File and the offending source line.
func Exec(ctx context.Context, src string, opts Options) (Stats, error) {
	tokens, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		var te *errors.ToyError
		if stderrors.As(err, &te) {
			te.WithFile(opts.File)
		}
		return Stats{}, err
	}
	tree, err := parser.NewParserWithSource(tokens, src, opts.File).Parse()
	if err != nil {
		return Stats{}, err
	}
	opts.Source = src
	in := New(opts)
	err = in.Run(ctx, tree)
	return in.Stats(), err
}

func (in *Interpreter) fail(pos parser.Pos, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	e := errors.NewEvaluationError(msg, pos.Line, pos.Column).WithFile(in.opts.File)
	if in.opts.Source != "" {
		e = e.WithSourceText(in.opts.Source)
	}
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

func (in *Interpreter) envError(pos parser.Pos, err error) error {
	return in.fail(pos, err, "%s", err.Error())
}

func kindOf(c parser.TypeCode) runtime.Kind {
	if c == parser.TypeBool {
		return runtime.KindBool
	}
	return runtime.KindInt
}
