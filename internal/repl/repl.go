// internal/repl/repl.go
package repl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/peterh/liner"

	"toylang/internal/formatter"
	"toylang/internal/interpreter"
	"toylang/internal/lexer"
	"toylang/internal/parser"
	"toylang/internal/runtime"
)

const (
	promptCont = "...  "
	helpText   = `REPL commands:
  :help     Show this help
  :quit     Exit the REPL (also :exit or Ctrl+D)
  :reset    Forget every declaration
  :env      List declared names and their values
  :tree     Show the syntax tree of the last input
`
)

// LineReader is the part of liner.State the loop depends on.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Options configures a Session.
type Options struct {
	Out         io.Writer
	Prompt      string
	HistoryFile string
	BoolFormat  runtime.BoolFormat
	MaxSteps    int64
	MaxArrayLen int
	Logger      *slog.Logger
}

// Session keeps one environment and one declared-name set alive across
// inputs, so names declared on one line are usable on the next.
type Session struct {
	opts     Options
	interp   *interpreter.Interpreter
	declared *parser.Declared
	last     *parser.Tree
}

func NewSession(opts Options) *Session {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Prompt == "" {
		opts.Prompt = "toy> "
	}
	s := &Session{opts: opts}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.interp = interpreter.New(interpreter.Options{
		Output:      s.opts.Out,
		BoolFormat:  s.opts.BoolFormat,
		MaxSteps:    s.opts.MaxSteps,
		MaxArrayLen: s.opts.MaxArrayLen,
		Logger:      s.opts.Logger,
	})
	s.declared = parser.NewDeclared()
	s.last = nil
}

// Eval runs one complete input against the session state. A failed parse
// leaves the declared set untouched.
func (s *Session) Eval(ctx context.Context, src string) error {
	tokens, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		return err
	}
	tree, err := parser.NewParserWithSource(tokens, src, "<repl>").WithSession(s.declared).Parse()
	if err != nil {
		return err
	}
	s.last = tree
	return s.interp.Run(ctx, tree)
}

// Command handles a ':' line and reports whether the REPL should exit.
func (s *Session) Command(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	out := s.opts.Out
	switch strings.ToLower(fields[0]) {
	case ":help":
		fmt.Fprint(out, helpText)
	case ":quit", ":exit":
		return true
	case ":reset":
		s.reset()
		fmt.Fprintln(out, "environment reset.")
	case ":env":
		s.printEnv()
	case ":tree":
		if s.last == nil {
			fmt.Fprintln(out, "no input parsed yet.")
			return false
		}
		fmt.Fprintln(out, formatter.Dump(s.last))
	default:
		fmt.Fprintf(out, "unknown command %s (try :help)\n", fields[0])
	}
	return false
}

func (s *Session) printEnv() {
	snap := s.interp.Environment().Snapshot()
	if len(snap) == 0 {
		fmt.Fprintln(s.opts.Out, "(empty)")
		return
	}
	for _, b := range snap {
		fmt.Fprintln(s.opts.Out, b.Format(s.opts.BoolFormat))
	}
}

// Balanced reports whether every '{' in src has been closed. Comments are
// skipped so a brace inside one does not hold the input open.
func Balanced(src string) bool {
	depth := 0
	for _, line := range strings.Split(src, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
	}
	return depth <= 0
}

// Loop reads inputs from r until EOF or :quit. Errors of an input are
// reported and the loop continues.
func (s *Session) Loop(ctx context.Context, r LineReader) error {
	for {
		src, ok, err := s.read(r)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(s.opts.Out)
			return nil
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		r.AppendHistory(src)
		if strings.HasPrefix(trimmed, ":") {
			if s.Command(trimmed) {
				return nil
			}
			continue
		}
		if err := s.Eval(ctx, src); err != nil {
			fmt.Fprintln(s.opts.Out, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Session) read(r LineReader) (string, bool, error) {
	var b strings.Builder
	for {
		prompt := s.opts.Prompt
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := r.Prompt(prompt)
		if stderrors.Is(err, io.EOF) {
			return "", false, nil
		}
		if stderrors.Is(err, liner.ErrPromptAborted) {
			// Ctrl+C drops the pending input.
			b.Reset()
			continue
		}
		if err != nil {
			return "", false, err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if Balanced(b.String()) {
			return b.String(), true, nil
		}
	}
}

// Start runs an interactive session on the terminal.
func Start(ctx context.Context, opts Options) error {
	s := NewSession(opts)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if opts.HistoryFile != "" {
		if f, err := os.Open(opts.HistoryFile); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}

	fmt.Fprintln(s.opts.Out, "toy REPL | :help for commands, Ctrl+D to exit")
	err := s.Loop(ctx, ln)

	if opts.HistoryFile != "" {
		if f, ferr := os.Create(opts.HistoryFile); ferr == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		} else if s.opts.Logger != nil {
			s.opts.Logger.Warn("cannot save history", "file", opts.HistoryFile, "error", ferr)
		}
	}
	return err
}
