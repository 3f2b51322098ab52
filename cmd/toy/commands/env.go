// Package commands implements the toy subcommands.
package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"toylang/internal/config"
	"toylang/internal/database"
	"toylang/internal/errors"
)

// ErrFailed reports that a command already printed its failure; the
// driver only sets the exit status.
var ErrFailed = stderrors.New("command failed")

// UsageError is a bad invocation; the driver exits with status 2.
type UsageError struct {
	Command string
	Msg     string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return e.Msg
	}
	return e.Command + ": " + e.Msg
}

func usagef(cmd, format string, args ...any) error {
	return &UsageError{Command: cmd, Msg: fmt.Sprintf(format, args...)}
}

// Env is what every command runs against.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Config *config.Config
	Log    *slog.Logger

	color bool
}

// NewEnv wires the process streams. Color is enabled when stderr is a
// terminal and NO_COLOR is unset.
func NewEnv() *Env {
	return &Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		color:  os.Getenv("NO_COLOR") == "" && isTerminal(os.Stderr),
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// globals are the flags every subcommand accepts.
type globals struct {
	configPath string
	logLevel   string
}

func newFlags(name string, g *globals) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&g.configPath, "config", "c", "", "path to toy.yml (default: ./toy.yml when present)")
	fs.StringVar(&g.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	return fs
}

// parse parses args and loads the configuration the globals point at.
func (e *Env) parse(fs *pflag.FlagSet, g *globals, args []string) error {
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(e.Stdout, "Usage of toy %s:\n%s", fs.Name(), fs.FlagUsages())
			return ErrHelp
		}
		return usagef(fs.Name(), "%v", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.Find(".")
	}
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	e.Config = cfg
	e.Log = cfg.Logger(e.Stderr)
	e.Log.Debug("config loaded", "path", cfg.Path, "command", fs.Name())
	return nil
}

// ErrHelp is returned after -h printed the flag usage.
var ErrHelp = stderrors.New("help requested")

const (
	red    = "\x1b[1;31m"
	yellow = "\x1b[1;33m"
	reset  = "\x1b[0m"
)

// report prints err to stderr, coloring the category header of program
// errors.
func (e *Env) report(err error) {
	kind := errors.TypeOf(err)
	if kind == "" {
		fmt.Fprintf(e.Stderr, "toy: %v\n", err)
		return
	}
	text := err.Error()
	if e.color {
		color := red
		if kind == errors.EvaluationError {
			color = yellow
		}
		text = color + string(kind) + reset + strings.TrimPrefix(text, string(kind))
	}
	fmt.Fprintln(e.Stderr, text)
}

// openJournal opens the configured journal, or returns nil when none is
// configured or it cannot be reached; runs never fail because of it.
func (e *Env) openJournal(ctx context.Context) *database.Journal {
	dsn := e.Config.Journal.DSN
	if dsn == "" {
		return nil
	}
	j, err := database.Open(ctx, dsn, database.Options{
		MaxOpenConns: e.Config.Journal.MaxOpenConns,
		Logger:       e.Log,
	})
	if err != nil {
		e.Log.Warn("journal unavailable", "error", err)
		return nil
	}
	return j
}

func readSource(e *Env, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(e.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
