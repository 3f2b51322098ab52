package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"toylang/internal/database"
	"toylang/internal/errors"
	"toylang/internal/interpreter"
	"toylang/internal/lexer"
	"toylang/internal/parser"
	"toylang/internal/runtime"
)

// RunCommand executes one program: toy run [flags] <file.toy | ->.
func RunCommand(ctx context.Context, e *Env, args []string) error {
	var (
		g          globals
		stats      bool
		boolFormat string
		maxSteps   int64
		timeout    time.Duration
		noJournal  bool
	)
	fs := newFlags("run", &g)
	fs.BoolVar(&stats, "stats", false, "print execution counters to stderr")
	fs.StringVar(&boolFormat, "bool-format", "", "render booleans as numeric (1/0) or words (true/false)")
	fs.Int64Var(&maxSteps, "max-steps", -1, "statement budget, 0 for unlimited (default from config)")
	fs.DurationVar(&timeout, "timeout", 0, "stop the program after this long")
	fs.BoolVar(&noJournal, "no-journal", false, "do not record this run in the journal")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("run", "expected exactly one source file, got %d", fs.NArg())
	}
	file := fs.Arg(0)

	cfg := e.Config
	if boolFormat != "" {
		cfg.Output.BoolFormat = boolFormat
	}
	format, err := boolFormatOf(cfg.Output.BoolFormat)
	if err != nil {
		return usagef("run", "%v", err)
	}
	if maxSteps < 0 {
		maxSteps = cfg.Limits.MaxSteps
	}
	if timeout == 0 {
		timeout = cfg.Limits.Timeout
	}

	src, err := readSource(e, file)
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		captured bytes.Buffer
		journal  *database.Journal
	)
	out := io.Writer(e.Stdout)
	if !noJournal {
		journal = e.openJournal(ctx)
	}
	if journal != nil {
		defer journal.Close()
		out = io.MultiWriter(e.Stdout, &captured)
	}

	e.Log.Debug("running program", "file", file, "max_steps", maxSteps, "timeout", timeout)
	start := time.Now()
	st, runErr := interpreter.Exec(ctx, src, interpreter.Options{
		Output:      out,
		BoolFormat:  format,
		MaxSteps:    maxSteps,
		MaxArrayLen: cfg.Limits.MaxArrayLen,
		Logger:      e.Log,
		File:        file,
	})
	elapsed := time.Since(start)

	if journal != nil {
		recordRun(ctx, e, journal, database.Run{
			StartedAt: start,
			Duration:  elapsed,
			Name:      file,
			Digest:    database.Digest(src),
			Output:    captured.String(),
			Steps:     st.Steps,
		}, runErr)
	}
	if stats {
		printStats(e.Stderr, st, elapsed)
	}
	if runErr != nil {
		e.report(runErr)
		return ErrFailed
	}
	return nil
}

func recordRun(ctx context.Context, e *Env, j *database.Journal, run database.Run, runErr error) {
	run.Status = database.StatusOK
	if runErr != nil {
		run.Status = database.StatusError
		run.ErrorKind = string(errors.TypeOf(runErr))
		run.Message = runErr.Error()
	}
	id, err := j.Record(context.WithoutCancel(ctx), run)
	if err != nil {
		e.Log.Warn("journal write failed", "error", err)
		return
	}
	e.Log.Debug("run journaled", "id", id)
}

func printStats(w io.Writer, st interpreter.Stats, elapsed time.Duration) {
	fmt.Fprintf(w, "steps: %s  expressions: %s  cells: %s  prints: %s  time: %v\n",
		humanize.Comma(st.Steps),
		humanize.Comma(st.Expressions),
		humanize.Comma(int64(st.Cells)),
		humanize.Comma(int64(st.Prints)),
		elapsed.Round(time.Microsecond))
}

func boolFormatOf(s string) (runtime.BoolFormat, error) {
	switch s {
	case "", "numeric":
		return runtime.BoolNumeric, nil
	case "words":
		return runtime.BoolWords, nil
	}
	return 0, fmt.Errorf("bool format %q is not numeric or words", s)
}

// parseFile scans and parses src, attaching file to the error location.
func parseFile(src, file string) (*parser.Tree, error) {
	tokens, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		return nil, withFile(err, file)
	}
	return parser.NewParserWithSource(tokens, src, file).Parse()
}

func withFile(err error, file string) error {
	if te, ok := err.(*errors.ToyError); ok {
		return te.WithFile(file)
	}
	return err
}

// CheckCommand parses files without running them: toy check <file>...
func CheckCommand(_ context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("check", &g)
	quiet := fs.BoolP("quiet", "q", false, "print nothing on success")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("check", "no source files given")
	}

	failed := false
	for _, file := range fs.Args() {
		src, err := readSource(e, file)
		if err != nil {
			return err
		}
		if _, err := parseFile(src, file); err != nil {
			e.report(err)
			failed = true
			continue
		}
		if !*quiet {
			fmt.Fprintf(e.Stdout, "%s: ok\n", file)
		}
	}
	if failed {
		return ErrFailed
	}
	return nil
}
