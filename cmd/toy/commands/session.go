package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"toylang/internal/network"
	"toylang/internal/repl"
	toytest "toylang/internal/testing"
)

// ReplCommand starts the interactive session.
func ReplCommand(ctx context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("repl", &g)
	history := fs.String("history", "", "history file (default from config; empty string disables)")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return usagef("repl", "unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	cfg := e.Config
	format, err := boolFormatOf(cfg.Output.BoolFormat)
	if err != nil {
		return err
	}
	historyFile := cfg.REPL.HistoryFile
	if fs.Changed("history") {
		historyFile = *history
	}
	return repl.Start(ctx, repl.Options{
		Out:         e.Stdout,
		Prompt:      cfg.REPL.Prompt,
		HistoryFile: historyFile,
		BoolFormat:  format,
		MaxSteps:    cfg.Limits.MaxSteps,
		MaxArrayLen: cfg.Limits.MaxArrayLen,
		Logger:      e.Log,
	})
}

// TestCommand runs golden program suites: toy test [flags] [dir...].
func TestCommand(ctx context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("test", &g)
	verbose := fs.BoolP("verbose", "v", false, "report passing programs too")
	filter := fs.StringP("run", "r", "", "only run programs whose name contains this")
	parallel := fs.IntP("parallel", "p", 0, "programs run at once (default from config)")
	format := fs.String("format", "", "report format: text, json or junit (default from config)")
	failFast := fs.Bool("fail-fast", false, "stop after the first failing program")
	timeout := fs.Duration("timeout", 0, "per-program deadline (default from config)")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	cfg := e.Config
	if *parallel <= 0 {
		*parallel = cfg.Test.Parallelism
	}
	if *format == "" {
		*format = cfg.Test.Format
	}
	switch *format {
	case "text", "json", "junit":
	default:
		return usagef("test", "unknown report format %q", *format)
	}
	if *timeout == 0 {
		*timeout = cfg.Test.Timeout
	}
	boolFormat, err := boolFormatOf(cfg.Output.BoolFormat)
	if err != nil {
		return err
	}

	runner := toytest.NewTestRunner(&toytest.TestConfig{
		Verbose:      *verbose,
		Parallelism:  *parallel,
		Filter:       *filter,
		Timeout:      *timeout,
		FailFast:     *failFast,
		OutputFormat: *format,
		Output:       e.Stdout,
		BoolFormat:   boolFormat,
		MaxSteps:     cfg.Limits.MaxSteps,
		Logger:       e.Log,
	})

	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		suite, err := toytest.LoadSuite(dir)
		if err != nil {
			return err
		}
		runner.AddSuite(suite)
	}

	stats := runner.Run(ctx)
	if stats.TotalTests == 0 {
		fmt.Fprintln(e.Stderr, "toy test: no *.toy programs found")
	}
	if stats.FailedTests > 0 {
		return ErrFailed
	}
	return nil
}

// ServeCommand runs the playground until interrupted.
func ServeCommand(ctx context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("serve", &g)
	addr := fs.StringP("addr", "a", "", "listen address (default from config)")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	cfg := e.Config
	if *addr == "" {
		*addr = cfg.Server.Addr
	}
	format, err := boolFormatOf(cfg.Output.BoolFormat)
	if err != nil {
		return err
	}

	srvCfg := network.Config{
		Addr:           *addr,
		MaxSteps:       cfg.Server.MaxSteps,
		MaxArrayLen:    cfg.Limits.MaxArrayLen,
		Timeout:        cfg.Server.Timeout,
		MaxSourceBytes: cfg.Server.MaxSourceBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		BoolFormat:     format,
		Logger:         e.Log,
	}
	if j := e.openJournal(ctx); j != nil {
		defer j.Close()
		srvCfg.Journal = j
	}

	err = network.NewServer(srvCfg).ListenAndServe(ctx)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
