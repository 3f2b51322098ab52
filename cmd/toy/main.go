// Command toy runs, checks and formats toy programs.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"toylang/cmd/toy/commands"
)

const VERSION = "0.3.0"

// Build variables, set with -ldflags "-X main.GitCommit=..."
var (
	BuildDate = "unknown"
	GitCommit = "unknown"
)

type command func(ctx context.Context, e *commands.Env, args []string) error

var subcommands = map[string]command{
	"run":     commands.RunCommand,
	"check":   commands.CheckCommand,
	"tokens":  commands.TokensCommand,
	"tree":    commands.TreeCommand,
	"fmt":     commands.FmtCommand,
	"debug":   commands.DebugCommand,
	"repl":    commands.ReplCommand,
	"test":    commands.TestCommand,
	"serve":   commands.ServeCommand,
	"history": commands.HistoryCommand,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	env := commands.NewEnv()
	if len(args) == 0 {
		showUsage(env.Stderr)
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		showUsage(env.Stdout)
		return 0
	case "version", "-v", "--version":
		showVersion(env.Stdout)
		return 0
	}

	cmd, ok := subcommands[args[0]]
	if !ok {
		fmt.Fprintf(env.Stderr, "toy: unknown command %q\n\n", args[0])
		showUsage(env.Stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd(ctx, env, args[1:])
	var usage *commands.UsageError
	switch {
	case err == nil, stderrors.Is(err, commands.ErrHelp):
		return 0
	case stderrors.Is(err, commands.ErrFailed):
		return 1
	case stderrors.As(err, &usage):
		fmt.Fprintf(env.Stderr, "toy %v\n", usage)
		fmt.Fprintf(env.Stderr, "run 'toy %s -h' for usage\n", usage.Command)
		return 2
	default:
		fmt.Fprintf(env.Stderr, "toy: %v\n", err)
		return 1
	}
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, "toy - a small imperative language")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  toy run <file.toy>         Run a program (- reads standard input)")
	fmt.Fprintln(w, "  toy check <file.toy>...    Check syntax without running")
	fmt.Fprintln(w, "  toy tokens <file.toy>      Print the token stream")
	fmt.Fprintln(w, "  toy tree [--raw] <file>    Print the syntax tree")
	fmt.Fprintln(w, "  toy fmt [-w|-l] <file>...  Format programs")
	fmt.Fprintln(w, "  toy debug <file.toy>       Step through a program")
	fmt.Fprintln(w, "  toy repl                   Start an interactive session")
	fmt.Fprintln(w, "  toy test [dir...]          Run golden program suites")
	fmt.Fprintln(w, "  toy serve [--addr a]       Serve the websocket playground")
	fmt.Fprintln(w, "  toy history [id]           List journaled runs")
	fmt.Fprintln(w, "  toy version                Print version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Every command accepts --config <toy.yml> and --log-level <level>.")
}

func showVersion(w io.Writer) {
	fmt.Fprintf(w, "toy %s (commit %s, built %s)\n", VERSION, GitCommit, BuildDate)
}
