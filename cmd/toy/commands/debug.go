package commands

import (
	"context"

	"toylang/internal/debugger"
	"toylang/internal/interpreter"
)

// DebugCommand runs a program under the line debugger, reading commands
// from standard input: toy debug [--break line]... <file.toy>.
func DebugCommand(ctx context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("debug", &g)
	breaks := fs.IntSliceP("break", "b", nil, "set a breakpoint on this line (repeatable)")
	run := fs.Bool("run", false, "start running instead of pausing on the first statement")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("debug", "expected exactly one source file")
	}
	file := fs.Arg(0)
	if file == "-" {
		return usagef("debug", "standard input is reserved for debugger commands")
	}
	format, err := boolFormatOf(e.Config.Output.BoolFormat)
	if err != nil {
		return err
	}
	src, err := readSource(e, file)
	if err != nil {
		return err
	}

	d := debugger.New(e.Stdin, e.Stdout, format)
	d.LoadSource(file, src)
	for _, line := range *breaks {
		d.AddBreakpoint(line)
	}
	if *run {
		d.StartRunning()
	}

	_, err = interpreter.Exec(ctx, src, interpreter.Options{
		Output:      e.Stdout,
		BoolFormat:  format,
		MaxSteps:    e.Config.Limits.MaxSteps,
		MaxArrayLen: e.Config.Limits.MaxArrayLen,
		Logger:      e.Log,
		File:        file,
		Hook:        d,
	})
	if err != nil {
		e.report(err)
		return ErrFailed
	}
	return nil
}
