// Package debugger pauses a toy run at line breakpoints and lets the user
// step through statements and inspect variables.
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"toylang/internal/interpreter"
	"toylang/internal/parser"
	"toylang/internal/runtime"
)

// Breakpoint pauses the run before the first statement of a line.
type Breakpoint struct {
	ID       int
	Line     int
	Enabled  bool
	HitCount int
}

// DebugState says whether the next statement runs freely or pauses.
type DebugState int

const (
	Running DebugState = iota
	Paused
	StepInto
	Terminated
)

// Debugger implements interpreter.Hook. Commands are read line by line from
// the reader given to New; when it runs dry the program runs to completion.
type Debugger struct {
	input  *bufio.Scanner
	out    io.Writer
	format runtime.BoolFormat

	file        string
	sourceLines []string

	breakpoints map[int]*Breakpoint
	nextBpID    int
	watches     []string
	state       DebugState
	last        parser.Pos
	detached    bool
}

// New creates a debugger that starts paused on the first statement.
func New(in io.Reader, out io.Writer, format runtime.BoolFormat) *Debugger {
	return &Debugger{
		input:       bufio.NewScanner(in),
		out:         out,
		format:      format,
		breakpoints: make(map[int]*Breakpoint),
		nextBpID:    1,
		state:       StepInto,
	}
}

// LoadSource keeps the program text for location listings.
func (d *Debugger) LoadSource(file, content string) {
	d.file = file
	d.sourceLines = strings.Split(content, "\n")
}

// AddBreakpoint adds a breakpoint on line and returns its id.
func (d *Debugger) AddBreakpoint(line int) int {
	bp := &Breakpoint{ID: d.nextBpID, Line: line, Enabled: true}
	d.breakpoints[bp.ID] = bp
	d.nextBpID++
	fmt.Fprintf(d.out, "breakpoint %d at line %d\n", bp.ID, line)
	return bp.ID
}

// RemoveBreakpoint drops breakpoint id, reporting false when no such
// breakpoint exists. Its hit count is lost.
func (d *Debugger) RemoveBreakpoint(id int) bool {
	bp, ok := d.breakpoints[id]
	if !ok {
		fmt.Fprintf(d.out, "no breakpoint %d\n", id)
		return false
	}
	delete(d.breakpoints, id)
	fmt.Fprintf(d.out, "breakpoint %d at line %d removed\n", bp.ID, bp.Line)
	return true
}

// ListBreakpoints prints each breakpoint's line and hit count in id order.
func (d *Debugger) ListBreakpoints() {
	if len(d.breakpoints) == 0 {
		fmt.Fprintln(d.out, "no breakpoints")
		return
	}
	for _, id := range slices.Sorted(maps.Keys(d.breakpoints)) {
		bp := d.breakpoints[id]
		fmt.Fprintf(d.out, "  %d: line %d hits: %d\n", bp.ID, bp.Line, bp.HitCount)
	}
}

// StartRunning makes the run begin without pausing on the first statement.
func (d *Debugger) StartRunning() { d.state = Running }

// State returns the session state, Terminated once quit has been typed.
func (d *Debugger) State() DebugState { return d.state }

// BeforeStmt implements interpreter.Hook.
func (d *Debugger) BeforeStmt(in *interpreter.Interpreter, s parser.Stmt) error {
	line := s.Pos.Line
	// a line is entered again when control moves back to or before the
	// previous statement's column, as at the top of a one-line loop
	entered := line != d.last.Line || s.Pos.Column <= d.last.Column
	d.last = s.Pos

	switch {
	case d.state == Terminated:
		return interpreter.ErrStopped
	case d.detached:
		return nil
	case d.state == StepInto:
	case entered && d.hit(line):
	default:
		return nil
	}

	d.state = Paused
	d.showLocation(s)
	d.showWatches(in.Environment())
	d.prompt(in)
	if d.state == Terminated {
		return interpreter.ErrStopped
	}
	return nil
}

func (d *Debugger) hit(line int) bool {
	for _, bp := range d.breakpoints {
		if bp.Enabled && bp.Line == line {
			bp.HitCount++
			fmt.Fprintf(d.out, "breakpoint %d hit (count %d)\n", bp.ID, bp.HitCount)
			return true
		}
	}
	return false
}

func (d *Debugger) showLocation(s parser.Stmt) {
	fmt.Fprintf(d.out, "%s:%d:%d %s\n", d.file, s.Pos.Line, s.Pos.Column, s.Kind)
	i := s.Pos.Line - 1
	if i >= 0 && i < len(d.sourceLines) {
		fmt.Fprintf(d.out, "-> %4d | %s\n", s.Pos.Line, d.sourceLines[i])
	}
}

func (d *Debugger) showWatches(env *runtime.Environment) {
	for _, name := range d.watches {
		fmt.Fprintf(d.out, "  watch %s\n", d.describe(env, name))
	}
}

func (d *Debugger) describe(env *runtime.Environment, name string) string {
	if b, ok := env.Lookup(name); ok {
		return b.Format(d.format)
	}
	return name + " is not declared yet"
}

// prompt reads commands until one resumes the run.
func (d *Debugger) prompt(in *interpreter.Interpreter) {
	for d.state == Paused {
		fmt.Fprint(d.out, "(toy-debug) ")
		if !d.input.Scan() {
			fmt.Fprintln(d.out)
			d.detached = true
			d.state = Running
			return
		}
		d.execute(in, strings.TrimSpace(d.input.Text()))
	}
}

// command is one debugger verb. usage doubles as its help line.
type command struct {
	names []string
	usage string
	help  string
	run   func(d *Debugger, in *interpreter.Interpreter, args []string)
}

var commands []command

func init() {
	commands = []command{
		{[]string{"help", "h"}, "help, h", "show this list", func(d *Debugger, _ *interpreter.Interpreter, _ []string) {
			d.showHelp()
		}},
		{[]string{"break", "b"}, "break <line>", "pause before the first statement of line", (*Debugger).cmdBreak},
		{[]string{"delete", "d"}, "delete <id>", "remove a breakpoint", (*Debugger).cmdDelete},
		{[]string{"list", "l"}, "list", "list breakpoints", func(d *Debugger, _ *interpreter.Interpreter, _ []string) {
			d.ListBreakpoints()
		}},
		{[]string{"step", "s"}, "step, s", "run one statement", func(d *Debugger, _ *interpreter.Interpreter, _ []string) {
			d.state = StepInto
		}},
		{[]string{"continue", "c"}, "continue, c", "run to the next breakpoint", func(d *Debugger, _ *interpreter.Interpreter, _ []string) {
			d.state = Running
		}},
		{[]string{"print", "p"}, "print <name>", "show a variable", (*Debugger).cmdPrint},
		{[]string{"env"}, "env", "show every variable", (*Debugger).cmdEnv},
		{[]string{"watch", "w"}, "watch <name>", "show a variable at every pause", (*Debugger).cmdWatch},
		{[]string{"unwatch"}, "unwatch <name>", "stop watching", (*Debugger).cmdUnwatch},
		{[]string{"stats"}, "stats", "show execution counters", func(d *Debugger, in *interpreter.Interpreter, _ []string) {
			st := in.Stats()
			fmt.Fprintf(d.out, "steps %d, expressions %d, prints %d\n", st.Steps, st.Expressions, st.Prints)
		}},
		{[]string{"quit", "q"}, "quit, q", "stop the program", func(d *Debugger, _ *interpreter.Interpreter, _ []string) {
			d.state = Terminated
		}},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if slices.Contains(c.names, name) {
			return c, true
		}
	}
	return command{}, false
}

func (d *Debugger) execute(in *interpreter.Interpreter, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	c, ok := lookup(fields[0])
	if !ok {
		fmt.Fprintf(d.out, "unknown command %s (type help)\n", fields[0])
		return
	}
	c.run(d, in, fields[1:])
}

func (d *Debugger) cmdBreak(_ *interpreter.Interpreter, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "usage: break <line>")
		return
	}
	line, err := strconv.Atoi(args[0])
	if err != nil || line < 1 {
		fmt.Fprintf(d.out, "invalid line number: %s\n", args[0])
		return
	}
	d.AddBreakpoint(line)
}

func (d *Debugger) cmdDelete(_ *interpreter.Interpreter, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "usage: delete <id>")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(d.out, "invalid breakpoint id: %s\n", args[0])
		return
	}
	d.RemoveBreakpoint(id)
}

func (d *Debugger) cmdPrint(in *interpreter.Interpreter, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "usage: print <name>")
		return
	}
	fmt.Fprintln(d.out, d.describe(in.Environment(), args[0]))
}

func (d *Debugger) cmdEnv(in *interpreter.Interpreter, _ []string) {
	snap := in.Environment().Snapshot()
	if len(snap) == 0 {
		fmt.Fprintln(d.out, "(empty)")
	}
	for _, b := range snap {
		fmt.Fprintln(d.out, b.Format(d.format))
	}
}

func (d *Debugger) cmdWatch(in *interpreter.Interpreter, args []string) {
	if len(args) != 1 {
		d.showWatches(in.Environment())
		return
	}
	d.watches = append(d.watches, args[0])
}

func (d *Debugger) cmdUnwatch(_ *interpreter.Interpreter, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "usage: unwatch <name>")
		return
	}
	i := slices.Index(d.watches, args[0])
	if i < 0 {
		fmt.Fprintf(d.out, "not watching %s\n", args[0])
		return
	}
	d.watches = slices.Delete(d.watches, i, i+1)
}

func (d *Debugger) showHelp() {
	fmt.Fprintln(d.out, "commands:")
	for _, c := range commands {
		fmt.Fprintf(d.out, "  %-16s %s\n", c.usage, c.help)
	}
}
