package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kr/pretty"

	"toylang/internal/formatter"
	"toylang/internal/lexer"
)

// TokensCommand prints the token stream of a file.
func TokensCommand(_ context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("tokens", &g)
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("tokens", "expected exactly one source file")
	}
	file := fs.Arg(0)
	src, err := readSource(e, file)
	if err != nil {
		return err
	}
	tokens, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		e.report(withFile(err, file))
		return ErrFailed
	}

	tw := tabwriter.NewWriter(e.Stdout, 0, 4, 2, ' ', 0)
	for _, tok := range tokens {
		fmt.Fprintf(tw, "%d:%d\t%s\t%s\n", tok.Line, tok.Column, tok.Type, tok.Lexeme)
	}
	return tw.Flush()
}

// TreeCommand prints the syntax tree; --raw shows the arena itself.
func TreeCommand(_ context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("tree", &g)
	raw := fs.Bool("raw", false, "dump the node arenas instead of the tree")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("tree", "expected exactly one source file")
	}
	file := fs.Arg(0)
	src, err := readSource(e, file)
	if err != nil {
		return err
	}
	tree, err := parseFile(src, file)
	if err != nil {
		e.report(err)
		return ErrFailed
	}
	if *raw {
		_, err = pretty.Fprintf(e.Stdout, "%# v\n", tree)
		return err
	}
	_, err = fmt.Fprintln(e.Stdout, formatter.Dump(tree))
	return err
}

// FmtCommand prints the canonical form of each file, rewrites it with -w, or
// lists the files that would change with -l.
func FmtCommand(_ context.Context, e *Env, args []string) error {
	var g globals
	fs := newFlags("fmt", &g)
	write := fs.BoolP("write", "w", false, "write the result back to the source file")
	list := fs.BoolP("list", "l", false, "list files whose formatting differs")
	if err := e.parse(fs, &g, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("fmt", "no source files given")
	}
	if *write && fs.NArg() == 1 && fs.Arg(0) == "-" {
		return usagef("fmt", "cannot use -w with standard input")
	}

	failed := false
	for _, file := range fs.Args() {
		src, err := readSource(e, file)
		if err != nil {
			return err
		}
		tree, err := parseFile(src, file)
		if err != nil {
			e.report(err)
			failed = true
			continue
		}
		formatted := formatter.Format(tree)
		switch {
		case *list:
			if formatted != src {
				fmt.Fprintln(e.Stdout, file)
			}
		case *write:
			if formatted == src {
				continue
			}
			if err := os.WriteFile(file, []byte(formatted), 0o644); err != nil {
				return err
			}
			e.Log.Debug("formatted", "file", file)
		default:
			fmt.Fprint(e.Stdout, formatted)
		}
	}
	if failed {
		return ErrFailed
	}
	return nil
}
