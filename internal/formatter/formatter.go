package formatter

import (
	"strconv"
	"strings"

	"toylang/internal/parser"
)

// Formatter renders a syntax tree back to canonical source text. Parsing
// the output yields a tree of the same shape.
type Formatter struct {
	tree      *parser.Tree
	indent    int
	indentStr string
	output    strings.Builder
	lineBreak string
}

func NewFormatter() *Formatter {
	return &Formatter{
		indentStr: "    ", // 4 spaces
		lineBreak: "\n",
	}
}

// Format renders the whole program. The top-level block is written
// without braces.
func (f *Formatter) Format(tree *parser.Tree) string {
	f.tree = tree
	f.output.Reset()
	f.indent = 0

	root := tree.Stmt(tree.Root())
	f.blockContents(root)
	return f.output.String()
}

// Format is a shorthand for NewFormatter().Format(tree).
func Format(tree *parser.Tree) string {
	return NewFormatter().Format(tree)
}

func (f *Formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.output.WriteString(f.indentStr)
	}
}

func (f *Formatter) line(s string) {
	f.writeIndent()
	f.output.WriteString(s)
	f.output.WriteString(f.lineBreak)
}

func (f *Formatter) blockContents(block parser.Stmt) {
	for _, id := range block.Decls {
		f.line(declaration(f.tree.Decl(id)))
	}
	for _, id := range f.tree.Stmt(block.Body).List {
		f.formatStmt(id)
	}
}

func declaration(d parser.Decl) string {
	s := d.Type.Code.Keyword() + " " + d.Name
	if d.Type.IsVector() {
		s += "[" + strconv.Itoa(d.Type.Size) + "]"
	}
	return s + ";"
}

func (f *Formatter) formatStmt(id parser.StmtID) {
	s := f.tree.Stmt(id)
	switch s.Kind {
	case parser.BlockStmt:
		f.line("{")
		f.indent++
		f.blockContents(s)
		f.indent--
		f.line("}")

	case parser.SeqStmt:
		for _, child := range s.List {
			f.formatStmt(child)
		}

	case parser.IfStmt, parser.IfElseStmt:
		braced := f.header("if ("+f.expr(s.Cond)+")", s.Body)
		switch {
		case s.Kind == parser.IfElseStmt && braced:
			f.closed("} else", s.Else)
		case s.Kind == parser.IfElseStmt:
			f.closed("else", s.Else)
		case braced:
			f.line("}")
		}

	case parser.WhileStmt:
		if f.header("while ("+f.expr(s.Cond)+")", s.Body) {
			f.line("}")
		}

	case parser.DoWhileStmt:
		footer := "while (" + f.expr(s.Cond) + ");"
		if f.header("do", s.Body) {
			f.line("} " + footer)
		} else {
			f.line(footer)
		}

	case parser.AssignStmt:
		f.line(s.Name + " = " + f.expr(s.Value) + ";")

	case parser.AssignIndexedStmt:
		f.line(s.Name + "[" + f.expr(s.Index) + "] = " + f.expr(s.Value) + ";")

	case parser.BreakStmt:
		f.line("break;")

	case parser.PrintStmt:
		f.line("print(" + f.expr(s.Value) + ");")
	}
}

// header writes a construct head followed by its body. A block body opens
// on the same line; the caller closes it when header reports true.
func (f *Formatter) header(head string, body parser.StmtID) bool {
	b := f.tree.Stmt(body)
	if b.Kind == parser.BlockStmt {
		f.line(head + " {")
		f.indent++
		f.blockContents(b)
		f.indent--
		return true
	}
	f.line(head)
	f.indent++
	f.formatStmt(body)
	f.indent--
	return false
}

func (f *Formatter) closed(head string, body parser.StmtID) {
	if f.header(head, body) {
		f.line("}")
	}
}

// Binding strength of each expression form, loosest first.
const (
	precOr = iota + 1
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

func (f *Formatter) prec(id parser.ExprID) int {
	e := f.tree.Expr(id)
	switch e.Kind {
	case parser.OrExpr:
		return precOr
	case parser.AndExpr:
		return precAnd
	case parser.RelExpr:
		return precRelational
	case parser.BinaryArith:
		switch e.Op {
		case parser.OpEq, parser.OpNotEq:
			return precEquality
		case parser.OpAdd, parser.OpSub:
			return precAdditive
		}
		return precMultiplicative
	case parser.UnaryOp, parser.NotExpr:
		return precUnary
	}
	return precPrimary
}

func (f *Formatter) operand(id parser.ExprID, min int) string {
	s := f.expr(id)
	if f.prec(id) < min {
		return "(" + s + ")"
	}
	return s
}

func (f *Formatter) expr(id parser.ExprID) string {
	e := f.tree.Expr(id)
	switch e.Kind {
	case parser.IntLit:
		return strconv.FormatInt(e.Int, 10)
	case parser.BoolLit:
		return strconv.FormatBool(e.Bool)
	case parser.IdentRef:
		return e.Name
	case parser.ArrayAccess:
		return e.Name + "[" + f.expr(e.Left) + "]"
	case parser.UnaryOp:
		inner := f.operand(e.Left, precUnary)
		if strings.HasPrefix(inner, "-") {
			return "- " + inner
		}
		return "-" + inner
	case parser.NotExpr:
		return "!" + f.operand(e.Left, precUnary)
	}

	p := f.prec(id)
	sym := e.Op.Symbol()
	switch e.Kind {
	case parser.OrExpr:
		sym = "||"
	case parser.AndExpr:
		sym = "&&"
	}
	// Binary layers fold to the left; relational does not chain at all.
	left, right := p, p+1
	if e.Kind == parser.RelExpr {
		left = p + 1
	}
	return f.operand(e.Left, left) + " " + sym + " " + f.operand(e.Right, right)
}
