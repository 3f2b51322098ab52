package formatter

import (
	"strconv"
	"strings"

	"toylang/internal/parser"
)

// Dump renders the tree as nested constructor calls, one node per call:
//
//	Program(Block(Decls(Decl(Type(int), Id(x)), NULL), Seq(Print(Id(x)), NULL)))
//
// Declaration and statement lists are shown as right-nested chains ending
// in NULL.
func Dump(tree *parser.Tree) string {
	d := dumper{tree: tree}
	d.sb.WriteString("Program(")
	d.stmt(tree.Root())
	d.sb.WriteString(")")
	return d.sb.String()
}

type dumper struct {
	tree *parser.Tree
	sb   strings.Builder
}

func (d *dumper) w(parts ...string) {
	for _, p := range parts {
		d.sb.WriteString(p)
	}
}

func (d *dumper) decls(ids []parser.DeclID) {
	if len(ids) == 0 {
		d.w("NULL")
		return
	}
	decl := d.tree.Decl(ids[0])
	d.w("Decls(Decl(")
	if decl.Type.IsVector() {
		d.w("VectorType(", typeName(decl.Type.Code), ", [", strconv.Itoa(decl.Type.Size), "])")
	} else {
		d.w("Type(", typeName(decl.Type.Code), ")")
	}
	d.w(", Id(", decl.Name, ")), ")
	d.decls(ids[1:])
	d.w(")")
}

func typeName(c parser.TypeCode) string {
	if c == parser.TypeBool {
		return "bool"
	}
	return "int"
}

func (d *dumper) seq(ids []parser.StmtID) {
	if len(ids) == 0 {
		d.w("NULL")
		return
	}
	d.w("Seq(")
	d.stmt(ids[0])
	d.w(", ")
	d.seq(ids[1:])
	d.w(")")
}

func (d *dumper) stmt(id parser.StmtID) {
	s := d.tree.Stmt(id)
	switch s.Kind {
	case parser.BlockStmt:
		d.w("Block(")
		d.decls(s.Decls)
		d.w(", ")
		d.stmt(s.Body)
		d.w(")")
	case parser.SeqStmt:
		d.seq(s.List)
	case parser.IfStmt, parser.WhileStmt, parser.DoWhileStmt:
		d.w(s.Kind.String(), "(")
		d.expr(s.Cond)
		d.w(", ")
		d.stmt(s.Body)
		d.w(")")
	case parser.IfElseStmt:
		d.w("Else(")
		d.expr(s.Cond)
		d.w(", ")
		d.stmt(s.Body)
		d.w(", ")
		d.stmt(s.Else)
		d.w(")")
	case parser.AssignStmt:
		d.w("Set(Id(", s.Name, "), ")
		d.expr(s.Value)
		d.w(")")
	case parser.AssignIndexedStmt:
		d.w("SetElem(Id(", s.Name, "), [")
		d.expr(s.Index)
		d.w("], ")
		d.expr(s.Value)
		d.w(")")
	case parser.BreakStmt:
		d.w("Break()")
	case parser.PrintStmt:
		d.w("Print(")
		d.expr(s.Value)
		d.w(")")
	}
}

func (d *dumper) expr(id parser.ExprID) {
	e := d.tree.Expr(id)
	switch e.Kind {
	case parser.IntLit:
		d.w("IntConstant(", strconv.FormatInt(e.Int, 10), ")")
	case parser.BoolLit:
		v := "0"
		if e.Bool {
			v = "1"
		}
		d.w("BoolConstant(", v, ")")
	case parser.IdentRef:
		d.w("Id(", e.Name, ")")
	case parser.ArrayAccess:
		d.w("Access(Id(", e.Name, "), [")
		d.expr(e.Left)
		d.w("])")
	case parser.UnaryOp:
		d.w("Unary(", e.Op.Symbol(), ", ")
		d.expr(e.Left)
		d.w(")")
	case parser.NotExpr:
		d.w("Not(")
		d.expr(e.Left)
		d.w(")")
	case parser.AndExpr, parser.OrExpr:
		d.w(e.Kind.String(), "(")
		d.expr(e.Left)
		d.w(", ")
		d.expr(e.Right)
		d.w(")")
	case parser.BinaryArith, parser.RelExpr:
		d.w(e.Kind.String(), "(", e.Op.Symbol(), ", ")
		d.expr(e.Left)
		d.w(", ")
		d.expr(e.Right)
		d.w(")")
	}
}
