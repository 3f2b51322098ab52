package parser

import "fmt"

// Pos is the source position of the token a node was built from.
type Pos struct {
	Line   int
	Column int
}

// ExprID addresses an expression node inside a Tree.
type ExprID int32

// NoExpr marks an absent expression operand.
const NoExpr ExprID = -1

// ExprKind tags the variant held by an Expr.
type ExprKind uint8

const (
	IntLit ExprKind = iota
	BoolLit
	IdentRef
	ArrayAccess
	UnaryOp
	BinaryArith
	NotExpr
	AndExpr
	OrExpr
	RelExpr
)

var exprKindNames = [...]string{
	IntLit:      "IntConstant",
	BoolLit:     "BoolConstant",
	IdentRef:    "Id",
	ArrayAccess: "Access",
	UnaryOp:     "Unary",
	BinaryArith: "Arithm",
	NotExpr:     "Not",
	AndExpr:     "And",
	OrExpr:      "Or",
	RelExpr:     "Rel",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return fmt.Sprintf("ExprKind(%d)", k)
}

// Op is the operator carried by UnaryOp, BinaryArith and RelExpr nodes.
type Op uint8

const (
	OpNone Op = iota
	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNotEq
	OpLess
	OpLessEq
	OpMore
	OpMoreEq
)

var opSymbols = [...]string{
	OpNone:   "",
	OpNeg:    "-",
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpEq:     "==",
	OpNotEq:  "!=",
	OpLess:   "<",
	OpLessEq: "<=",
	OpMore:   ">",
	OpMoreEq: ">=",
}

var opNames = [...]string{
	OpNone:   "NONE",
	OpNeg:    "UNARY_MIN",
	OpAdd:    "ADD",
	OpSub:    "SUB",
	OpMul:    "MUL",
	OpDiv:    "DIV",
	OpEq:     "EQ",
	OpNotEq:  "NOT_EQ",
	OpLess:   "LESS",
	OpLessEq: "LESS_EQ",
	OpMore:   "MORE",
	OpMoreEq: "MORE_EQ",
}

// Symbol returns the source spelling of the operator.
func (o Op) Symbol() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return "?"
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Expr is a single expression node. Which fields are meaningful depends on
// Kind:
//
//	IntLit       Int
//	BoolLit      Bool
//	IdentRef     Name
//	ArrayAccess  Name, Left (index)
//	UnaryOp      Op, Left
//	NotExpr      Left
//	BinaryArith  Op, Left, Right
//	AndExpr      Left, Right
//	OrExpr       Left, Right
//	RelExpr      Op, Left, Right
type Expr struct {
	Kind  ExprKind
	Op    Op
	Int   int64
	Bool  bool
	Name  string
	Left  ExprID
	Right ExprID
	Pos   Pos
}

// Tree owns every node produced by one parse. Nodes reference each other
// by ID and are never modified once the parser returns.
type Tree struct {
	exprs []Expr
	stmts []Stmt
	decls []Decl
	root  StmtID
}

func newTree() *Tree {
	return &Tree{root: NoStmt}
}

// Root is the top-level Block of the program.
func (t *Tree) Root() StmtID { return t.root }

// Expr returns a copy of the expression node id.
func (t *Tree) Expr(id ExprID) Expr { return t.exprs[id] }

// Stmt returns a copy of the statement node id.
func (t *Tree) Stmt(id StmtID) Stmt { return t.stmts[id] }

// Decl returns a copy of the declaration node id.
func (t *Tree) Decl(id DeclID) Decl { return t.decls[id] }

// NodeCount reports how many nodes the arena holds.
func (t *Tree) NodeCount() int {
	return len(t.exprs) + len(t.stmts) + len(t.decls)
}

func (t *Tree) addExpr(e Expr) ExprID {
	t.exprs = append(t.exprs, e)
	return ExprID(len(t.exprs) - 1)
}

func (t *Tree) intLit(v int64, pos Pos) ExprID {
	return t.addExpr(Expr{Kind: IntLit, Int: v, Left: NoExpr, Right: NoExpr, Pos: pos})
}

func (t *Tree) boolLit(v bool, pos Pos) ExprID {
	return t.addExpr(Expr{Kind: BoolLit, Bool: v, Left: NoExpr, Right: NoExpr, Pos: pos})
}

func (t *Tree) ident(name string, pos Pos) ExprID {
	return t.addExpr(Expr{Kind: IdentRef, Name: name, Left: NoExpr, Right: NoExpr, Pos: pos})
}

func (t *Tree) access(name string, index ExprID, pos Pos) ExprID {
	return t.addExpr(Expr{Kind: ArrayAccess, Name: name, Left: index, Right: NoExpr, Pos: pos})
}

func (t *Tree) unary(kind ExprKind, op Op, operand ExprID, pos Pos) ExprID {
	return t.addExpr(Expr{Kind: kind, Op: op, Left: operand, Right: NoExpr, Pos: pos})
}

func (t *Tree) binary(kind ExprKind, op Op, left, right ExprID, pos Pos) ExprID {
	return t.addExpr(Expr{Kind: kind, Op: op, Left: left, Right: right, Pos: pos})
}
