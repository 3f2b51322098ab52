// internal/parser/stmt.go
package parser

import "fmt"

// TypeCode is the scalar type of a declaration or value.
type TypeCode uint8

const (
	TypeInt TypeCode = iota
	TypeBool
)

func (c TypeCode) String() string {
	switch c {
	case TypeInt:
		return "INT"
	case TypeBool:
		return "BOOL"
	}
	return fmt.Sprintf("TypeCode(%d)", c)
}

// Keyword returns the source spelling of the type.
func (c TypeCode) Keyword() string {
	if c == TypeBool {
		return "boolean"
	}
	return "int"
}

// Type is a declared type. A vector type has Size > 0.
type Type struct {
	Code TypeCode
	Size int
}

// IsVector reports whether the type describes a fixed-size array.
func (t Type) IsVector() bool { return t.Size > 0 }

// DeclID addresses a declaration inside a Tree.
type DeclID int32

// Decl pairs an identifier with its declared type.
type Decl struct {
	Name string
	Type Type
	Pos  Pos
}

// StmtID addresses a statement node inside a Tree.
type StmtID int32

// NoStmt marks an absent statement child.
const NoStmt StmtID = -1

// StmtKind tags the variant held by a Stmt.
type StmtKind uint8

const (
	BlockStmt StmtKind = iota
	SeqStmt
	IfStmt
	IfElseStmt
	WhileStmt
	DoWhileStmt
	AssignStmt
	AssignIndexedStmt
	BreakStmt
	PrintStmt
)

var stmtKindNames = [...]string{
	BlockStmt:         "Block",
	SeqStmt:           "Seq",
	IfStmt:            "If",
	IfElseStmt:        "Else",
	WhileStmt:         "While",
	DoWhileStmt:       "Do",
	AssignStmt:        "Set",
	AssignIndexedStmt: "SetElem",
	BreakStmt:         "Break",
	PrintStmt:         "Print",
}

func (k StmtKind) String() string {
	if int(k) < len(stmtKindNames) {
		return stmtKindNames[k]
	}
	return fmt.Sprintf("StmtKind(%d)", k)
}

// Stmt is a single statement node. Which fields are meaningful depends on
// Kind:
//
//	BlockStmt          Decls, Body (a SeqStmt)
//	SeqStmt            List
//	IfStmt             Cond, Body
//	IfElseStmt         Cond, Body, Else
//	WhileStmt          Cond, Body
//	DoWhileStmt        Cond, Body
//	AssignStmt         Name, Value
//	AssignIndexedStmt  Name, Index, Value
//	BreakStmt          -
//	PrintStmt          Value
type Stmt struct {
	Kind  StmtKind
	Name  string
	Cond  ExprID
	Index ExprID
	Value ExprID
	Body  StmtID
	Else  StmtID
	Decls []DeclID
	List  []StmtID
	Pos   Pos
}

func (t *Tree) addStmt(s Stmt) StmtID {
	t.stmts = append(t.stmts, s)
	return StmtID(len(t.stmts) - 1)
}

func (t *Tree) addDecl(d Decl) DeclID {
	t.decls = append(t.decls, d)
	return DeclID(len(t.decls) - 1)
}

func emptyStmt(kind StmtKind, pos Pos) Stmt {
	return Stmt{Kind: kind, Cond: NoExpr, Index: NoExpr, Value: NoExpr, Body: NoStmt, Else: NoStmt, Pos: pos}
}

func (t *Tree) block(decls []DeclID, body StmtID, pos Pos) StmtID {
	s := emptyStmt(BlockStmt, pos)
	s.Decls = decls
	s.Body = body
	return t.addStmt(s)
}

func (t *Tree) seq(list []StmtID, pos Pos) StmtID {
	s := emptyStmt(SeqStmt, pos)
	s.List = list
	return t.addStmt(s)
}

func (t *Tree) cond(kind StmtKind, cond ExprID, body, elseBody StmtID, pos Pos) StmtID {
	s := emptyStmt(kind, pos)
	s.Cond = cond
	s.Body = body
	s.Else = elseBody
	return t.addStmt(s)
}

func (t *Tree) assign(name string, index, value ExprID, pos Pos) StmtID {
	kind := AssignStmt
	if index != NoExpr {
		kind = AssignIndexedStmt
	}
	s := emptyStmt(kind, pos)
	s.Name = name
	s.Index = index
	s.Value = value
	return t.addStmt(s)
}

func (t *Tree) simple(kind StmtKind, value ExprID, pos Pos) StmtID {
	s := emptyStmt(kind, pos)
	s.Value = value
	return t.addStmt(s)
}
