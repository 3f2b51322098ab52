// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"

	"toylang/internal/errors"
	"toylang/internal/lexer"
)

var relational = map[lexer.TokenType]Op{
	lexer.TokenLT: OpLess,
	lexer.TokenLE: OpLessEq,
	lexer.TokenGT: OpMore,
	lexer.TokenGE: OpMoreEq,
}

// Declared is the set of names declared so far in a parse session. A name
// may be declared only once per session, whatever block it appears in.
type Declared struct {
	names map[string]Pos
}

func NewDeclared() *Declared {
	return &Declared{names: make(map[string]Pos)}
}

// Has reports whether name was declared by an earlier successful parse.
func (d *Declared) Has(name string) bool {
	_, ok := d.names[name]
	return ok
}

// Len returns the number of declared names.
func (d *Declared) Len() int { return len(d.names) }

type Parser struct {
	tokens   []lexer.Token
	current  int
	tree     *Tree
	file     string
	source   string
	session  *Declared
	declared map[string]Pos // names declared by this parse only
}

func NewParser(tokens []lexer.Token) *Parser {
	if n := len(tokens); n == 0 || tokens[n-1].Type != lexer.TokenEOF {
		eof := lexer.Token{Type: lexer.TokenEOF}
		if n > 0 {
			eof.Line = tokens[n-1].Line
		}
		tokens = append(tokens[:n:n], eof)
	}
	return &Parser{
		tokens:   tokens,
		session:  NewDeclared(),
		declared: make(map[string]Pos),
	}
}

func NewParserWithSource(tokens []lexer.Token, source string, file string) *Parser {
	p := NewParser(tokens)
	p.source = source
	p.file = file
	return p
}

// WithSession makes the parser check and record declarations against a set
// shared with earlier parses. The set is only updated when Parse succeeds.
func (p *Parser) WithSession(d *Declared) *Parser {
	if d != nil {
		p.session = d
	}
	return p
}

// Parse builds the syntax tree for the whole token stream. The program is an
// implicit top-level block: declarations first, then statements up to EOF.
func (p *Parser) Parse() (tree *Tree, err error) {
	p.tree = newTree()
	p.current = 0
	clear(p.declared)

	defer func() {
		if r := recover(); r != nil {
			te, ok := r.(*errors.ToyError)
			if !ok {
				panic(r)
			}
			tree, err = nil, te
		}
	}()

	if p.isAtEnd() {
		p.fail(p.peek(), "program has no contents")
	}
	p.tree.root = p.program()
	for name, pos := range p.declared {
		p.session.names[name] = pos
	}
	return p.tree, nil
}

// Parse scans and parses source in one step.
func Parse(source string) (*Tree, error) {
	tokens, err := lexer.NewScanner(source).ScanTokens()
	if err != nil {
		return nil, err
	}
	return NewParserWithSource(tokens, source, "").Parse()
}

func (p *Parser) program() StmtID {
	pos := p.pos(p.peek())
	decls := p.declarations()
	body := p.sequence()
	if !p.isAtEnd() {
		p.fail(p.peek(), fmt.Sprintf("unexpected %s at top level", p.peek().Type.Describe()))
	}
	return p.tree.block(decls, body, pos)
}

func (p *Parser) block() StmtID {
	open := p.consume(lexer.TokenLBrace, "expecting '{'")
	decls := p.declarations()
	body := p.sequence()
	p.consume(lexer.TokenRBrace, "expecting '}' to close block")
	return p.tree.block(decls, body, p.pos(open))
}

func (p *Parser) sequence() StmtID {
	pos := p.pos(p.peek())
	var list []StmtID
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		list = append(list, p.statement())
	}
	return p.tree.seq(list, pos)
}

// --- Declarations ---

func (p *Parser) declarations() []DeclID {
	var decls []DeclID
	for p.check(lexer.TokenInt) || p.check(lexer.TokenBoolean) {
		decls = append(decls, p.declaration())
	}
	return decls
}

func (p *Parser) declaration() DeclID {
	typ := p.parseType()
	nameTok := p.consume(lexer.TokenIdent, "expecting identifier")
	if p.match(lexer.TokenLBracket) {
		if typ.IsVector() {
			p.fail(p.previous(), fmt.Sprintf("array size of %s given twice", nameTok.Lexeme))
		}
		typ.Size = p.arraySize()
		p.consume(lexer.TokenRBracket, "expecting ']' after array size")
	}
	p.consume(lexer.TokenSemicolon, "expecting ';' after declaration")

	if p.session.Has(nameTok.Lexeme) || p.hasLocal(nameTok.Lexeme) {
		p.fail(nameTok, fmt.Sprintf("identifier %s has already been declared", nameTok.Lexeme))
	}
	pos := p.pos(nameTok)
	p.declared[nameTok.Lexeme] = pos
	return p.tree.addDecl(Decl{Name: nameTok.Lexeme, Type: typ, Pos: pos})
}

func (p *Parser) hasLocal(name string) bool {
	_, ok := p.declared[name]
	return ok
}

func (p *Parser) parseType() Type {
	tok := p.advance()
	var typ Type
	switch tok.Type {
	case lexer.TokenInt:
		typ.Code = TypeInt
	case lexer.TokenBoolean:
		typ.Code = TypeBool
	default:
		p.fail(tok, "basic type expected and not found")
	}
	if p.match(lexer.TokenLBracket) {
		typ.Size = p.arraySize()
		p.consume(lexer.TokenRBracket, "expecting ']' after array size")
	}
	return typ
}

func (p *Parser) arraySize() int {
	tok := p.consume(lexer.TokenNumber, "expecting numeric constant as array size")
	size, err := strconv.Atoi(tok.Lexeme)
	if err != nil || size <= 0 {
		p.fail(tok, fmt.Sprintf("invalid array size %s", tok.Lexeme))
	}
	return size
}

// --- Statements ---

func (p *Parser) statement() StmtID {
	tok := p.peek()
	pos := p.pos(tok)
	switch tok.Type {
	case lexer.TokenIdent:
		p.advance()
		index := NoExpr
		if p.match(lexer.TokenLBracket) {
			index = p.expression()
			p.consume(lexer.TokenRBracket, "expecting ']' after index")
		}
		p.consume(lexer.TokenAssign, "expecting '=' in assignment")
		value := p.expression()
		p.consume(lexer.TokenSemicolon, "expecting ';' after assignment")
		return p.tree.assign(tok.Lexeme, index, value, pos)

	case lexer.TokenIf:
		p.advance()
		cond := p.condition("if")
		body := p.statement()
		// the else branch binds to the nearest if
		if p.match(lexer.TokenElse) {
			elseBody := p.statement()
			return p.tree.cond(IfElseStmt, cond, body, elseBody, pos)
		}
		return p.tree.cond(IfStmt, cond, body, NoStmt, pos)

	case lexer.TokenWhile:
		p.advance()
		cond := p.condition("while")
		body := p.statement()
		return p.tree.cond(WhileStmt, cond, body, NoStmt, pos)

	case lexer.TokenDo:
		p.advance()
		body := p.statement()
		p.consume(lexer.TokenWhile, "expecting 'while' after do body")
		cond := p.condition("while")
		p.consume(lexer.TokenSemicolon, "expecting ';' after do-while")
		return p.tree.cond(DoWhileStmt, cond, body, NoStmt, pos)

	case lexer.TokenBreak:
		p.advance()
		p.consume(lexer.TokenSemicolon, "expecting ';' after break")
		return p.tree.simple(BreakStmt, NoExpr, pos)

	case lexer.TokenPrint:
		p.advance()
		p.consume(lexer.TokenLParen, "expecting '(' after print")
		value := p.expression()
		p.consume(lexer.TokenRParen, "expecting ')' after print argument")
		p.consume(lexer.TokenSemicolon, "expecting ';' after print")
		return p.tree.simple(PrintStmt, value, pos)

	case lexer.TokenLBrace:
		return p.block()

	case lexer.TokenInt, lexer.TokenBoolean:
		p.fail(tok, "declarations must appear at the start of a block")
	}
	p.fail(tok, fmt.Sprintf("no valid symbol at start of statement, found %s", tok.Type.Describe()))
	return NoStmt
}

func (p *Parser) condition(keyword string) ExprID {
	p.consume(lexer.TokenLParen, fmt.Sprintf("expecting '(' after %s", keyword))
	cond := p.expression()
	p.consume(lexer.TokenRParen, "expecting ')' after condition")
	return cond
}

// --- Expression Parsing with Precedence ---
//
// Each binary layer folds left to right, so a - b - c is (a - b) - c.

func (p *Parser) expression() ExprID {
	expr := p.and()
	for p.check(lexer.TokenOr) {
		tok := p.advance()
		expr = p.tree.binary(OrExpr, OpNone, expr, p.and(), p.pos(tok))
	}
	return expr
}

func (p *Parser) and() ExprID {
	expr := p.equality()
	for p.check(lexer.TokenAnd) {
		tok := p.advance()
		expr = p.tree.binary(AndExpr, OpNone, expr, p.equality(), p.pos(tok))
	}
	return expr
}

func (p *Parser) equality() ExprID {
	expr := p.relational()
	for p.check(lexer.TokenEqual) || p.check(lexer.TokenNotEqual) {
		tok := p.advance()
		op := OpEq
		if tok.Type == lexer.TokenNotEqual {
			op = OpNotEq
		}
		expr = p.tree.binary(BinaryArith, op, expr, p.relational(), p.pos(tok))
	}
	return expr
}

// relational is not associative: a < b < c is rejected by the caller
// finding a stray '<'.
func (p *Parser) relational() ExprID {
	expr := p.additive()
	if op, ok := relational[p.peek().Type]; ok {
		tok := p.advance()
		expr = p.tree.binary(RelExpr, op, expr, p.additive(), p.pos(tok))
	}
	return expr
}

func (p *Parser) additive() ExprID {
	expr := p.multiplicative()
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		tok := p.advance()
		op := OpAdd
		if tok.Type == lexer.TokenMinus {
			op = OpSub
		}
		expr = p.tree.binary(BinaryArith, op, expr, p.multiplicative(), p.pos(tok))
	}
	return expr
}

func (p *Parser) multiplicative() ExprID {
	expr := p.unary()
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) {
		tok := p.advance()
		op := OpMul
		if tok.Type == lexer.TokenSlash {
			op = OpDiv
		}
		expr = p.tree.binary(BinaryArith, op, expr, p.unary(), p.pos(tok))
	}
	return expr
}

func (p *Parser) unary() ExprID {
	if p.match(lexer.TokenNot) {
		pos := p.pos(p.previous())
		return p.tree.unary(NotExpr, OpNone, p.unary(), pos)
	}
	if p.match(lexer.TokenMinus) {
		pos := p.pos(p.previous())
		return p.tree.unary(UnaryOp, OpNeg, p.unary(), pos)
	}
	return p.primary()
}

func (p *Parser) primary() ExprID {
	tok := p.peek()
	pos := p.pos(tok)
	switch tok.Type {
	case lexer.TokenLParen:
		p.advance()
		expr := p.expression()
		p.consume(lexer.TokenRParen, "expecting ')' after expression")
		return expr
	case lexer.TokenIdent:
		p.advance()
		if p.match(lexer.TokenLBracket) {
			index := p.expression()
			p.consume(lexer.TokenRBracket, "expecting ']' after index")
			return p.tree.access(tok.Lexeme, index, pos)
		}
		return p.tree.ident(tok.Lexeme, pos)
	case lexer.TokenNumber:
		p.advance()
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.fail(tok, fmt.Sprintf("malformed numeric literal %s", tok.Lexeme))
		}
		return p.tree.intLit(v, pos)
	case lexer.TokenTrue, lexer.TokenFalse:
		p.advance()
		return p.tree.boolLit(tok.Type == lexer.TokenTrue, pos)
	}
	p.fail(tok, fmt.Sprintf("error while parsing expression, found %s", tok.Type.Describe()))
	return NoExpr
}

// --- Utility methods ---

func (p *Parser) pos(tok lexer.Token) Pos {
	return Pos{Line: tok.Line, Column: tok.Column}
}

func (p *Parser) fail(tok lexer.Token, msg string) {
	err := errors.NewParseError(msg, tok.Line, tok.Column).
		WithFile(p.file).
		WithSourceText(p.source)
	panic(err)
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	tok := p.peek()
	if tok.Type == lexer.TokenEOF {
		p.fail(tok, "unexpected end of input, "+msg)
	}
	p.fail(tok, fmt.Sprintf("%s, instead found %s", msg, tok.Type.Describe()))
	return tok
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return t == lexer.TokenEOF
	}
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) previous() lexer.Token {
	if p.current == 0 {
		return p.peek()
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token {
	if p.current >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
