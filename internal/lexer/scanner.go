package lexer

import (
	"fmt"
	"unicode/utf8"

	"toylang/internal/errors"
)

type TokenType string

const (
	// Keywords
	TokenIf      TokenType = "IF"
	TokenElse    TokenType = "ELSE"
	TokenDo      TokenType = "DO"
	TokenWhile   TokenType = "WHILE"
	TokenBreak   TokenType = "BREAK"
	TokenInt     TokenType = "INT"
	TokenBoolean TokenType = "BOOLEAN"
	TokenTrue    TokenType = "TRUE"
	TokenFalse   TokenType = "FALSE"
	TokenPrint   TokenType = "PRINT"

	// Literals
	TokenIdent  TokenType = "ID"
	TokenNumber TokenType = "NUM"

	// Symbols
	TokenLParen    TokenType = "("
	TokenRParen    TokenType = ")"
	TokenLBrace    TokenType = "{"
	TokenRBrace    TokenType = "}"
	TokenLBracket  TokenType = "["
	TokenRBracket  TokenType = "]"
	TokenPlus      TokenType = "+"
	TokenMinus     TokenType = "-"
	TokenStar      TokenType = "*"
	TokenSlash     TokenType = "/"
	TokenOr        TokenType = "||"
	TokenAnd       TokenType = "&&"
	TokenEqual     TokenType = "=="
	TokenNotEqual  TokenType = "!="
	TokenLT        TokenType = "<"
	TokenLE        TokenType = "<="
	TokenGT        TokenType = ">"
	TokenGE        TokenType = ">="
	TokenNot       TokenType = "!"
	TokenAssign    TokenType = "="
	TokenSemicolon TokenType = ";"
	TokenEOF       TokenType = "EOF"
)

var keywords = map[string]TokenType{
	"if":      TokenIf,
	"else":    TokenElse,
	"do":      TokenDo,
	"while":   TokenWhile,
	"break":   TokenBreak,
	"int":     TokenInt,
	"boolean": TokenBoolean,
	"true":    TokenTrue,
	"false":   TokenFalse,
	"print":   TokenPrint,
}

// Describe returns the text used for t in parser diagnostics.
func (t TokenType) Describe() string {
	switch t {
	case TokenIdent:
		return "identifier"
	case TokenNumber:
		return "numeric constant"
	case TokenEOF:
		return "end of input"
	}
	for word, kw := range keywords {
		if kw == t {
			return "'" + word + "'"
		}
	}
	return "'" + string(t) + "'"
}

type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("[%s] '%s'", t.Type, t.Lexeme)
}

type Scanner struct {
	source  string
	tokens  []Token
	start   int
	current int
	line    int
	lineAt  int // offset of the first byte of the current line
}

func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
	}
}

// ScanTokens tokenizes the whole source. The returned slice always ends with
// a TokenEOF; an unrecognized character aborts with a LexicalError.
func (s *Scanner) ScanTokens() ([]Token, error) {
	for !s.isAtEnd() {
		s.skipWhitespace()
		s.start = s.current
		if s.isAtEnd() {
			break
		}
		if err := s.scanToken(); err != nil {
			return nil, err
		}
	}
	s.tokens = append(s.tokens, Token{Type: TokenEOF, Line: s.line, Column: s.column(s.current)})
	return s.tokens, nil
}

func (s *Scanner) scanToken() error {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLParen)
	case ')':
		s.addToken(TokenRParen)
	case '{':
		s.addToken(TokenLBrace)
	case '}':
		s.addToken(TokenRBrace)
	case '[':
		s.addToken(TokenLBracket)
	case ']':
		s.addToken(TokenRBracket)
	case '+':
		s.addToken(TokenPlus)
	case '-':
		s.addToken(TokenMinus)
	case '*':
		s.addToken(TokenStar)
	case '/':
		if s.match('/') {
			for s.peek() != '\n' && !s.isAtEnd() {
				s.advance()
			}
		} else {
			s.addToken(TokenSlash)
		}
	case ';':
		s.addToken(TokenSemicolon)
	case '=':
		if s.match('=') {
			s.addToken(TokenEqual)
		} else {
			s.addToken(TokenAssign)
		}
	case '!':
		if s.match('=') {
			s.addToken(TokenNotEqual)
		} else {
			s.addToken(TokenNot)
		}
	case '<':
		if s.match('=') {
			s.addToken(TokenLE)
		} else {
			s.addToken(TokenLT)
		}
	case '>':
		if s.match('=') {
			s.addToken(TokenGE)
		} else {
			s.addToken(TokenGT)
		}
	case '&':
		if !s.match('&') {
			return s.errorAt(s.start, "lexical error on symbol '&'")
		}
		s.addToken(TokenAnd)
	case '|':
		if !s.match('|') {
			return s.errorAt(s.start, "lexical error on symbol '|'")
		}
		s.addToken(TokenOr)
	default:
		switch {
		case isDigit(c):
			s.number()
		case isAlpha(c):
			s.identifier()
		default:
			return s.errorAt(s.start, "lexical error on symbol "+s.symbol())
		}
	}
	return nil
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	text := s.source[s.start:s.current]
	if kw, ok := keywords[text]; ok {
		s.addToken(kw)
		return
	}
	s.addToken(TokenIdent)
}

func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}
	s.addToken(TokenNumber)
}

func (s *Scanner) addToken(t TokenType) {
	text := s.source[s.start:s.current]
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: text, Line: s.line, Column: s.column(s.start)})
}

// symbol quotes the character starting at s.start. Bytes that are not valid
// UTF-8 are shown as hex escapes.
func (s *Scanner) symbol() string {
	r, size := utf8.DecodeRuneInString(s.source[s.start:])
	if r == utf8.RuneError && size <= 1 {
		return fmt.Sprintf("'\\x%02x'", s.source[s.start])
	}
	return fmt.Sprintf("%q", r)
}

func (s *Scanner) errorAt(offset int, msg string) error {
	return errors.NewLexicalError(msg, s.line, s.column(offset)).WithSourceText(s.source)
}

func (s *Scanner) column(offset int) int {
	return offset - s.lineAt + 1
}

func (s *Scanner) advance() byte {
	s.current++
	return s.source[s.current-1]
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return '\000'
	}
	return s.source[s.current]
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) skipWhitespace() {
	for !s.isAtEnd() {
		switch s.peek() {
		case '\n':
			s.advance()
			s.line++
			s.lineAt = s.current
		case ' ', '\r', '\t', '\v', '\f':
			s.advance()
		default:
			return
		}
	}
}

func isAlpha(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
