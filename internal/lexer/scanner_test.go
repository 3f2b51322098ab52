package lexer

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"toylang/internal/errors"
)

func scanTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	tokens, err := NewScanner(src).ScanTokens()
	if err != nil {
		t.Fatalf("scan %q: %v", src, err)
	}
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestScanOperators(t *testing.T) {
	got := scanTypes(t, "( ) { } [ ] + - * / || && == != < <= > >= ! = ;")
	want := []TokenType{
		TokenLParen, TokenRParen, TokenLBrace, TokenRBrace, TokenLBracket, TokenRBracket,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenOr, TokenAnd,
		TokenEqual, TokenNotEqual, TokenLT, TokenLE, TokenGT, TokenGE,
		TokenNot, TokenAssign, TokenSemicolon, TokenEOF,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	got := scanTypes(t, "if else do while break int boolean true false print bool x1 _tmp")
	want := []TokenType{
		TokenIf, TokenElse, TokenDo, TokenWhile, TokenBreak, TokenInt, TokenBoolean,
		TokenTrue, TokenFalse, TokenPrint, TokenIdent, TokenIdent, TokenIdent, TokenEOF,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
}

func TestScanNumberFollowedByIdentifier(t *testing.T) {
	tokens, err := NewScanner("12ab").ScanTokens()
	if err != nil {
		t.Fatal(err)
	}
	got := []Token{tokens[0], tokens[1]}
	want := []Token{
		{Type: TokenNumber, Lexeme: "12", Line: 1, Column: 1},
		{Type: TokenIdent, Lexeme: "ab", Line: 1, Column: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestScanPositionsAndComments(t *testing.T) {
	tokens, err := NewScanner("int x; // declare\n  x = 10;").ScanTokens()
	if err != nil {
		t.Fatal(err)
	}
	assign := tokens[3]
	if assign.Type != TokenIdent || assign.Line != 2 || assign.Column != 3 {
		t.Errorf("unexpected token after comment: %+v", assign)
	}
	eof := tokens[len(tokens)-1]
	if eof.Type != TokenEOF || eof.Line != 2 {
		t.Errorf("unexpected EOF token: %+v", eof)
	}
}

func TestLexicalErrorNamesSymbol(t *testing.T) {
	tests := map[string]string{
		"x = 3 % 2;":    "'%'",
		"x = é;":        "'é'",
		"print(1);\xff": `'\xff'`,
		"int 日本;":       "'日'",
		"x = \u00a0;":   `'\u00a0'`,
	}
	for input, want := range tests {
		_, err := NewScanner(input).ScanTokens()
		var te *errors.ToyError
		if !stderrors.As(err, &te) {
			t.Fatalf("%q: expected lexical error, got %v", input, err)
		}
		if got := te.Message; got != "lexical error on symbol "+want {
			t.Errorf("%q: message = %q, want symbol %s", input, got, want)
		}
	}
}

func TestScanLexicalErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column int
	}{
		{"lone pipe", "x = a | b;", 1, 7},
		{"lone ampersand", "x = a & b;", 1, 7},
		{"unknown symbol", "int x;\nx = 3 % 2;", 2, 7},
		{"non ascii", "x = é;", 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(tt.input).ScanTokens()
			if err == nil {
				t.Fatalf("expected lexical error")
			}
			var te *errors.ToyError
			if !stderrors.As(err, &te) {
				t.Fatalf("unexpected error type %T", err)
			}
			if te.Type != errors.LexicalError {
				t.Errorf("type = %s", te.Type)
			}
			if te.Location.Line != tt.line || te.Location.Column != tt.column {
				t.Errorf("location = %d:%d, want %d:%d", te.Location.Line, te.Location.Column, tt.line, tt.column)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := map[TokenType]string{
		TokenSemicolon: "';'",
		TokenIdent:     "identifier",
		TokenEOF:       "end of input",
		TokenBoolean:   "'boolean'",
	}
	for tt, want := range tests {
		if got := tt.Describe(); got != want {
			t.Errorf("%s.Describe() = %q, want %q", tt, got, want)
		}
	}
}
