package QP

import (
	"fmt"
	"strings"
)

type TokenType int

const (
	TokenInvalid TokenType = iota
	TokenEOF
	TokenIdentifier
	TokenQuotedIdentifier
	TokenString
	TokenNumber
	TokenParam
	TokenLeftParen
	TokenRightParen
	TokenComma
	TokenSemicolon
	TokenDot
	TokenOperator
)

type Token struct {
	Type     TokenType
	Literal  string
	Location int
}

// Tokenizer is a lexer for the subset of SQL the pivot host needs to
// understand: identifiers, literals, parameters and grouping punctuation.
// Everything else is returned as TokenOperator. Comments are skipped.
type Tokenizer struct {
	input string
	pos   int
}

func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{input: input}
}

// Tokenize returns every token of the input, terminated by TokenEOF.
func (t *Tokenizer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := t.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token.
func (t *Tokenizer) Next() (Token, error) {
	if err := t.skipWhitespace(); err != nil {
		return Token{}, err
	}
	start := t.pos
	if t.pos >= len(t.input) {
		return Token{Type: TokenEOF, Location: start}, nil
	}

	ch := t.input[t.pos]
	switch {
	case isIdentStart(ch):
		for t.pos < len(t.input) && isIdentPart(t.input[t.pos]) {
			t.pos++
		}
		return t.token(TokenIdentifier, start), nil
	case isDigit(ch) || (ch == '.' && t.pos+1 < len(t.input) && isDigit(t.input[t.pos+1])):
		t.readNumber()
		return t.token(TokenNumber, start), nil
	case ch == '\'':
		if err := t.readQuoted('\'', '\''); err != nil {
			return Token{}, err
		}
		return t.token(TokenString, start), nil
	case ch == '"':
		if err := t.readQuoted('"', '"'); err != nil {
			return Token{}, err
		}
		return t.token(TokenQuotedIdentifier, start), nil
	case ch == '`':
		if err := t.readQuoted('`', '`'); err != nil {
			return Token{}, err
		}
		return t.token(TokenQuotedIdentifier, start), nil
	case ch == '[':
		if err := t.readQuoted('[', ']'); err != nil {
			return Token{}, err
		}
		return t.token(TokenQuotedIdentifier, start), nil
	case ch == '?':
		t.pos++
		for t.pos < len(t.input) && isDigit(t.input[t.pos]) {
			t.pos++
		}
		return t.token(TokenParam, start), nil
	case (ch == ':' || ch == '@' || ch == '$') && t.pos+1 < len(t.input) && isIdentPart(t.input[t.pos+1]):
		t.pos++
		for t.pos < len(t.input) && isIdentPart(t.input[t.pos]) {
			t.pos++
		}
		return t.token(TokenParam, start), nil
	case ch == '(':
		t.pos++
		return t.token(TokenLeftParen, start), nil
	case ch == ')':
		t.pos++
		return t.token(TokenRightParen, start), nil
	case ch == ',':
		t.pos++
		return t.token(TokenComma, start), nil
	case ch == ';':
		t.pos++
		return t.token(TokenSemicolon, start), nil
	case ch == '.':
		t.pos++
		return t.token(TokenDot, start), nil
	}

	// Multi-character operators are kept together so "<>" or "||" read as one.
	t.pos++
	for t.pos < len(t.input) && strings.IndexByte("<>=!|", t.input[t.pos]) >= 0 && strings.IndexByte("<>=!|", ch) >= 0 {
		t.pos++
	}
	return t.token(TokenOperator, start), nil
}

func (t *Tokenizer) token(tt TokenType, start int) Token {
	return Token{Type: tt, Literal: t.input[start:t.pos], Location: start}
}

func (t *Tokenizer) skipWhitespace() error {
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			t.pos++
		case ch == '-' && t.pos+1 < len(t.input) && t.input[t.pos+1] == '-':
			for t.pos < len(t.input) && t.input[t.pos] != '\n' {
				t.pos++
			}
		case ch == '/' && t.pos+1 < len(t.input) && t.input[t.pos+1] == '*':
			end := strings.Index(t.input[t.pos+2:], "*/")
			if end < 0 {
				return fmt.Errorf("unterminated comment at offset %d", t.pos)
			}
			t.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (t *Tokenizer) readNumber() {
	for t.pos < len(t.input) && (isDigit(t.input[t.pos]) || t.input[t.pos] == '.') {
		t.pos++
	}
	if t.pos < len(t.input) && (t.input[t.pos] == 'e' || t.input[t.pos] == 'E') {
		t.pos++
		if t.pos < len(t.input) && (t.input[t.pos] == '+' || t.input[t.pos] == '-') {
			t.pos++
		}
		for t.pos < len(t.input) && isDigit(t.input[t.pos]) {
			t.pos++
		}
	}
}

// readQuoted consumes a quoted run. A doubled close character is an escape
// except for bracket quoting.
func (t *Tokenizer) readQuoted(open, close byte) error {
	start := t.pos
	t.pos++
	for t.pos < len(t.input) {
		if t.input[t.pos] == close {
			if open != '[' && t.pos+1 < len(t.input) && t.input[t.pos+1] == close {
				t.pos += 2
				continue
			}
			t.pos++
			return nil
		}
		t.pos++
	}
	return fmt.Errorf("unterminated %c...%c at offset %d", open, close, start)
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
