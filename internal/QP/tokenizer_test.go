package QP

import (
	"testing"
)

func tokenTypes(t *testing.T, input string) ([]Token, []TokenType) {
	t.Helper()
	tokens, err := NewTokenizer(input).Tokenize()
	if err != nil {
		t.Fatalf("tokenize %q failed: %v", input, err)
	}
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return tokens, types
}

func TestTokenizerSelect(t *testing.T) {
	tokens, types := tokenTypes(t, "SELECT val FROM x WHERE r_id = ?1")
	want := []TokenType{
		TokenIdentifier, TokenIdentifier, TokenIdentifier, TokenIdentifier,
		TokenIdentifier, TokenIdentifier, TokenOperator, TokenParam, TokenEOF,
	}
	if len(types) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(types), tokens)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token %d (%q): expected type %d, got %d", i, tokens[i].Literal, want[i], types[i])
		}
	}
	if tokens[7].Literal != "?1" || tokens[7].Location != 31 {
		t.Errorf("unexpected param token %+v", tokens[7])
	}
}

func TestTokenizerQuoting(t *testing.T) {
	tokens, _ := tokenTypes(t, `'it''s' "a""b" [x y] `+"`q`")
	want := []struct {
		tt  TokenType
		lit string
	}{
		{TokenString, `'it''s'`},
		{TokenQuotedIdentifier, `"a""b"`},
		{TokenQuotedIdentifier, `[x y]`},
		{TokenQuotedIdentifier, "`q`"},
	}
	for i, w := range want {
		if tokens[i].Type != w.tt || tokens[i].Literal != w.lit {
			t.Errorf("token %d: expected %q, got %+v", i, w.lit, tokens[i])
		}
	}
}

func TestTokenizerNumber(t *testing.T) {
	tokens, _ := tokenTypes(t, "SELECT 123, 45.67, .5, 1e-3")
	var nums []string
	for _, tok := range tokens {
		if tok.Type == TokenNumber {
			nums = append(nums, tok.Literal)
		}
	}
	want := []string{"123", "45.67", ".5", "1e-3"}
	if len(nums) != len(want) {
		t.Fatalf("expected numbers %v, got %v", want, nums)
	}
	for i := range want {
		if nums[i] != want[i] {
			t.Errorf("expected %q, got %q", want[i], nums[i])
		}
	}
}

func TestTokenizerOperators(t *testing.T) {
	tokens, _ := tokenTypes(t, "a <> b AND c <= d || e")
	var ops []string
	for _, tok := range tokens {
		if tok.Type == TokenOperator {
			ops = append(ops, tok.Literal)
		}
	}
	if len(ops) != 3 || ops[0] != "<>" || ops[1] != "<=" || ops[2] != "||" {
		t.Errorf("unexpected operators %v", ops)
	}
}

func TestTokenizerParams(t *testing.T) {
	tokens, _ := tokenTypes(t, "? ?2 :name @v $1 $x")
	for i, lit := range []string{"?", "?2", ":name", "@v", "$1", "$x"} {
		if tokens[i].Type != TokenParam || tokens[i].Literal != lit {
			t.Errorf("token %d: expected param %q, got %+v", i, lit, tokens[i])
		}
	}
}

func TestTokenizerComment(t *testing.T) {
	_, types := tokenTypes(t, "SELECT /* block\n comment */ 1 -- this is a comment")
	if len(types) != 3 || types[1] != TokenNumber {
		t.Errorf("expected SELECT, number, EOF; got %v", types)
	}
}

func TestTokenizerErrors(t *testing.T) {
	for _, input := range []string{"'open", `"open`, "[open", "/* open"} {
		if _, err := NewTokenizer(input).Tokenize(); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}
