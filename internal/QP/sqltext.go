package QP

import (
	"fmt"
	"strconv"
	"strings"
)

// maxParamIndex mirrors SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
const maxParamIndex = 32766

// CountParams returns the number of positional parameter slots sql
// declares, using SQLite numbering: "?" takes the next unused index, "?NNN"
// takes NNN, and each distinct ":name", "@name" or "$name" takes the next
// unused index the first time it appears.
func CountParams(sql string) (int, error) {
	slots, err := ParamSlots(sql)
	return len(slots), err
}

// ParamSlots returns one entry per parameter index. Slots taken by a named
// parameter hold its literal (":name"); numbered and anonymous slots hold "".
func ParamSlots(sql string) ([]string, error) {
	tz := NewTokenizer(sql)
	largest := 0
	named := map[string]int{}
	for {
		tok, err := tz.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type != TokenParam {
			continue
		}
		lit := tok.Literal
		switch {
		case lit == "?":
			largest++
		case lit[0] == '?':
			n, err := strconv.Atoi(lit[1:])
			if err != nil || n < 1 || n > maxParamIndex {
				return nil, fmt.Errorf("variable number must be between ?1 and ?%d: %s", maxParamIndex, lit)
			}
			if n > largest {
				largest = n
			}
		default:
			if _, ok := named[lit]; !ok {
				largest++
				named[lit] = largest
			}
		}
		if largest > maxParamIndex {
			return nil, fmt.Errorf("too many SQL variables")
		}
	}

	slots := make([]string, largest)
	for lit, idx := range named {
		slots[idx-1] = lit
	}
	return slots, nil
}

// QuoteIdent renders name as a double-quoted identifier, doubling any
// embedded quote.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Unquote strips identifier quoting ("x", `x`, [x]) and string quoting
// ('x') from lit. Unquoted input is returned as is.
func Unquote(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	first, last := lit[0], lit[len(lit)-1]
	switch {
	case first == '"' && last == '"':
		return strings.ReplaceAll(lit[1:len(lit)-1], `""`, `"`)
	case first == '`' && last == '`':
		return strings.ReplaceAll(lit[1:len(lit)-1], "``", "`")
	case first == '\'' && last == '\'':
		return strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
	case first == '[' && last == ']':
		return lit[1 : len(lit)-1]
	}
	return lit
}

// TrimEnclosingParens removes one pair of parentheses when they enclose the
// whole of s, so "(SELECT 1)" becomes "SELECT 1" while "(a) + (b)" is left
// alone.
func TrimEnclosingParens(s string) (string, error) {
	s = strings.TrimSpace(s)
	tokens, err := NewTokenizer(s).Tokenize()
	if err != nil {
		return "", err
	}
	if len(tokens) < 3 || tokens[0].Type != TokenLeftParen {
		return s, nil
	}
	depth := 0
	for i, tok := range tokens {
		switch tok.Type {
		case TokenLeftParen:
			depth++
		case TokenRightParen:
			depth--
			if depth == 0 {
				if tokens[i+1].Type != TokenEOF {
					return s, nil
				}
				return strings.TrimSpace(s[1:tok.Location]), nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced parentheses")
}

// SplitArgs splits s on commas that are not nested inside parentheses,
// quotes or comments. Each argument spans from its first to its last token,
// so whitespace and comments around it are dropped.
func SplitArgs(s string) ([]string, error) {
	tokens, err := NewTokenizer(s).Tokenize()
	if err != nil {
		return nil, err
	}
	var args []string
	depth := 0
	first, end := -1, -1
	flush := func() {
		if first < 0 {
			args = append(args, "")
		} else {
			args = append(args, s[first:end])
		}
		first, end = -1, -1
	}
	for _, tok := range tokens {
		switch {
		case tok.Type == TokenEOF:
			if depth != 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
			if first >= 0 || len(args) > 0 {
				flush()
			}
			return args, nil
		case tok.Type == TokenComma && depth == 0:
			flush()
			continue
		case tok.Type == TokenLeftParen:
			depth++
		case tok.Type == TokenRightParen:
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses at offset %d", tok.Location)
			}
		}
		if first < 0 {
			first = tok.Location
		}
		end = tok.Location + len(tok.Literal)
	}
	return args, nil
}

// SplitStatements splits a script on top-level semicolons. Empty statements
// are dropped.
func SplitStatements(script string) ([]string, error) {
	tokens, err := NewTokenizer(script).Tokenize()
	if err != nil {
		return nil, err
	}
	var stmts []string
	first, end := -1, -1
	for _, tok := range tokens {
		if tok.Type == TokenSemicolon || tok.Type == TokenEOF {
			if first >= 0 {
				stmts = append(stmts, script[first:end])
			}
			first, end = -1, -1
			continue
		}
		if first < 0 {
			first = tok.Location
		}
		end = tok.Location + len(tok.Literal)
	}
	return stmts, nil
}
