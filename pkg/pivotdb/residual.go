package pivotdb

import (
	"fmt"
	"regexp"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
)

// residual is a predicate the table did not consume; the host evaluates it
// against every row the cursor returns.
type residual struct {
	col int
	op  DS.ConstraintOp
	arg DS.Value
	re  *regexp.Regexp
}

func newResidual(col int, p Predicate) (residual, error) {
	r := residual{col: col, op: p.Op, arg: p.Value}
	var err error
	switch p.Op {
	case DS.OpLike:
		if !p.Value.IsNull() {
			r.re, err = regexp.Compile(likeToRegexp(p.Value.Text()))
		}
	case DS.OpGlob:
		if !p.Value.IsNull() {
			r.re, err = regexp.Compile(globToRegexp(p.Value.Text()))
		}
	case DS.OpRegexp:
		if !p.Value.IsNull() {
			r.re, err = regexp.Compile(p.Value.Text())
		}
	case DS.OpEQ, DS.OpNE, DS.OpLT, DS.OpLE, DS.OpGT, DS.OpGE,
		DS.OpIs, DS.OpIsNot, DS.OpIsNull, DS.OpIsNotNull:
	default:
		return r, perrors.Misusef("operator %s cannot be evaluated on column %s", OpText(p.Op), p.Column)
	}
	if err != nil {
		return r, fmt.Errorf("invalid %s pattern %q: %w", OpText(p.Op), p.Value.Text(), err)
	}
	return r, nil
}

// accept reports whether the current row passes every residual predicate.
func (p *plan) accept(rc *rowCache) (bool, error) {
	for _, r := range p.residual {
		v, err := rc.get(r.col)
		if err != nil {
			return false, err
		}
		if !r.match(v) {
			return false, nil
		}
	}
	return true, nil
}

// match follows SQL semantics: a comparison involving NULL is never true,
// except for IS, IS NOT and the NULL tests.
func (r residual) match(v DS.Value) bool {
	switch r.op {
	case DS.OpIsNull:
		return v.IsNull()
	case DS.OpIsNotNull:
		return !v.IsNull()
	case DS.OpIs:
		return isSame(v, r.arg)
	case DS.OpIsNot:
		return !isSame(v, r.arg)
	}

	if v.IsNull() || r.arg.IsNull() {
		return false
	}
	switch r.op {
	case DS.OpEQ:
		return DS.Compare(v, r.arg) == 0
	case DS.OpNE:
		return DS.Compare(v, r.arg) != 0
	case DS.OpLT:
		return DS.Compare(v, r.arg) < 0
	case DS.OpLE:
		return DS.Compare(v, r.arg) <= 0
	case DS.OpGT:
		return DS.Compare(v, r.arg) > 0
	case DS.OpGE:
		return DS.Compare(v, r.arg) >= 0
	case DS.OpLike, DS.OpGlob, DS.OpRegexp:
		return r.re.MatchString(v.Text())
	}
	return false
}

func isSame(a, b DS.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	return DS.Compare(a, b) == 0
}

// likeToRegexp translates a LIKE pattern: % is any run, _ is one
// character, and ASCII letters match case-insensitively.
func likeToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, ch := range pattern {
		switch {
		case ch == '%':
			sb.WriteString(".*")
		case ch == '_':
			sb.WriteString(".")
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
			lower := ch | 0x20
			sb.WriteString("[" + string(lower) + string(lower-0x20) + "]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// globToRegexp translates a GLOB pattern: * is any run, ? is one character
// and [...] is a character class, negated by a leading ^.
func globToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch ch := runes[i]; ch {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			end := i + 1
			if end < len(runes) && runes[end] == '^' {
				end++
			}
			if end < len(runes) && runes[end] == ']' {
				end++
			}
			for end < len(runes) && runes[end] != ']' {
				end++
			}
			if end >= len(runes) {
				sb.WriteString(regexp.QuoteMeta(string(ch)))
				continue
			}
			class := runes[i+1 : end]
			sb.WriteString("[")
			for j, c := range class {
				if c == '\\' || c == ']' || (c == '[' && j > 0) {
					sb.WriteString(`\`)
				}
				sb.WriteRune(c)
			}
			sb.WriteString("]")
			i = end
		default:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}
