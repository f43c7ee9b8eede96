package main

import (
	"fmt"
	"strconv"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	"github.com/cyw0ng95/pivotvtab/pkg/pivotdb"
)

type word struct {
	text   string
	quoted bool
}

// splitWords splits a command line on whitespace. Single-quoted words keep
// their spaces; '' inside quotes is a literal quote.
func splitWords(line string) ([]word, error) {
	var out []word
	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '\'':
			var sb strings.Builder
			i++
			closed := false
			for i < len(line) {
				if line[i] == '\'' {
					if i+1 < len(line) && line[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(line[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string in %q", line)
			}
			out = append(out, word{text: sb.String(), quoted: true})
		default:
			start := i
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
			out = append(out, word{text: line[start:i]})
		}
	}
	return out, nil
}

func isKeyword(w word, kw string) bool {
	return !w.quoted && strings.EqualFold(w.text, kw)
}

// literalValue converts a command line word to a value: quoted words are
// text, NULL is null, and numbers are parsed.
func literalValue(w word) DS.Value {
	if w.quoted {
		return DS.StringValue(w.text)
	}
	if strings.EqualFold(w.text, "null") {
		return DS.NullValue()
	}
	if i, err := strconv.ParseInt(w.text, 10, 64); err == nil {
		return DS.IntValue(i)
	}
	if f, err := strconv.ParseFloat(w.text, 64); err == nil {
		return DS.FloatValue(f)
	}
	return DS.StringValue(w.text)
}

// parseScan parses
//
//	NAME [cols C1,C2] [where COL OP [VAL] [and COL OP [VAL]]...] [order COL [asc|desc][, ...]] [limit N]
//
// into a table name and a query. where and order may repeat.
func parseScan(words []word) (string, pivotdb.Query, error) {
	var q pivotdb.Query
	if len(words) == 0 {
		return "", q, fmt.Errorf("missing table name")
	}
	table := words[0].text
	rest := words[1:]

	for len(rest) > 0 {
		kw := rest[0]
		rest = rest[1:]
		switch {
		case isKeyword(kw, "cols"):
			if len(rest) == 0 {
				return "", q, fmt.Errorf("cols: missing column list")
			}
			for _, c := range strings.Split(rest[0].text, ",") {
				if c = strings.TrimSpace(c); c != "" {
					q.Columns = append(q.Columns, c)
				}
			}
			rest = rest[1:]

		case isKeyword(kw, "where"), isKeyword(kw, "and"):
			p, n, err := parsePredicate(rest)
			if err != nil {
				return "", q, err
			}
			q.Where = append(q.Where, p)
			rest = rest[n:]

		case isKeyword(kw, "order"):
			if len(rest) > 0 && isKeyword(rest[0], "by") {
				rest = rest[1:]
			}
			if len(rest) == 0 {
				return "", q, fmt.Errorf("order: missing column")
			}
			col := strings.TrimSuffix(rest[0].text, ",")
			more := col != rest[0].text
			rest = rest[1:]
			o := pivotdb.Order{Column: col}
			if !more && len(rest) > 0 {
				dir := strings.TrimSuffix(rest[0].text, ",")
				switch {
				case strings.EqualFold(dir, "desc"):
					o.Desc = true
					rest = rest[1:]
				case strings.EqualFold(dir, "asc"):
					rest = rest[1:]
				}
			}
			q.OrderBy = append(q.OrderBy, o)

		case isKeyword(kw, "limit"):
			if len(rest) == 0 {
				return "", q, fmt.Errorf("limit: missing count")
			}
			n, err := strconv.Atoi(rest[0].text)
			if err != nil || n < 0 {
				return "", q, fmt.Errorf("limit: invalid count %q", rest[0].text)
			}
			q.Limit = n
			rest = rest[1:]

		default:
			// continuation of an order list: "order a, b desc"
			if len(q.OrderBy) > 0 && !kw.quoted {
				rest = append([]word{{text: "order"}, kw}, rest...)
				continue
			}
			return "", q, fmt.Errorf("unexpected %q", kw.text)
		}
	}
	return table, q, nil
}

// parsePredicate reads COL OP [VAL] and reports how many words it used.
// Multi-word operators are matched longest first.
func parsePredicate(words []word) (pivotdb.Predicate, int, error) {
	var p pivotdb.Predicate
	if len(words) < 2 {
		return p, 0, fmt.Errorf("where: expected COL OP [VAL]")
	}
	p.Column = words[0].text

	opLen := 0
	for n := 3; n >= 1; n-- {
		if 1+n > len(words) {
			continue
		}
		parts := make([]string, 0, n)
		quoted := false
		for _, w := range words[1 : 1+n] {
			parts = append(parts, w.text)
			quoted = quoted || w.quoted
		}
		if quoted {
			continue
		}
		if op, err := pivotdb.ParseOp(strings.Join(parts, " ")); err == nil {
			p.Op = op
			opLen = n
			break
		}
	}
	if opLen == 0 {
		return p, 0, fmt.Errorf("where %s: unknown operator %q", p.Column, words[1].text)
	}
	used := 1 + opLen
	if p.Op.Unary() {
		return p, used, nil
	}
	if used >= len(words) {
		return p, 0, fmt.Errorf("where %s %s: missing value", p.Column, pivotdb.OpText(p.Op))
	}
	p.Value = literalValue(words[used])
	return p, used + 1, nil
}
