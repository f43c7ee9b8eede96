package pivotdb

import (
	"fmt"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

var opSyntax = map[string]DS.ConstraintOp{
	"=":           DS.OpEQ,
	"==":          DS.OpEQ,
	"<":           DS.OpLT,
	"<=":          DS.OpLE,
	">":           DS.OpGT,
	">=":          DS.OpGE,
	"!=":          DS.OpNE,
	"<>":          DS.OpNE,
	"LIKE":        DS.OpLike,
	"GLOB":        DS.OpGlob,
	"REGEXP":      DS.OpRegexp,
	"MATCH":       DS.OpMatch,
	"IS":          DS.OpIs,
	"IS NOT":      DS.OpIsNot,
	"IS NULL":     DS.OpIsNull,
	"ISNULL":      DS.OpIsNull,
	"IS NOT NULL": DS.OpIsNotNull,
	"NOTNULL":     DS.OpIsNotNull,
	"NOT NULL":    DS.OpIsNotNull,
}

var opText = map[DS.ConstraintOp]string{
	DS.OpEQ:        "=",
	DS.OpLT:        "<",
	DS.OpLE:        "<=",
	DS.OpGT:        ">",
	DS.OpGE:        ">=",
	DS.OpNE:        "<>",
	DS.OpLike:      "LIKE",
	DS.OpGlob:      "GLOB",
	DS.OpRegexp:    "REGEXP",
	DS.OpMatch:     "MATCH",
	DS.OpIs:        "IS",
	DS.OpIsNot:     "IS NOT",
	DS.OpIsNull:    "IS NULL",
	DS.OpIsNotNull: "IS NOT NULL",
}

// ParseOp parses the SQL spelling of a comparison operator, such as ">="
// or "is not null". Runs of whitespace are ignored.
func ParseOp(s string) (DS.ConstraintOp, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if op, ok := opSyntax[norm]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// OpText returns the SQL spelling of op.
func OpText(op DS.ConstraintOp) string {
	if s, ok := opText[op]; ok {
		return s
	}
	return op.String()
}
