package pivot

import (
	"math"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

// operatorTokens maps constraint operators to the SQL text used when the
// constraint is pushed into the key query. An empty token means the
// operator is not pushed down.
var operatorTokens = map[DS.ConstraintOp]string{
	DS.OpEQ:        "=",
	DS.OpGT:        ">",
	DS.OpLE:        "<=",
	DS.OpLT:        "<",
	DS.OpGE:        ">=",
	DS.OpMatch:     "MATCH",
	DS.OpLike:      "LIKE",
	DS.OpGlob:      "GLOB",
	DS.OpRegexp:    "REGEXP",
	DS.OpNE:        "<>",
	DS.OpIsNot:     "IS NOT",
	DS.OpIsNotNull: "IS NOT NULL",
	DS.OpIsNull:    "IS NULL",
	DS.OpIs:        "IS",
	DS.OpLimit:     "",
	DS.OpOffset:    "",
	DS.OpFunction:  "",
}

// plannedRows is the fixed row estimate reported for every plan.
const plannedRows = 10

type predicate struct {
	column int
	token  string
	unary  bool
}

type ordering struct {
	column int
	desc   bool
}

// pushdownQuery is a key query with predicates and orderings restricted to
// row key columns.
type pushdownQuery struct {
	base    string
	idents  []string
	where   []predicate
	orderBy []ordering
}

// render produces the SQL text. Binary predicates are rendered with a
// positional placeholder, unary predicates without one.
func (q *pushdownQuery) render() string {
	var sb strings.Builder
	sb.WriteString(q.base)
	for i, p := range q.where {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(q.idents[p.column])
		sb.WriteString(" ")
		sb.WriteString(p.token)
		if !p.unary {
			sb.WriteString(" ?")
		}
	}
	for i, o := range q.orderBy {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(q.idents[o.column])
		if o.desc {
			sb.WriteString(" DESC")
		}
	}
	return sb.String()
}

// BestIndex accepts every usable constraint on a row key column whose
// operator has a textual form, and every ordering on a row key column.
// Constraints on pivot columns are left for the host to evaluate.
func (t *Table) BestIndex(info *DS.IndexInfo) error {
	if len(info.ConstraintUsage) != len(info.Constraints) {
		info.ConstraintUsage = make([]DS.ConstraintUsage, len(info.Constraints))
	}

	q := pushdownQuery{base: t.scanSQL, idents: t.rowKeyIdents}
	placeholders := 0
	for i, c := range info.Constraints {
		if !c.Usable || c.Column < 0 || c.Column >= t.rowKeyArity {
			continue
		}
		token := operatorTokens[c.Op]
		if token == "" {
			continue
		}
		p := predicate{column: c.Column, token: token, unary: c.Op.Unary()}
		q.where = append(q.where, p)
		if !p.unary {
			placeholders++
			info.ConstraintUsage[i].ArgvIndex = placeholders
		}
		info.ConstraintUsage[i].Omit = true
	}

	for _, o := range info.OrderBy {
		if o.Column < 0 || o.Column >= t.rowKeyArity {
			continue
		}
		q.orderBy = append(q.orderBy, ordering{column: o.Column, desc: o.Desc})
	}
	// Consumed only when every requested term was pushed; a partial push
	// still leaves the host to sort.
	info.OrderByConsumed = len(q.orderBy) > 0 && len(q.orderBy) == len(info.OrderBy)

	info.IdxNum = placeholders
	info.IdxStr = q.render()
	info.EstimatedCost = float64(math.MaxInt32) / float64(len(q.where)+1)
	info.EstimatedRows = plannedRows
	return nil
}
