package pivotdb

import (
	"fmt"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

// Plan describes how a Query would run.
type Plan struct {
	Table string
	// IdxNum and IdxStr are what BestIndex chose; IdxStr is passed to the
	// cursor verbatim.
	IdxNum int
	IdxStr string
	// Args are the values bound to the placeholders of IdxStr.
	Args []DS.Value
	// Pushed lists the predicates the table evaluates itself.
	Pushed []Predicate
	// Residual lists the predicates the host re-checks on every row.
	Residual        []Predicate
	OrderByConsumed bool
	EstimatedCost   float64
	EstimatedRows   int64
}

// Explain plans q without running it.
func (db *Database) Explain(table string, q Query) (*Plan, error) {
	p, err := db.plan(table, q)
	if err != nil {
		return nil, err
	}
	out := &Plan{
		Table:           table,
		IdxNum:          p.info.IdxNum,
		IdxStr:          p.info.IdxStr,
		Args:            p.args,
		OrderByConsumed: p.info.OrderByConsumed || len(q.OrderBy) == 0,
		EstimatedCost:   p.info.EstimatedCost,
		EstimatedRows:   p.info.EstimatedRows,
	}
	for i, u := range p.info.ConstraintUsage {
		if u.Omit {
			out.Pushed = append(out.Pushed, q.Where[i])
		} else {
			out.Residual = append(out.Residual, q.Where[i])
		}
	}
	return out, nil
}

// Lines renders the plan in the indented style of EXPLAIN QUERY PLAN.
func (p *Plan) Lines() []string {
	lines := []string{fmt.Sprintf("SCAN %s VIRTUAL TABLE INDEX %d:%s", p.Table, p.IdxNum, p.IdxStr)}
	for i, a := range p.Args {
		lines = append(lines, fmt.Sprintf("|--BIND ?%d = %s", i+1, a.String()))
	}
	for _, w := range p.Pushed {
		lines = append(lines, fmt.Sprintf("|--PUSHED %s", formatPredicate(w)))
	}
	for _, w := range p.Residual {
		lines = append(lines, fmt.Sprintf("|--FILTER %s", formatPredicate(w)))
	}
	if !p.OrderByConsumed {
		lines = append(lines, "|--USE TEMP B-TREE FOR ORDER BY")
	}
	lines = append(lines, fmt.Sprintf("`--COST %.1f ROWS %d", p.EstimatedCost, p.EstimatedRows))
	return lines
}

func formatPredicate(p Predicate) string {
	if p.Op.Unary() {
		return fmt.Sprintf("%s %s", p.Column, OpText(p.Op))
	}
	return fmt.Sprintf("%s %s %s", p.Column, OpText(p.Op), p.Value.String())
}
