package pivotdb

import (
	"context"
	"fmt"
	"slices"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
)

// Predicate restricts a scan to rows where Column Op Value holds. Value is
// ignored for IS NULL and IS NOT NULL.
type Predicate struct {
	Column string
	Op     DS.ConstraintOp
	Value  DS.Value
}

// Order sorts a scan by Column.
type Order struct {
	Column string
	Desc   bool
}

// Query selects rows from one virtual table. Predicates are combined with
// AND. An empty Columns selects every column. Limit <= 0 means no limit.
type Query struct {
	Columns []string
	Where   []Predicate
	OrderBy []Order
	Limit   int
}

// plan is a Query bound to a table and run through BestIndex.
type plan struct {
	table    string
	vt       DS.VTab
	columns  []string
	proj     []int
	info     *DS.IndexInfo
	args     []DS.Value
	residual []residual
	sortKeys []sortKey
	limit    int
}

type sortKey struct {
	col  int
	desc bool
}

func columnIndex(cols []string, name string) (int, bool) {
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return -1, false
}

func (db *Database) plan(table string, q Query) (*plan, error) {
	vt, err := db.Table(table)
	if err != nil {
		return nil, err
	}
	cols := vt.Columns()
	p := &plan{table: table, vt: vt, limit: q.Limit}

	if len(q.Columns) == 0 {
		p.columns = cols
		p.proj = make([]int, len(cols))
		for i := range cols {
			p.proj[i] = i
		}
	} else {
		for _, name := range q.Columns {
			i, ok := columnIndex(cols, name)
			if !ok {
				return nil, perrors.NotFoundf("no such column: %s", name)
			}
			p.columns = append(p.columns, cols[i])
			p.proj = append(p.proj, i)
		}
	}

	cons := make([]DS.IndexConstraint, len(q.Where))
	for i, w := range q.Where {
		col, ok := columnIndex(cols, w.Column)
		if !ok {
			return nil, perrors.NotFoundf("no such column: %s", w.Column)
		}
		cons[i] = DS.IndexConstraint{Column: col, Op: w.Op, Usable: true}
	}
	var order []DS.IndexOrderBy
	for _, o := range q.OrderBy {
		col, ok := columnIndex(cols, o.Column)
		if !ok {
			return nil, perrors.NotFoundf("no such column: %s", o.Column)
		}
		order = append(order, DS.IndexOrderBy{Column: col, Desc: o.Desc})
		p.sortKeys = append(p.sortKeys, sortKey{col: col, desc: o.Desc})
	}

	p.info = DS.NewIndexInfo(cons, order)
	if err := vt.BestIndex(p.info); err != nil {
		return nil, err
	}

	for i, u := range p.info.ConstraintUsage {
		if u.ArgvIndex > 0 {
			if u.ArgvIndex > len(p.args) {
				p.args = append(p.args, make([]DS.Value, u.ArgvIndex-len(p.args))...)
			}
			p.args[u.ArgvIndex-1] = q.Where[i].Value
		}
		if !u.Omit {
			r, err := newResidual(cons[i].Column, q.Where[i])
			if err != nil {
				return nil, err
			}
			p.residual = append(p.residual, r)
		}
	}
	if p.info.OrderByConsumed {
		p.sortKeys = nil
	}
	return p, nil
}

// Query plans q against table and starts the scan. Rows stream from the
// cursor unless the table could not honor the requested order, in which
// case they are buffered and sorted first.
func (db *Database) Query(ctx context.Context, table string, q Query) (*Rows, error) {
	if db.isClosed() {
		return nil, perrors.Misusef("database is closed")
	}
	p, err := db.plan(table, q)
	if err != nil {
		return nil, err
	}

	cur, err := p.vt.Open()
	if err != nil {
		return nil, err
	}
	if err := cur.Filter(ctx, p.info.IdxNum, p.info.IdxStr, p.args); err != nil {
		_ = cur.Close()
		return nil, err
	}
	db.log.Debug("query %s: %s", table, p.info.IdxStr)

	r := &Rows{ctx: ctx, cur: cur, plan: p, Columns: p.columns}
	if len(p.sortKeys) > 0 {
		if err := r.buffer(); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Rows is the result of Query.
type Rows struct {
	Columns []string

	ctx     context.Context
	cur     DS.VTabCursor
	plan    *plan
	started bool
	emitted int

	// sorted holds every row when the scan needed a client-side sort.
	sorted []bufferedRow
	pos    int

	row    []DS.Value
	rowID  int64
	err    error
	closed bool
}

type bufferedRow struct {
	rowID int64
	vals  []DS.Value
}

// Next advances to the next row. It returns false at the end of the scan
// or on error; check Err.
func (r *Rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	if r.plan.limit > 0 && r.emitted >= r.plan.limit {
		_ = r.Close()
		return false
	}

	if r.sorted != nil {
		if r.pos >= len(r.sorted) {
			_ = r.Close()
			return false
		}
		b := r.sorted[r.pos]
		r.pos++
		r.row = project(b.vals, r.plan.proj)
		r.rowID = b.rowID
		r.emitted++
		return true
	}

	vals, rowID, ok, err := r.advance()
	if err != nil {
		r.err = err
		_ = r.Close()
		return false
	}
	if !ok {
		_ = r.Close()
		return false
	}
	r.row = vals
	r.rowID = rowID
	r.emitted++
	return true
}

// advance moves the cursor to the next row that passes every residual
// predicate and returns its projected values.
func (r *Rows) advance() ([]DS.Value, int64, bool, error) {
	for {
		if r.started {
			if err := r.cur.Next(r.ctx); err != nil {
				return nil, 0, false, err
			}
		}
		r.started = true
		if r.cur.Eof() {
			return nil, 0, false, nil
		}

		rc := rowCache{ctx: r.ctx, cur: r.cur}
		pass, err := r.plan.accept(&rc)
		if err != nil {
			return nil, 0, false, err
		}
		if !pass {
			continue
		}
		vals := make([]DS.Value, len(r.plan.proj))
		for i, col := range r.plan.proj {
			if vals[i], err = rc.get(col); err != nil {
				return nil, 0, false, err
			}
		}
		rowID, err := r.cur.RowID()
		if err != nil {
			return nil, 0, false, err
		}
		return vals, rowID, true, nil
	}
}

// buffer drains the cursor and sorts every accepted row.
func (r *Rows) buffer() error {
	ncols := len(r.plan.vt.Columns())
	full := make([]int, ncols)
	for i := range full {
		full[i] = i
	}
	proj := r.plan.proj
	r.plan.proj = full
	defer func() { r.plan.proj = proj }()

	rows := []bufferedRow{}
	for {
		vals, rowID, ok, err := r.advance()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rows = append(rows, bufferedRow{rowID: rowID, vals: vals})
	}
	keys := r.plan.sortKeys
	slices.SortStableFunc(rows, func(a, b bufferedRow) int {
		for _, k := range keys {
			c := DS.Compare(a.vals[k.col], b.vals[k.col])
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	r.sorted = rows
	return nil
}

func project(vals []DS.Value, proj []int) []DS.Value {
	out := make([]DS.Value, len(proj))
	for i, col := range proj {
		out[i] = vals[col]
	}
	return out
}

// Values returns a copy of the current row.
func (r *Rows) Values() []DS.Value {
	out := make([]DS.Value, len(r.row))
	for i, v := range r.row {
		out[i] = v.Dup()
	}
	return out
}

// Scan copies the current row into dest. Supported destinations are
// *DS.Value, *interface{}, *int64, *float64, *string, *[]byte and *bool.
func (r *Rows) Scan(dest ...interface{}) error {
	if r.row == nil {
		return perrors.Misusef("Scan called without a current row")
	}
	if len(dest) != len(r.row) {
		return fmt.Errorf("expected %d destination arguments in Scan, not %d", len(r.row), len(dest))
	}
	for i, d := range dest {
		v := r.row[i]
		switch d := d.(type) {
		case *DS.Value:
			*d = v.Dup()
		case *interface{}:
			*d = v.Dup().Interface()
		case *int64:
			switch v.Type {
			case DS.TypeInt, DS.TypeBool:
				*d = v.Int
			case DS.TypeFloat:
				*d = int64(v.Float)
			case DS.TypeNull:
				*d = 0
			default:
				return fmt.Errorf("column %d: cannot scan %s into *int64", i, v.Type)
			}
		case *float64:
			switch v.Type {
			case DS.TypeInt, DS.TypeBool:
				*d = float64(v.Int)
			case DS.TypeFloat:
				*d = v.Float
			case DS.TypeNull:
				*d = 0
			default:
				return fmt.Errorf("column %d: cannot scan %s into *float64", i, v.Type)
			}
		case *string:
			if v.IsNull() {
				*d = ""
			} else {
				*d = v.String()
			}
		case *[]byte:
			switch v.Type {
			case DS.TypeNull:
				*d = nil
			case DS.TypeBytes:
				*d = append([]byte(nil), v.Bytes...)
			default:
				*d = []byte(v.String())
			}
		case *bool:
			*d = v.Int != 0 || (v.Type == DS.TypeFloat && v.Float != 0)
		default:
			return fmt.Errorf("column %d: unsupported Scan destination %T", i, d)
		}
	}
	return nil
}

// RowID returns the row ordinal the table reported for the current row.
func (r *Rows) RowID() int64 { return r.rowID }

// Err returns the error that ended the scan, if any.
func (r *Rows) Err() error { return r.err }

// Close releases the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.cur.Close()
}

// rowCache reads each column of the current cursor row at most once.
type rowCache struct {
	ctx  context.Context
	cur  DS.VTabCursor
	vals map[int]DS.Value
}

func (c *rowCache) get(col int) (DS.Value, error) {
	if v, ok := c.vals[col]; ok {
		return v, nil
	}
	v, err := c.cur.Column(c.ctx, col)
	if err != nil {
		return DS.NullValue(), err
	}
	if c.vals == nil {
		c.vals = make(map[int]DS.Value)
	}
	c.vals[col] = v
	return v, nil
}
