package pivot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

// fakeRelation is a scripted query result. rows receives the current
// bindings.
type fakeRelation struct {
	columns []string
	params  int
	rows    func(args []DS.Value) ([][]DS.Value, error)

	// stepErr is returned once failAfter rows have been produced.
	stepErr   error
	failAfter int
}

// fakeEngine maps exact query text to relations and tracks every
// statement it hands out.
type fakeEngine struct {
	mu         sync.Mutex
	relations  map[string]*fakeRelation
	prepareErr map[string]error
	// prepareLimit fails a query once it has been prepared that many times.
	prepareLimit map[string]int
	prepareCount map[string]int

	prepared int
	closed   int
	open     map[*fakeStmt]struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		relations:    make(map[string]*fakeRelation),
		prepareErr:   make(map[string]error),
		prepareLimit: make(map[string]int),
		prepareCount: make(map[string]int),
		open:         make(map[*fakeStmt]struct{}),
	}
}

func (e *fakeEngine) add(query string, rel *fakeRelation) {
	e.relations[query] = rel
}

func (e *fakeEngine) Prepare(ctx context.Context, query string) (DS.Stmt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.prepareErr[query]; err != nil {
		return nil, err
	}
	if limit, ok := e.prepareLimit[query]; ok && e.prepareCount[query] >= limit {
		return nil, errors.New("out of memory")
	}
	rel, ok := e.relations[query]
	if !ok {
		return nil, fmt.Errorf("no such table: %s", query)
	}
	e.prepareCount[query]++
	e.prepared++
	s := &fakeStmt{eng: e, rel: rel, binds: make([]DS.Value, rel.params)}
	e.open[s] = struct{}{}
	return s, nil
}

func (e *fakeEngine) openStmts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

func (e *fakeEngine) closedStmts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeStmt struct {
	eng   *fakeEngine
	rel   *fakeRelation
	binds []DS.Value

	rows    [][]DS.Value
	pos     int
	started bool
	closed  bool
	// scratch backs BLOB columns and is overwritten on every step, like an
	// engine reusing its row buffer.
	scratch []byte
}

func (s *fakeStmt) ColumnNames() []string { return append([]string(nil), s.rel.columns...) }
func (s *fakeStmt) ColumnCount() int      { return len(s.rel.columns) }
func (s *fakeStmt) ParamCount() int       { return s.rel.params }

func (s *fakeStmt) Bind(pos int, v DS.Value) error {
	if s.closed {
		return errors.New("statement is closed")
	}
	if pos < 1 || pos > len(s.binds) {
		return fmt.Errorf("bind index %d out of range", pos)
	}
	s.binds[pos-1] = v
	return nil
}

func (s *fakeStmt) Step(ctx context.Context) (bool, error) {
	if s.closed {
		return false, errors.New("statement is closed")
	}
	if !s.started {
		s.started = true
		s.pos = -1
		if s.rel.rows != nil {
			args := make([]DS.Value, len(s.binds))
			copy(args, s.binds)
			rows, err := s.rel.rows(args)
			if err != nil {
				return false, err
			}
			s.rows = rows
		}
	}
	for i := range s.scratch {
		s.scratch[i] = 0xff
	}
	s.pos++
	if s.rel.stepErr != nil && s.pos >= s.rel.failAfter {
		return false, s.rel.stepErr
	}
	return s.pos < len(s.rows), nil
}

func (s *fakeStmt) Column(i int) DS.Value {
	if s.pos < 0 || s.pos >= len(s.rows) || i < 0 || i >= len(s.rows[s.pos]) {
		return DS.NullValue()
	}
	v := s.rows[s.pos][i]
	if v.Type == DS.TypeBytes {
		s.scratch = append(s.scratch[:0], v.Bytes...)
		return DS.BytesValue(s.scratch)
	}
	return v
}

func (s *fakeStmt) Reset() error {
	s.started = false
	s.rows = nil
	s.pos = -1
	return nil
}

func (s *fakeStmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.eng.mu.Lock()
	s.eng.closed++
	delete(s.eng.open, s)
	s.eng.mu.Unlock()
	return nil
}

const (
	rowKeySQL = "SELECT id r_id FROM r"
	colDefSQL = "SELECT id c_id, name FROM c"
	valueSQL  = "SELECT val FROM x WHERE r_id = ?1 AND c_id = ?2"

	scanSQL   = "SELECT * FROM (" + rowKeySQL + ")"
	colSQL    = "SELECT * FROM (" + colDefSQL + ")"
	lookupSQL = "SELECT * FROM (" + valueSQL + ")"
)

func intRows(vals ...int64) [][]DS.Value {
	rows := make([][]DS.Value, len(vals))
	for i, v := range vals {
		rows[i] = []DS.Value{DS.IntValue(v)}
	}
	return rows
}

// cellValues holds x(r_id, c_id) = val; (3, 2) is absent.
var cellValues = map[[2]int64]int64{
	{1, 1}: 11, {1, 2}: 12,
	{2, 1}: 21, {2, 2}: 22,
	{3, 1}: 31,
}

// newScenarioEngine scripts rows r = {1,2,3}, columns c = {(1,a),(2,b)}
// and the cell values above.
func newScenarioEngine() *fakeEngine {
	eng := newFakeEngine()
	eng.add(scanSQL, &fakeRelation{
		columns: []string{"r_id"},
		rows:    func([]DS.Value) ([][]DS.Value, error) { return intRows(1, 2, 3), nil },
	})
	eng.add(colSQL, &fakeRelation{
		columns: []string{"c_id", "name"},
		rows: func([]DS.Value) ([][]DS.Value, error) {
			return [][]DS.Value{
				{DS.IntValue(1), DS.StringValue("a")},
				{DS.IntValue(2), DS.StringValue("b")},
			}, nil
		},
	})
	eng.add(lookupSQL, &fakeRelation{
		columns: []string{"val"},
		params:  2,
		rows: func(args []DS.Value) ([][]DS.Value, error) {
			v, ok := cellValues[[2]int64{args[0].Int, args[1].Int}]
			if !ok {
				return nil, nil
			}
			return intRows(v), nil
		},
	})
	return eng
}

// filterRows scripts a pushdown query over the scenario row keys.
func filterRows(keep func(id int64, args []DS.Value) bool, params int) *fakeRelation {
	return &fakeRelation{
		columns: []string{"r_id"},
		params:  params,
		rows: func(args []DS.Value) ([][]DS.Value, error) {
			var out []int64
			for _, id := range []int64{1, 2, 3} {
				if keep(id, args) {
					out = append(out, id)
				}
			}
			return intRows(out...), nil
		},
	}
}
