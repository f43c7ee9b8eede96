package pivot

import (
	"sync"
	"sync/atomic"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
	"github.com/cyw0ng95/pivotvtab/internal/log"
)

// Table is a compiled pivot table. Its shape is fixed when it is compiled;
// only the per-column lookup statements carry mutable state.
type Table struct {
	DS.TableModule

	eng DS.Engine
	log *log.Logger

	rowKeyArity      int
	lookupParamArity int
	rowKeyNames      []string
	rowKeyIdents     []string
	scanSQL          string
	schema           string

	columns []*pivotColumn

	closeOnce sync.Once
	closed    atomic.Bool
	stats     tableStats
}

// pivotColumn is one synthesized column. Its statement has the column key
// bound permanently in the last parameter slot; mu serializes the
// bind/step/reset cycle between cursors.
type pivotColumn struct {
	key  DS.Value
	name string

	mu   sync.Mutex
	stmt DS.Stmt
}

type tableStats struct {
	scans         atomic.Int64
	rowsFetched   atomic.Int64
	cellsResolved atomic.Int64
	cellMisses    atomic.Int64
}

// Stats is a snapshot of a table's activity counters.
type Stats struct {
	Scans         int64
	RowsFetched   int64
	CellsResolved int64
	CellMisses    int64
}

// Stats returns the table's activity counters.
func (t *Table) Stats() Stats {
	return Stats{
		Scans:         t.stats.scans.Load(),
		RowsFetched:   t.stats.rowsFetched.Load(),
		CellsResolved: t.stats.cellsResolved.Load(),
		CellMisses:    t.stats.cellMisses.Load(),
	}
}

// Columns returns the row key column names followed by the pivot column names.
func (t *Table) Columns() []string {
	cols := make([]string, 0, t.rowKeyArity+len(t.columns))
	cols = append(cols, t.rowKeyNames...)
	for _, c := range t.columns {
		cols = append(cols, c.name)
	}
	return cols
}

// Schema returns the declaration registered for the table.
func (t *Table) Schema() string { return t.schema }

// RowKeyArity returns the number of row key columns.
func (t *Table) RowKeyArity() int { return t.rowKeyArity }

// LookupParamArity returns how many leading row key values are bound into
// the pivot query.
func (t *Table) LookupParamArity() int { return t.lookupParamArity }

// ColumnKeys returns the column key of every pivot column, in column order.
func (t *Table) ColumnKeys() []DS.Value {
	keys := make([]DS.Value, len(t.columns))
	for i, c := range t.columns {
		keys[i] = c.key.Dup()
	}
	return keys
}

// Open creates a new cursor.
func (t *Table) Open() (DS.VTabCursor, error) {
	if t.closed.Load() {
		return nil, perrors.Misusef("pivot table is disconnected")
	}
	return &cursor{tab: t}, nil
}

// Disconnect releases every pivot column statement. It is safe to call
// more than once; statements are released exactly once.
func (t *Table) Disconnect() error {
	var firstErr error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		firstErr = t.release()
		t.log.Debug("released %d pivot column statements", len(t.columns))
	})
	return firstErr
}

// Destroy is the same as Disconnect: pivot tables keep no storage of their own.
func (t *Table) Destroy() error {
	return t.Disconnect()
}

func (t *Table) release() error {
	var firstErr error
	for _, c := range t.columns {
		c.mu.Lock()
		if c.stmt != nil {
			if err := c.stmt.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			c.stmt = nil
		}
		c.mu.Unlock()
	}
	return firstErr
}

var _ DS.VTab = (*Table)(nil)
