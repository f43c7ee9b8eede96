// Package pivot implements the pivot_vtab virtual table module.
//
// A pivot table is declared from three queries:
//
//	CREATE VIRTUAL TABLE pivot USING pivot_vtab(
//	  (SELECT id r_id FROM r),        -- row keys
//	  (SELECT id c_id, name FROM c),  -- column key, column name
//	  (SELECT val FROM x WHERE r_id = ?1 AND c_id = ?2)  -- cell value
//	);
//
// The row key query defines the leading columns and the rows of the table.
// The column definition query must return two columns: a key, bound into
// the last parameter of the cell query, and a unique column name. The cell
// query is evaluated on demand for every (row, column) pair that is read; its
// leading parameters receive the row key values in order.
//
// Changes to the column definition query only take effect when the table is
// dropped and created again.
package pivot

import (
	"context"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	QP "github.com/cyw0ng95/pivotvtab/internal/QP"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
	"github.com/cyw0ng95/pivotvtab/internal/log"
)

// ModuleName is the name the module is registered under.
const ModuleName = "pivot_vtab"

// Options configures a Module.
type Options struct {
	// Logger receives compile, scan and teardown events. Defaults to a
	// logger tagged "pivot".
	Logger *log.Logger
}

// Module implements DS.VTabModule for pivot tables.
type Module struct {
	log *log.Logger
}

// NewModule returns a pivot module.
func NewModule(opts Options) *Module {
	lg := opts.Logger
	if lg == nil {
		lg = log.With("pivot")
	}
	return &Module{log: lg}
}

// Create declares a new pivot table.
func (m *Module) Create(ctx context.Context, eng DS.Engine, args []string) (DS.VTab, error) {
	return m.connect(ctx, eng, args, false)
}

// Connect reattaches a pivot table whose definition was persisted earlier.
// The table is compiled exactly as Create does.
func (m *Module) Connect(ctx context.Context, eng DS.Engine, args []string) (DS.VTab, error) {
	return m.connect(ctx, eng, args, true)
}

func (m *Module) connect(ctx context.Context, eng DS.Engine, args []string, reattach bool) (DS.VTab, error) {
	if len(args) != 3 {
		return nil, perrors.Definitionf(perrors.KindArgumentCount,
			"%s expects 3 arguments (row key query, column definition query, pivot query), got %d", ModuleName, len(args))
	}

	kinds := [3]perrors.Kind{perrors.KindRowKeyQueryInvalid, perrors.KindColumnDefQueryInvalid, perrors.KindValueQueryInvalid}
	var queries [3]string
	for i, arg := range args {
		q, err := QP.TrimEnclosingParens(arg)
		if err != nil {
			return nil, perrors.Wrap(kinds[i], err, "cannot parse argument %d", i+1)
		}
		queries[i] = q
	}

	tab, err := compileTable(ctx, eng, queries[0], queries[1], queries[2], m.log)
	if err != nil {
		m.log.Warn("pivot table definition rejected: %v", err)
		return nil, err
	}
	if reattach {
		m.log.Debug("reattached pivot table with %d key and %d pivot columns", tab.rowKeyArity, len(tab.columns))
	} else {
		m.log.Debug("created pivot table with %d key and %d pivot columns", tab.rowKeyArity, len(tab.columns))
	}
	return tab, nil
}

var _ DS.VTabModule = (*Module)(nil)
