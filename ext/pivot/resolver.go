package pivot

import (
	"context"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
)

// resolve returns column col for the row identified by key. Key columns are
// answered from the tuple. Pivot columns run their lookup statement with the
// leading key values bound; no result row means NULL.
func (t *Table) resolve(ctx context.Context, key DS.Tuple, col int) (DS.Value, error) {
	if col < 0 || col >= t.rowKeyArity+len(t.columns) {
		return DS.NullValue(), perrors.Misusef("pivot column index %d out of range", col)
	}
	if col < t.rowKeyArity {
		return key[col].Dup(), nil
	}

	pc := t.columns[col-t.rowKeyArity]
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.stmt == nil {
		return DS.NullValue(), perrors.Misusef("pivot table is disconnected")
	}
	for i := 0; i < t.lookupParamArity; i++ {
		if err := pc.stmt.Bind(i+1, key[i]); err != nil {
			_ = pc.stmt.Reset()
			return DS.NullValue(), perrors.Cellf(err, "pivot column %q bind error", pc.name)
		}
	}

	ok, err := pc.stmt.Step(ctx)
	v := DS.NullValue()
	if err == nil && ok {
		v = pc.stmt.Column(0).Dup()
	}
	if rerr := pc.stmt.Reset(); err == nil && rerr != nil {
		err = rerr
	}
	if err != nil {
		return DS.NullValue(), perrors.Cellf(err, "pivot column %q lookup error", pc.name)
	}

	t.stats.cellsResolved.Add(1)
	if !ok {
		t.stats.cellMisses.Add(1)
	}
	return v, nil
}
