package pivot

import (
	"context"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
)

type cursorState int

const (
	stateUnopened cursorState = iota
	statePositioned
	stateExhausted
)

func (s cursorState) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case statePositioned:
		return "positioned"
	case stateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// cursor walks the row key query. It owns a copy of the current row key so
// the values stay valid while pivot columns are resolved.
type cursor struct {
	tab   *Table
	stmt  DS.Stmt
	key   DS.Tuple
	rowID int64
	state cursorState
}

// Filter starts a scan. idxStr is the query chosen by BestIndex; an empty
// idxStr scans the unrestricted key query. args bind to its placeholders
// in order.
func (c *cursor) Filter(ctx context.Context, idxNum int, idxStr string, args []DS.Value) error {
	c.finish()
	if c.tab.closed.Load() {
		return perrors.Misusef("pivot table is disconnected")
	}

	query := idxStr
	if query == "" {
		query = c.tab.scanSQL
	} else if idxNum != len(args) {
		c.state = stateExhausted
		return perrors.Misusef("pivot scan expects %d arguments, got %d", idxNum, len(args))
	}

	stmt, err := c.tab.eng.Prepare(ctx, query)
	if err != nil {
		c.state = stateExhausted
		return perrors.Scanf(err, "pivot table key query prepare error")
	}
	for i, a := range args {
		if err := stmt.Bind(i+1, a); err != nil {
			_ = stmt.Close()
			c.state = stateExhausted
			return perrors.Scanf(err, "pivot table key query bind error")
		}
	}

	c.stmt = stmt
	c.rowID = 0
	c.tab.stats.scans.Add(1)
	c.tab.log.Debug("scan: %s", query)
	return c.fetch(ctx)
}

// Next advances to the following row. It is a no-op once the scan is
// exhausted.
func (c *cursor) Next(ctx context.Context) error {
	if c.state != statePositioned {
		return nil
	}
	return c.fetch(ctx)
}

func (c *cursor) fetch(ctx context.Context) error {
	c.key.Release()
	ok, err := c.stmt.Step(ctx)
	if err != nil {
		c.finish()
		return perrors.Scanf(err, "pivot table key query step error")
	}
	if !ok {
		c.finish()
		return nil
	}

	key := make(DS.Tuple, c.tab.rowKeyArity)
	for i := range key {
		key[i] = c.stmt.Column(i).Dup()
	}
	c.key = key
	c.rowID++
	c.state = statePositioned
	c.tab.stats.rowsFetched.Add(1)
	return nil
}

// finish releases the scan statement and the owned key, once.
func (c *cursor) finish() {
	if c.stmt != nil {
		_ = c.stmt.Close()
		c.stmt = nil
	}
	c.key.Release()
	c.state = stateExhausted
}

// Eof reports whether the scan is exhausted.
func (c *cursor) Eof() bool {
	return c.state == stateExhausted
}

// RowID returns the 1-based ordinal of the current row within the scan.
func (c *cursor) RowID() (int64, error) {
	if c.state != statePositioned {
		return 0, perrors.Misusef("pivot cursor is %s", c.state)
	}
	return c.rowID, nil
}

// Column returns a row key value or resolves a pivot cell for the current
// row.
func (c *cursor) Column(ctx context.Context, col int) (DS.Value, error) {
	if c.state != statePositioned {
		return DS.NullValue(), perrors.Misusef("pivot cursor is %s", c.state)
	}
	return c.tab.resolve(ctx, c.key, col)
}

// Close releases the cursor.
func (c *cursor) Close() error {
	c.finish()
	c.state = stateExhausted
	return nil
}

var _ DS.VTabCursor = (*cursor)(nil)
