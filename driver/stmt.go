package driver

import (
	"context"
	"database/sql"
	"fmt"
	"unicode"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

// Stmt implements DS.Stmt over a *sql.Stmt. Bindings are kept on the Go
// side and passed as arguments when the statement is first stepped after a
// reset.
type Stmt struct {
	stmt    *sql.Stmt
	query   string
	slots   []string
	binds   []DS.Value
	columns []string

	rows   *sql.Rows
	row    []interface{}
	closed bool
}

// loadColumns learns the result column names by opening the statement with
// every parameter NULL and closing it before any row is read.
func (s *Stmt) loadColumns(ctx context.Context) error {
	rows, err := s.stmt.QueryContext(ctx, s.args()...)
	if err != nil {
		return err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	s.columns = cols
	return nil
}

// args renders the bindings as database/sql arguments. Slots taken by a
// named parameter are passed by name; database/sql only accepts names that
// begin with a letter, so "$1" style slots stay positional.
func (s *Stmt) args() []interface{} {
	args := make([]interface{}, len(s.binds))
	for i, v := range s.binds {
		var arg interface{} = toDriverValue(v)
		if name := s.slots[i]; len(name) > 1 && unicode.IsLetter(rune(name[1])) {
			arg = sql.Named(name[1:], arg)
		}
		args[i] = arg
	}
	return args
}

// ColumnNames returns the result column names.
func (s *Stmt) ColumnNames() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// ColumnCount returns the number of result columns.
func (s *Stmt) ColumnCount() int { return len(s.columns) }

// ParamCount returns the highest parameter index in the statement.
func (s *Stmt) ParamCount() int { return len(s.slots) }

// Bind sets parameter pos (1-based). The binding survives Reset.
func (s *Stmt) Bind(pos int, v DS.Value) error {
	if s.closed {
		return sql.ErrConnDone
	}
	if pos < 1 || pos > len(s.binds) {
		return fmt.Errorf("bind or column index out of range: %d of %d", pos, len(s.binds))
	}
	s.binds[pos-1] = v.Dup()
	return nil
}

// Step runs the statement on first use and advances to the next row.
func (s *Stmt) Step(ctx context.Context) (bool, error) {
	if s.closed {
		return false, sql.ErrConnDone
	}
	if s.rows == nil {
		rows, err := s.stmt.QueryContext(ctx, s.args()...)
		if err != nil {
			return false, err
		}
		s.rows = rows
		s.row = make([]interface{}, len(s.columns))
	}
	if !s.rows.Next() {
		err := s.rows.Err()
		s.closeRows()
		return false, err
	}
	ptrs := make([]interface{}, len(s.row))
	for i := range s.row {
		ptrs[i] = &s.row[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return false, err
	}
	return true, nil
}

// Column returns value i of the current row, or NULL when there is none.
func (s *Stmt) Column(i int) DS.Value {
	if i < 0 || i >= len(s.row) {
		return DS.NullValue()
	}
	return fromDriverValue(s.row[i])
}

// Reset abandons the current execution. Bindings are kept.
func (s *Stmt) Reset() error {
	return s.closeRows()
}

func (s *Stmt) closeRows() error {
	s.row = nil
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.rows = nil
	return err
}

// Close releases the statement. Calling Close again is a no-op.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	rerr := s.closeRows()
	if err := s.stmt.Close(); err != nil {
		return err
	}
	return rerr
}

var _ DS.Stmt = (*Stmt)(nil)
