package driver

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	QP "github.com/cyw0ng95/pivotvtab/internal/QP"
)

// Engine implements DS.Engine and DS.Execer on a pinned *sql.Conn.
type Engine struct {
	db     *sql.DB
	conn   *sql.Conn
	ownsDB bool

	mu     sync.Mutex
	closed bool
}

// Prepare compiles query on the pinned connection. The statement is opened
// once with NULL parameters to read its column names; no row is read.
func (e *Engine) Prepare(ctx context.Context, query string) (DS.Stmt, error) {
	if e.isClosed() {
		return nil, sql.ErrConnDone
	}
	slots, err := QP.ParamSlots(query)
	if err != nil {
		return nil, err
	}
	stmt, err := e.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s := &Stmt{stmt: stmt, query: query, slots: slots, binds: make([]DS.Value, len(slots))}
	if err := s.loadColumns(ctx); err != nil {
		_ = stmt.Close()
		return nil, err
	}
	return s, nil
}

// Exec runs a statement that returns no rows.
func (e *Engine) Exec(ctx context.Context, query string) error {
	if e.isClosed() {
		return sql.ErrConnDone
	}
	if _, err := e.conn.ExecContext(ctx, query); err != nil {
		return err
	}
	return nil
}

// ExecArgs runs a statement that returns no rows with positional arguments
// and reports the number of rows it changed. Unlike Prepare it never runs
// the statement more than once.
func (e *Engine) ExecArgs(ctx context.Context, query string, args ...DS.Value) (int64, error) {
	if e.isClosed() {
		return 0, sql.ErrConnDone
	}
	vals := make([]interface{}, len(args))
	for i, a := range args {
		vals[i] = toDriverValue(a)
	}
	res, err := e.conn.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// QueryRow runs query and returns its first row, or nil when it returns no
// rows. It is a convenience for hosts that read engine metadata.
func (e *Engine) QueryRow(ctx context.Context, query string, args ...DS.Value) (DS.Tuple, error) {
	stmt, err := e.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for i, a := range args {
		if err := stmt.Bind(i+1, a); err != nil {
			return nil, err
		}
	}
	ok, err := stmt.Step(ctx)
	if err != nil || !ok {
		return nil, err
	}
	row := make(DS.Tuple, stmt.ColumnCount())
	for i := range row {
		row[i] = stmt.Column(i).Dup()
	}
	return row, nil
}

// Close releases the pinned connection, and the pool when the engine
// opened it.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.conn.Close()
	if e.ownsDB {
		if cerr := e.db.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

var (
	_ DS.Engine = (*Engine)(nil)
	_ DS.Execer = (*Engine)(nil)
)
