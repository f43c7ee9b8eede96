package DS

import "context"

// Engine compiles query text into steppable statements. Implementations
// block until each call completes; there is no asynchronous suspension.
type Engine interface {
	Prepare(ctx context.Context, query string) (Stmt, error)
}

// Execer is implemented by engines that can run statements which return no
// rows (DDL, INSERT). Hosts use it for pass-through statements.
type Execer interface {
	Exec(ctx context.Context, query string) error
}

// Stmt is a compiled, parameterized statement.
//
// Bindings survive Reset. Values returned by Column are only valid until
// the next Step, Reset or Close on the same statement.
type Stmt interface {
	// ColumnNames returns the result column names in order.
	ColumnNames() []string
	// ColumnCount returns len(ColumnNames()).
	ColumnCount() int
	// ParamCount returns the highest positional parameter index the
	// statement declares.
	ParamCount() int
	// Bind attaches v to the 1-based parameter pos.
	Bind(pos int, v Value) error
	// Step advances the statement. It reports true when a row is available.
	Step(ctx context.Context) (bool, error)
	// Column returns the i-th value of the current row.
	Column(i int) Value
	// Reset returns the statement to its unexecuted state.
	Reset() error
	// Close releases the statement. Close is idempotent.
	Close() error
}
