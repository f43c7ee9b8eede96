// Package driver adapts a Go database/sql connection to the statement engine
// used by virtual table modules.
//
// Any registered database/sql driver can back the engine. The CLI and the
// tests use the pure Go SQLite driver:
//
//	import _ "modernc.org/sqlite"
//
//	eng, err := driver.Open(ctx, "sqlite", ":memory:")
//
// All statements run on a single pinned connection, so connection-scoped
// state such as an in-memory database or temporary tables is shared by
// every statement the engine prepares.
package driver

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// DefaultDriverName is the database/sql driver used when none is given.
const DefaultDriverName = "sqlite"

// Open opens dsn with the named database/sql driver and pins one connection.
// The returned engine owns the pool and closes it on Close.
func Open(ctx context.Context, driverName, dsn string) (*Engine, error) {
	if driverName == "" {
		driverName = DefaultDriverName
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName, err)
	}
	eng, err := newEngine(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	eng.ownsDB = true
	return eng, nil
}

// New pins one connection of db. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB) (*Engine, error) {
	return newEngine(ctx, db)
}

func newEngine(ctx context.Context, db *sql.DB) (*Engine, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin connection: %w", err)
	}
	return &Engine{db: db, conn: conn}, nil
}
