// Package pivotdb hosts virtual tables on top of a SQL engine.
//
// A Database owns one engine connection, a registry of virtual table
// modules and a catalog of the virtual tables declared through it. Virtual
// table DDL is executed by the host; every other statement is passed to the
// engine unchanged.
//
//	db, err := pivotdb.Open(ctx, pivotdb.Options{DSN: ":memory:"})
//	...
//	err = db.Exec(ctx, `CREATE VIRTUAL TABLE p USING pivot_vtab(
//	    (SELECT id r_id FROM r),
//	    (SELECT id c_id, name FROM c),
//	    (SELECT val FROM x WHERE r_id = ?1 AND c_id = ?2))`)
//	rows, err := db.Query(ctx, "p", pivotdb.Query{})
package pivotdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyw0ng95/pivotvtab/driver"
	"github.com/cyw0ng95/pivotvtab/ext/pivot"
	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	IS "github.com/cyw0ng95/pivotvtab/internal/IS"
	QP "github.com/cyw0ng95/pivotvtab/internal/QP"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
	"github.com/cyw0ng95/pivotvtab/internal/log"
)

// Options configures Open.
type Options struct {
	// Driver is the database/sql driver name. Defaults to "sqlite".
	Driver string
	// DSN is passed to the driver. Defaults to ":memory:".
	DSN string
	// CatalogDir stores virtual table definitions. Empty keeps them in
	// memory for the lifetime of the Database.
	CatalogDir string
	// Registry lists the available modules. Defaults to DefaultRegistry.
	Registry *IS.Registry
	// Logger defaults to a logger tagged "pivotdb".
	Logger *log.Logger
}

// DefaultRegistry returns a registry holding the pivot_vtab module.
func DefaultRegistry(lg *log.Logger) *IS.Registry {
	return IS.NewRegistry(map[string]DS.VTabModule{
		pivot.ModuleName: pivot.NewModule(pivot.Options{Logger: lg}),
	})
}

// Database is a virtual table host.
type Database struct {
	eng      *driver.Engine
	catalog  *IS.Catalog
	registry *IS.Registry
	log      *log.Logger

	mu     sync.RWMutex
	tables map[string]*vtabEntry
	closed bool
}

type vtabEntry struct {
	def *IS.Definition
	// vt is nil when the definition could not be reattached.
	vt        DS.VTab
	attachErr error
}

// TableInfo describes a virtual table known to the host.
type TableInfo struct {
	ID        uuid.UUID
	Name      string
	Module    string
	Args      []string
	Columns   []string
	CreatedAt time.Time
	Attached  bool
	// AttachError is set when a persisted table failed to reattach.
	AttachError error
}

// Open opens the engine and the catalog, then reattaches every persisted
// virtual table. Tables that fail to reattach stay listed, detached, so they
// can be dropped.
func Open(ctx context.Context, opts Options) (*Database, error) {
	if opts.Driver == "" {
		opts.Driver = driver.DefaultDriverName
	}
	if opts.DSN == "" {
		opts.DSN = ":memory:"
	}
	lg := opts.Logger
	if lg == nil {
		lg = log.With("pivotdb")
	}
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry(nil)
	}

	eng, err := driver.Open(ctx, opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}
	cat, err := IS.OpenCatalog(opts.CatalogDir)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	db := &Database{
		eng:      eng,
		catalog:  cat,
		registry: reg,
		log:      lg,
		tables:   make(map[string]*vtabEntry),
	}
	if err := db.reattach(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) reattach(ctx context.Context) error {
	defs, err := db.catalog.List()
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	for _, def := range defs {
		entry := &vtabEntry{def: def}
		mod, ok := db.registry.GetVTabModule(def.Module)
		if !ok {
			entry.attachErr = perrors.NotFoundf("no such module: %s", def.Module)
		} else if vt, err := mod.Connect(ctx, db.eng, def.Args); err != nil {
			entry.attachErr = err
		} else {
			entry.vt = vt
		}
		if entry.attachErr != nil {
			db.log.Warn("virtual table %s left detached: %v", def.Name, entry.attachErr)
		} else {
			db.log.Debug("reattached virtual table %s (%s)", def.Name, def.ID)
		}
		db.tables[strings.ToLower(def.Name)] = entry
	}
	return nil
}

// Exec executes one statement. Virtual table DDL is handled by the host,
// everything else by the engine.
func (db *Database) Exec(ctx context.Context, sql string) error {
	if db.isClosed() {
		return perrors.Misusef("database is closed")
	}
	stmt, err := QP.ParseHostStatement(sql)
	if err != nil {
		return err
	}
	switch s := stmt.(type) {
	case *QP.CreateVirtualTableStmt:
		return db.execCreateVirtualTable(ctx, s)
	case *QP.DropTableStmt:
		if db.isVirtual(s.TableName) {
			return db.execDropVirtualTable(s)
		}
	case *QP.RenameTableStmt:
		if db.isVirtual(s.TableName) {
			return db.execRenameVirtualTable(s)
		}
	}
	return db.eng.Exec(ctx, sql)
}

// ExecScript executes every statement of a script in order.
func (db *Database) ExecScript(ctx context.Context, script string) error {
	stmts, err := QP.SplitStatements(script)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if err := db.Exec(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", firstLine(s), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// Tables lists the virtual tables ordered by name.
func (db *Database) Tables() []TableInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]TableInfo, 0, len(db.tables))
	for _, e := range db.tables {
		info := TableInfo{
			ID:          e.def.ID,
			Name:        e.def.Name,
			Module:      e.def.Module,
			Args:        append([]string(nil), e.def.Args...),
			CreatedAt:   e.def.CreatedAt,
			Attached:    e.vt != nil,
			AttachError: e.attachErr,
		}
		if e.vt != nil {
			info.Columns = e.vt.Columns()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Table returns the attached virtual table called name.
func (db *Database) Table(name string) (DS.VTab, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.tables[strings.ToLower(name)]
	if !ok {
		return nil, perrors.NotFoundf("no such virtual table: %s", name)
	}
	if e.vt == nil {
		return nil, perrors.Wrap(perrors.KindMisuse, e.attachErr, "virtual table %s is detached", e.def.Name)
	}
	return e.vt, nil
}

// Schema returns the DDL that declared name followed by the table shape the
// module registered.
func (db *Database) Schema(name string) (string, error) {
	db.mu.RLock()
	e, ok := db.tables[strings.ToLower(name)]
	db.mu.RUnlock()
	if !ok {
		return "", perrors.NotFoundf("no such virtual table: %s", name)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE VIRTUAL TABLE %s USING %s(%s);", QP.QuoteIdent(e.def.Name), e.def.Module, strings.Join(e.def.Args, ", "))
	if e.vt == nil {
		return sb.String(), nil
	}
	sb.WriteString("\n-- ")
	if s, ok := e.vt.(interface{ Schema() string }); ok {
		sb.WriteString(s.Schema())
	} else {
		idents := make([]string, 0)
		for _, c := range e.vt.Columns() {
			idents = append(idents, QP.QuoteIdent(c))
		}
		sb.WriteString("CREATE TABLE x(" + strings.Join(idents, ",") + ")")
	}
	return sb.String(), nil
}

// Engine returns the underlying engine.
func (db *Database) Engine() *driver.Engine { return db.eng }

// Close disconnects every virtual table, then closes the catalog and the
// engine.
func (db *Database) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	var errs []error
	for _, e := range db.tables {
		if e.vt != nil {
			if err := e.vt.Disconnect(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	db.tables = nil
	db.mu.Unlock()

	if err := db.catalog.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := db.eng.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) isClosed() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.closed
}

func (db *Database) isVirtual(name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.tables[strings.ToLower(name)]
	return ok
}
