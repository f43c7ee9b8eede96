package pivotdb

import (
	"context"
	"fmt"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	IS "github.com/cyw0ng95/pivotvtab/internal/IS"
	QP "github.com/cyw0ng95/pivotvtab/internal/QP"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
)

// execCreateVirtualTable handles CREATE VIRTUAL TABLE ... USING module(args).
func (db *Database) execCreateVirtualTable(ctx context.Context, stmt *QP.CreateVirtualTableStmt) error {
	mod, ok := db.registry.GetVTabModule(stmt.ModuleName)
	if !ok {
		return perrors.NotFoundf("no such module: %s", stmt.ModuleName)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	key := strings.ToLower(stmt.TableName)
	if _, exists := db.tables[key]; exists || db.engineHasTable(ctx, stmt.TableName) {
		if stmt.IfNotExists {
			return nil
		}
		return fmt.Errorf("table %s already exists", stmt.TableName)
	}

	vt, err := mod.Create(ctx, db.eng, stmt.ModuleArgs)
	if err != nil {
		return err
	}
	def := &IS.Definition{
		Name:   stmt.TableName,
		Module: strings.ToLower(stmt.ModuleName),
		Args:   stmt.ModuleArgs,
	}
	if err := db.catalog.Put(def); err != nil {
		_ = vt.Destroy()
		return fmt.Errorf("persist %s: %w", stmt.TableName, err)
	}
	db.tables[key] = &vtabEntry{def: def, vt: vt}
	db.log.Info("created virtual table %s using %s (%s)", def.Name, def.Module, def.ID)
	return nil
}

// execDropVirtualTable destroys the table and forgets its definition.
// Detached tables are only removed from the catalog.
func (db *Database) execDropVirtualTable(stmt *QP.DropTableStmt) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := strings.ToLower(stmt.TableName)
	e, ok := db.tables[key]
	if !ok {
		if stmt.IfExists {
			return nil
		}
		return perrors.NotFoundf("no such table: %s", stmt.TableName)
	}
	if e.vt != nil {
		if err := e.vt.Destroy(); err != nil {
			return err
		}
	}
	delete(db.tables, key)
	if err := db.catalog.Delete(e.def.Name); err != nil {
		return fmt.Errorf("forget %s: %w", e.def.Name, err)
	}
	db.log.Info("dropped virtual table %s", e.def.Name)
	return nil
}

// execRenameVirtualTable renames a virtual table, keeping its identity.
func (db *Database) execRenameVirtualTable(stmt *QP.RenameTableStmt) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	oldKey, newKey := strings.ToLower(stmt.TableName), strings.ToLower(stmt.NewName)
	e, ok := db.tables[oldKey]
	if !ok {
		return perrors.NotFoundf("no such table: %s", stmt.TableName)
	}
	if _, taken := db.tables[newKey]; taken && newKey != oldKey {
		return fmt.Errorf("there is already another table or index with this name: %s", stmt.NewName)
	}
	if e.vt != nil {
		if err := e.vt.Rename(stmt.NewName); err != nil {
			return err
		}
	}
	if err := db.catalog.Rename(e.def.Name, stmt.NewName); err != nil {
		return err
	}
	e.def.Name = stmt.NewName
	delete(db.tables, oldKey)
	db.tables[newKey] = e
	return nil
}

// engineHasTable reports whether the engine already has a table or view
// called name. Engines without a sqlite_master catalog report false.
func (db *Database) engineHasTable(ctx context.Context, name string) bool {
	row, err := db.eng.QueryRow(ctx,
		"SELECT 1 FROM sqlite_master WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE",
		DS.StringValue(name))
	return err == nil && row != nil
}
