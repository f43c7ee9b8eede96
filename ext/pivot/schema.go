package pivot

import (
	"context"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	QP "github.com/cyw0ng95/pivotvtab/internal/QP"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
	"github.com/cyw0ng95/pivotvtab/internal/log"
)

// wrapQuery turns a user supplied query into a derived table so the planner
// can append WHERE and ORDER BY clauses to it.
func wrapQuery(q string) string {
	return "SELECT * FROM (" + q + ")"
}

// compileTable validates the three definition queries and builds the table.
// On any failure every statement prepared so far is closed and nothing
// partial is returned.
func compileTable(ctx context.Context, eng DS.Engine, rowKeySQL, colDefSQL, valueSQL string, lg *log.Logger) (*Table, error) {
	if eng == nil {
		return nil, perrors.Misusef("pivot table requires an engine")
	}
	t := &Table{eng: eng, log: lg}
	if err := t.compile(ctx, rowKeySQL, colDefSQL, valueSQL); err != nil {
		_ = t.release()
		return nil, err
	}
	return t, nil
}

func (t *Table) compile(ctx context.Context, rowKeySQL, colDefSQL, valueSQL string) error {
	if err := t.compileRowKeys(ctx, rowKeySQL); err != nil {
		return err
	}

	lookupSQL := wrapQuery(valueSQL)
	if err := t.checkLookupQuery(ctx, lookupSQL); err != nil {
		return err
	}

	if err := t.compileColumns(ctx, wrapQuery(colDefSQL), lookupSQL); err != nil {
		return err
	}

	t.schema = t.buildSchema()
	return nil
}

// compileRowKeys prepares the row key query once to learn its column names.
func (t *Table) compileRowKeys(ctx context.Context, rowKeySQL string) error {
	t.scanSQL = wrapQuery(rowKeySQL)
	stmt, err := t.eng.Prepare(ctx, t.scanSQL)
	if err != nil {
		return perrors.Wrap(perrors.KindRowKeyQueryInvalid, err, "pivot table key query prepare error")
	}
	names := stmt.ColumnNames()
	if err := stmt.Close(); err != nil {
		return perrors.Wrap(perrors.KindRowKeyQueryInvalid, err, "pivot table key query close error")
	}
	if len(names) == 0 {
		return perrors.Definitionf(perrors.KindRowKeyQueryInvalid, "pivot table key query returns no columns")
	}

	t.rowKeyArity = len(names)
	t.rowKeyNames = names
	t.rowKeyIdents = make([]string, len(names))
	for i, n := range names {
		t.rowKeyIdents[i] = QP.QuoteIdent(n)
	}
	return nil
}

// checkLookupQuery prepares the pivot query once to validate its parameter
// count: every parameter but the last is a row key slot.
func (t *Table) checkLookupQuery(ctx context.Context, lookupSQL string) error {
	stmt, err := t.eng.Prepare(ctx, lookupSQL)
	if err != nil {
		return perrors.Wrap(perrors.KindValueQueryInvalid, err, "pivot table value query prepare error")
	}
	params := stmt.ParamCount()
	if err := stmt.Close(); err != nil {
		return perrors.Wrap(perrors.KindValueQueryInvalid, err, "pivot table value query close error")
	}

	if params < 2 {
		return perrors.Definitionf(perrors.KindParameterArityMismatch,
			"pivot table value query must have at least 2 parameters, got %d", params)
	}
	t.lookupParamArity = params - 1
	if t.lookupParamArity > t.rowKeyArity {
		return perrors.Definitionf(perrors.KindParameterArityMismatch,
			"pivot table value query uses %d key parameters, the key query has only %d columns",
			t.lookupParamArity, t.rowKeyArity)
	}
	return nil
}

// compileColumns runs the column definition query twice: the first pass
// validates it, the second compiles a lookup statement per column.
func (t *Table) compileColumns(ctx context.Context, colSQL, lookupSQL string) error {
	stmt, err := t.eng.Prepare(ctx, colSQL)
	if err != nil {
		return perrors.Wrap(perrors.KindColumnDefQueryInvalid, err, "pivot table column definition query prepare error")
	}
	defer stmt.Close()

	if n := stmt.ColumnCount(); n != 2 {
		return perrors.Definitionf(perrors.KindColumnDefArityMismatch,
			"pivot table column definition query expects 2 result columns, the query contains %d columns", n)
	}

	if err := t.forEachColumnDef(ctx, stmt, nil); err != nil {
		return err
	}
	if err := stmt.Reset(); err != nil {
		return perrors.Wrap(perrors.KindColumnDefQueryInvalid, err, "pivot table column definition query reset error")
	}

	return t.forEachColumnDef(ctx, stmt, func(key DS.Value, name string) error {
		return t.addColumn(ctx, lookupSQL, key, name)
	})
}

// forEachColumnDef steps stmt to completion, rejecting duplicate keys,
// duplicate names and names that collide with a row key column.
func (t *Table) forEachColumnDef(ctx context.Context, stmt DS.Stmt, fn func(key DS.Value, name string) error) error {
	keys := make(map[string]struct{})
	names := make(map[string]struct{}, len(t.rowKeyNames))
	for _, n := range t.rowKeyNames {
		names[strings.ToLower(n)] = struct{}{}
	}

	for {
		ok, err := stmt.Step(ctx)
		if err != nil {
			return perrors.Wrap(perrors.KindColumnDefQueryInvalid, err, "pivot table column definition query step error")
		}
		if !ok {
			return nil
		}

		key := stmt.Column(0).Dup()
		if key.IsNull() {
			return perrors.Definitionf(perrors.KindColumnDefQueryInvalid,
				"pivot table column key is NULL")
		}
		nameVal := stmt.Column(1)
		if nameVal.IsNull() {
			return perrors.Definitionf(perrors.KindColumnDefQueryInvalid,
				"pivot table column name for key %q is NULL", key.String())
		}
		name := nameVal.Text()

		if _, dup := keys[key.Key()]; dup {
			return perrors.Definitionf(perrors.KindDuplicateColumnKey,
				"pivot table column key %q is not unique", key.String())
		}
		keys[key.Key()] = struct{}{}

		lower := strings.ToLower(name)
		if _, dup := names[lower]; dup {
			if t.isRowKeyName(lower) {
				return perrors.Definitionf(perrors.KindDuplicateColumnName,
					"pivot table column name %q collides with a key column", name)
			}
			return perrors.Definitionf(perrors.KindDuplicateColumnName,
				"pivot table column name %q is not unique", name)
		}
		names[lower] = struct{}{}

		if fn != nil {
			if err := fn(key, name); err != nil {
				return err
			}
		}
	}
}

func (t *Table) isRowKeyName(lower string) bool {
	for _, n := range t.rowKeyNames {
		if strings.ToLower(n) == lower {
			return true
		}
	}
	return false
}

// addColumn compiles the lookup statement for one pivot column and binds
// its key into the last parameter slot. The binding is never changed.
func (t *Table) addColumn(ctx context.Context, lookupSQL string, key DS.Value, name string) error {
	stmt, err := t.eng.Prepare(ctx, lookupSQL)
	if err != nil {
		return perrors.Wrap(perrors.KindValueQueryInvalid, err, "pivot table value query prepare error")
	}
	if err := stmt.Bind(t.lookupParamArity+1, key); err != nil {
		_ = stmt.Close()
		return perrors.Wrap(perrors.KindValueQueryInvalid, err, "pivot table value query bind error")
	}
	t.columns = append(t.columns, &pivotColumn{key: key, name: name, stmt: stmt})
	return nil
}

func (t *Table) buildSchema() string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE x(")
	for i, ident := range t.rowKeyIdents {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(ident)
	}
	for _, c := range t.columns {
		sb.WriteString(",")
		sb.WriteString(QP.QuoteIdent(c.name))
	}
	sb.WriteString(")")
	return sb.String()
}
