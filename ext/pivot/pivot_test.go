package pivot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	perrors "github.com/cyw0ng95/pivotvtab/internal/SF/errors"
)

var scenarioArgs = []string{"(" + rowKeySQL + ")", "(" + colDefSQL + ")", "(" + valueSQL + ")"}

func createTable(t *testing.T, eng DS.Engine, args ...string) *Table {
	t.Helper()
	if len(args) == 0 {
		args = scenarioArgs
	}
	vt, err := NewModule(Options{}).Create(context.Background(), eng, args)
	require.NoError(t, err)
	tab, ok := vt.(*Table)
	require.True(t, ok)
	t.Cleanup(func() { _ = tab.Disconnect() })
	return tab
}

// scanAll runs a full scan and returns every row, all columns resolved.
func scanAll(t *testing.T, tab *Table, idxNum int, idxStr string, args ...DS.Value) ([][]DS.Value, []int64) {
	t.Helper()
	ctx := context.Background()
	cur, err := tab.Open()
	require.NoError(t, err)
	defer cur.Close()

	var rows [][]DS.Value
	var ids []int64
	require.NoError(t, cur.Filter(ctx, idxNum, idxStr, args))
	for !cur.Eof() {
		row := make([]DS.Value, len(tab.Columns()))
		for i := range row {
			row[i], err = cur.Column(ctx, i)
			require.NoError(t, err)
		}
		id, err := cur.RowID()
		require.NoError(t, err)
		rows = append(rows, row)
		ids = append(ids, id)
		require.NoError(t, cur.Next(ctx))
	}
	return rows, ids
}

func TestCreate_Schema(t *testing.T) {
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	assert.Equal(t, []string{"r_id", "a", "b"}, tab.Columns())
	assert.Equal(t, `CREATE TABLE x("r_id","a","b")`, tab.Schema())
	assert.Equal(t, 1, tab.RowKeyArity())
	assert.Equal(t, 1, tab.LookupParamArity())
	assert.Equal(t, []DS.Value{DS.IntValue(1), DS.IntValue(2)}, tab.ColumnKeys())
	// only the two lookup statements stay prepared
	assert.Equal(t, 2, eng.openStmts())
}

func TestCreate_ArgumentsWithoutParens(t *testing.T) {
	eng := newScenarioEngine()
	tab := createTable(t, eng, rowKeySQL, colDefSQL, valueSQL)
	assert.Equal(t, []string{"r_id", "a", "b"}, tab.Columns())
}

func TestConnect_SameAsCreate(t *testing.T) {
	eng := newScenarioEngine()
	vt, err := NewModule(Options{}).Connect(context.Background(), eng, scenarioArgs)
	require.NoError(t, err)
	defer vt.Disconnect()
	assert.Equal(t, []string{"r_id", "a", "b"}, vt.Columns())
}

func TestScan_Scenario(t *testing.T) {
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	rows, ids := scanAll(t, tab, 0, "")
	assert.Equal(t, [][]DS.Value{
		{DS.IntValue(1), DS.IntValue(11), DS.IntValue(12)},
		{DS.IntValue(2), DS.IntValue(21), DS.IntValue(22)},
		{DS.IntValue(3), DS.IntValue(31), DS.NullValue()},
	}, rows)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	st := tab.Stats()
	assert.Equal(t, int64(1), st.Scans)
	assert.Equal(t, int64(3), st.RowsFetched)
	assert.Equal(t, int64(6), st.CellsResolved)
	assert.Equal(t, int64(1), st.CellMisses)

	// the scan statement is released once the cursor closes
	assert.Equal(t, 2, eng.openStmts())
}

func TestScan_EmptyRowKeys(t *testing.T) {
	eng := newScenarioEngine()
	eng.add(scanSQL, &fakeRelation{columns: []string{"r_id"}})
	tab := createTable(t, eng)

	rows, _ := scanAll(t, tab, 0, "")
	assert.Empty(t, rows)
}

func TestCursor_EmptyScanIsExhausted(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	eng.add(scanSQL, &fakeRelation{columns: []string{"r_id"}})
	tab := createTable(t, eng)
	openBefore := eng.openStmts()

	cur, err := tab.Open()
	require.NoError(t, err)
	defer cur.Close()

	require.NoError(t, cur.Filter(ctx, 0, "", nil))
	assert.True(t, cur.Eof())
	assert.Equal(t, openBefore, eng.openStmts())
	_, err = cur.RowID()
	assert.ErrorIs(t, err, perrors.ErrMisuse)
	require.NoError(t, cur.Next(ctx))
	assert.True(t, cur.Eof())
}

func TestCreate_NoColumns(t *testing.T) {
	eng := newScenarioEngine()
	eng.add(colSQL, &fakeRelation{columns: []string{"c_id", "name"}})
	tab := createTable(t, eng)

	assert.Equal(t, []string{"r_id"}, tab.Columns())
	rows, _ := scanAll(t, tab, 0, "")
	assert.Len(t, rows, 3)
}

func TestCreate_DefinitionErrors(t *testing.T) {
	colRows := func(rows ...[]DS.Value) func([]DS.Value) ([][]DS.Value, error) {
		return func([]DS.Value) ([][]DS.Value, error) { return rows, nil }
	}

	tests := []struct {
		name  string
		args  []string
		setup func(eng *fakeEngine)
		kind  perrors.Kind
	}{
		{
			name: "too few arguments",
			args: scenarioArgs[:2],
			kind: perrors.KindArgumentCount,
		},
		{
			name: "too many arguments",
			args: append(append([]string{}, scenarioArgs...), "(SELECT 1)"),
			kind: perrors.KindArgumentCount,
		},
		{
			name: "row key query does not compile",
			setup: func(eng *fakeEngine) {
				eng.prepareErr[scanSQL] = errors.New("no such table: r")
			},
			kind: perrors.KindRowKeyQueryInvalid,
		},
		{
			name: "unbalanced argument",
			args: []string{"(SELECT id FROM r", "(" + colDefSQL + ")", "(" + valueSQL + ")"},
			kind: perrors.KindRowKeyQueryInvalid,
		},
		{
			name: "value query does not compile",
			setup: func(eng *fakeEngine) {
				eng.prepareErr[lookupSQL] = errors.New("no such table: x")
			},
			kind: perrors.KindValueQueryInvalid,
		},
		{
			name: "value query with one parameter",
			setup: func(eng *fakeEngine) {
				eng.relations[lookupSQL].params = 1
			},
			kind: perrors.KindParameterArityMismatch,
		},
		{
			name: "value query with more key parameters than key columns",
			setup: func(eng *fakeEngine) {
				eng.relations[lookupSQL].params = 3
			},
			kind: perrors.KindParameterArityMismatch,
		},
		{
			name: "column query does not compile",
			setup: func(eng *fakeEngine) {
				eng.prepareErr[colSQL] = errors.New("no such table: c")
			},
			kind: perrors.KindColumnDefQueryInvalid,
		},
		{
			name: "column query with three columns",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].columns = []string{"c_id", "name", "extra"}
			},
			kind: perrors.KindColumnDefArityMismatch,
		},
		{
			name: "column query fails while stepping",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].stepErr = errors.New("disk I/O error")
				eng.relations[colSQL].failAfter = 1
			},
			kind: perrors.KindColumnDefQueryInvalid,
		},
		{
			name: "duplicate column key",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].rows = colRows(
					[]DS.Value{DS.IntValue(1), DS.StringValue("a")},
					[]DS.Value{DS.IntValue(1), DS.StringValue("b")},
				)
			},
			kind: perrors.KindDuplicateColumnKey,
		},
		{
			name: "duplicate column name ignoring case",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].rows = colRows(
					[]DS.Value{DS.IntValue(1), DS.StringValue("a")},
					[]DS.Value{DS.IntValue(2), DS.StringValue("A")},
				)
			},
			kind: perrors.KindDuplicateColumnName,
		},
		{
			name: "column name collides with key column",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].rows = colRows(
					[]DS.Value{DS.IntValue(1), DS.StringValue("R_ID")},
				)
			},
			kind: perrors.KindDuplicateColumnName,
		},
		{
			name: "NULL column name",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].rows = colRows(
					[]DS.Value{DS.IntValue(1), DS.NullValue()},
				)
			},
			kind: perrors.KindColumnDefQueryInvalid,
		},
		{
			name: "NULL column key",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].rows = colRows(
					[]DS.Value{DS.NullValue(), DS.StringValue("n")},
					[]DS.Value{DS.StringValue(""), DS.StringValue("e")},
				)
			},
			kind: perrors.KindColumnDefQueryInvalid,
		},
		{
			name: "duplicate empty text key",
			setup: func(eng *fakeEngine) {
				eng.relations[colSQL].rows = colRows(
					[]DS.Value{DS.StringValue(""), DS.StringValue("e")},
					[]DS.Value{DS.StringValue(""), DS.StringValue("f")},
				)
			},
			kind: perrors.KindDuplicateColumnKey,
		},
		{
			name: "lookup statement fails for the second column",
			setup: func(eng *fakeEngine) {
				// one prepare for validation, one for column a
				eng.prepareLimit[lookupSQL] = 2
			},
			kind: perrors.KindValueQueryInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newScenarioEngine()
			if tt.setup != nil {
				tt.setup(eng)
			}
			args := tt.args
			if args == nil {
				args = scenarioArgs
			}

			vt, err := NewModule(Options{}).Create(context.Background(), eng, args)
			require.Error(t, err)
			assert.Nil(t, vt)
			assert.Equal(t, tt.kind, perrors.KindOf(err))
			assert.True(t, perrors.IsDefinition(err))
			assert.Equal(t, 0, eng.openStmts(), "every statement must be released")
		})
	}
}

func TestCreate_NilEngine(t *testing.T) {
	_, err := NewModule(Options{}).Create(context.Background(), nil, scenarioArgs)
	assert.ErrorIs(t, err, perrors.ErrMisuse)
}

func TestCreate_CompositeRowKey(t *testing.T) {
	const (
		keySQL   = "SELECT k1, k2 FROM r2"
		valSQL   = "SELECT v FROM x2 WHERE k1 = ?1 AND c = ?2"
		keyScan  = "SELECT * FROM (" + keySQL + ")"
		valQuery = "SELECT * FROM (" + valSQL + ")"
	)
	eng := newScenarioEngine()
	eng.add(keyScan, &fakeRelation{
		columns: []string{"k1", "k2"},
		rows: func([]DS.Value) ([][]DS.Value, error) {
			return [][]DS.Value{{DS.IntValue(1), DS.StringValue("x")}}, nil
		},
	})
	eng.add(valQuery, &fakeRelation{
		columns: []string{"v"},
		params:  2,
		rows: func(args []DS.Value) ([][]DS.Value, error) {
			return [][]DS.Value{{DS.IntValue(args[0].Int*100 + args[1].Int)}}, nil
		},
	})

	tab := createTable(t, eng, keySQL, colDefSQL, valSQL)
	assert.Equal(t, 2, tab.RowKeyArity())
	assert.Equal(t, 1, tab.LookupParamArity())
	assert.Equal(t, []string{"k1", "k2", "a", "b"}, tab.Columns())
	assert.Equal(t, `CREATE TABLE x("k1","k2","a","b")`, tab.Schema())

	rows, _ := scanAll(t, tab, 0, "")
	require.Len(t, rows, 1)
	assert.Equal(t, []DS.Value{DS.IntValue(1), DS.StringValue("x"), DS.IntValue(101), DS.IntValue(102)}, rows[0])
}

func TestCursor_Lifecycle(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	cur, err := tab.Open()
	require.NoError(t, err)
	assert.False(t, cur.Eof())
	_, err = cur.RowID()
	assert.ErrorIs(t, err, perrors.ErrMisuse)
	_, err = cur.Column(ctx, 0)
	assert.ErrorIs(t, err, perrors.ErrMisuse)

	require.NoError(t, cur.Filter(ctx, 0, "", nil))
	for !cur.Eof() {
		require.NoError(t, cur.Next(ctx))
	}
	closedAfterScan := eng.closedStmts()

	// advancing an exhausted cursor is a no-op and releases nothing twice
	require.NoError(t, cur.Next(ctx))
	require.NoError(t, cur.Next(ctx))
	assert.True(t, cur.Eof())
	_, err = cur.RowID()
	assert.ErrorIs(t, err, perrors.ErrMisuse)
	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close())
	assert.Equal(t, closedAfterScan, eng.closedStmts())
	assert.Equal(t, 2, eng.openStmts())
}

func TestCursor_RefilterRestarts(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	cur, err := tab.Open()
	require.NoError(t, err)
	defer cur.Close()

	require.NoError(t, cur.Filter(ctx, 0, "", nil))
	require.NoError(t, cur.Next(ctx))
	id, err := cur.RowID()
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	require.NoError(t, cur.Filter(ctx, 0, "", nil))
	id, err = cur.RowID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	// the first scan statement was released when the cursor restarted
	assert.Equal(t, 3, eng.openStmts())
}

func TestCursor_StepErrorReleasesScan(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	tab := createTable(t, eng)
	eng.relations[scanSQL].stepErr = errors.New("database disk image is malformed")
	eng.relations[scanSQL].failAfter = 1

	cur, err := tab.Open()
	require.NoError(t, err)
	require.NoError(t, cur.Filter(ctx, 0, "", nil))

	err = cur.Next(ctx)
	assert.ErrorIs(t, err, perrors.ErrScan)
	assert.True(t, cur.Eof())
	assert.Equal(t, 2, eng.openStmts())
	require.NoError(t, cur.Close())
}

func TestCursor_PrepareError(t *testing.T) {
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	cur, err := tab.Open()
	require.NoError(t, err)
	err = cur.Filter(context.Background(), 0, "SELECT broken", nil)
	assert.Equal(t, perrors.KindScan, perrors.KindOf(err))
	assert.True(t, cur.Eof())
}

func TestCursor_ArgumentCountMismatch(t *testing.T) {
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	cur, err := tab.Open()
	require.NoError(t, err)
	err = cur.Filter(context.Background(), 1, scanSQL+` WHERE "r_id" = ?`, nil)
	assert.ErrorIs(t, err, perrors.ErrMisuse)
}

func TestCursor_KeyOutlivesRowBuffer(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	eng.add(scanSQL, &fakeRelation{
		columns: []string{"r_id"},
		rows: func([]DS.Value) ([][]DS.Value, error) {
			return [][]DS.Value{{DS.BytesValue([]byte("k1"))}, {DS.BytesValue([]byte("k2"))}}, nil
		},
	})
	eng.add(lookupSQL, &fakeRelation{
		columns: []string{"val"},
		params:  2,
		rows: func(args []DS.Value) ([][]DS.Value, error) {
			return [][]DS.Value{{DS.StringValue(string(args[0].Bytes) + "/" + args[1].String())}}, nil
		},
	})
	tab := createTable(t, eng)

	cur, err := tab.Open()
	require.NoError(t, err)
	defer cur.Close()
	require.NoError(t, cur.Filter(ctx, 0, "", nil))

	first, err := cur.Column(ctx, 0)
	require.NoError(t, err)
	cell, err := cur.Column(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "k1/2", cell.Str)

	require.NoError(t, cur.Next(ctx))
	second, err := cur.Column(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("k1"), first.Bytes)
	assert.Equal(t, []byte("k2"), second.Bytes)
	cell, err = cur.Column(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "k2/1", cell.Str)
}

func TestResolver_Idempotent(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	cur, err := tab.Open()
	require.NoError(t, err)
	defer cur.Close()
	require.NoError(t, cur.Filter(ctx, 0, "", nil))

	for i := 0; i < 3; i++ {
		v, err := cur.Column(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, DS.IntValue(12), v)
	}

	_, err = cur.Column(ctx, 3)
	assert.ErrorIs(t, err, perrors.ErrMisuse)
	_, err = cur.Column(ctx, -1)
	assert.ErrorIs(t, err, perrors.ErrMisuse)
}

func TestResolver_InterleavedCursors(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	a, err := tab.Open()
	require.NoError(t, err)
	defer a.Close()
	b, err := tab.Open()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Filter(ctx, 0, "", nil))
	require.NoError(t, b.Filter(ctx, 0, "", nil))
	require.NoError(t, b.Next(ctx))

	va, err := a.Column(ctx, 1)
	require.NoError(t, err)
	vb, err := b.Column(ctx, 1)
	require.NoError(t, err)
	va2, err := a.Column(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, DS.IntValue(11), va)
	assert.Equal(t, DS.IntValue(21), vb)
	assert.Equal(t, va, va2)
}

func TestResolver_ConcurrentCursors(t *testing.T) {
	eng := newScenarioEngine()
	tab := createTable(t, eng)

	var wg sync.WaitGroup
	results := make([][][]DS.Value, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			cur, err := tab.Open()
			if err != nil {
				return
			}
			defer cur.Close()
			if err := cur.Filter(ctx, 0, "", nil); err != nil {
				return
			}
			for !cur.Eof() {
				row := make([]DS.Value, 3)
				for c := range row {
					row[c], _ = cur.Column(ctx, c)
				}
				results[i] = append(results[i], row)
				if err := cur.Next(ctx); err != nil {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for _, rows := range results {
		require.Len(t, rows, 3)
		assert.Equal(t, DS.IntValue(22), rows[1][2])
		assert.True(t, rows[2][2].IsNull())
	}
}

func TestResolver_LookupError(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	tab := createTable(t, eng)
	eng.relations[lookupSQL].stepErr = errors.New("interrupted")

	cur, err := tab.Open()
	require.NoError(t, err)
	defer cur.Close()
	require.NoError(t, cur.Filter(ctx, 0, "", nil))

	_, err = cur.Column(ctx, 1)
	assert.ErrorIs(t, err, perrors.ErrCellResolution)
	assert.Equal(t, "22000", perrors.SQLStateOf(err))

	// the statement was reset and the cursor is still usable
	eng.relations[lookupSQL].stepErr = nil
	v, err := cur.Column(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, DS.IntValue(11), v)
}

func TestTable_DisconnectReleasesOnce(t *testing.T) {
	ctx := context.Background()
	eng := newScenarioEngine()
	vt, err := NewModule(Options{}).Create(ctx, eng, scenarioArgs)
	require.NoError(t, err)
	tab := vt.(*Table)

	cur, err := tab.Open()
	require.NoError(t, err)
	require.NoError(t, cur.Filter(ctx, 0, "", nil))

	before := eng.closedStmts()
	require.NoError(t, tab.Disconnect())
	assert.Equal(t, before+2, eng.closedStmts())
	require.NoError(t, tab.Destroy())
	require.NoError(t, tab.Disconnect())
	assert.Equal(t, before+2, eng.closedStmts())

	_, err = cur.Column(ctx, 1)
	assert.ErrorIs(t, err, perrors.ErrMisuse)
	_, err = tab.Open()
	assert.ErrorIs(t, err, perrors.ErrMisuse)

	require.NoError(t, cur.Close())
	assert.Equal(t, 0, eng.openStmts())
}

func TestTable_RenameIsNoop(t *testing.T) {
	eng := newScenarioEngine()
	tab := createTable(t, eng)
	require.NoError(t, tab.Rename("other"))
	assert.Equal(t, []string{"r_id", "a", "b"}, tab.Columns())
}
