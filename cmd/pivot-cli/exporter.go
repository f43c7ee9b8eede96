package main

import (
	"context"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/cyw0ng95/pivotvtab/pkg/pivotdb"
)

type Exporter struct {
	db *pivotdb.Database
}

func NewExporter(db *pivotdb.Database) *Exporter {
	return &Exporter{db: db}
}

// exportSchema declares one optional UTF-8 column per output column.
func exportSchema(name string, columns []string) *parquet.Schema {
	group := make(parquet.Group, len(columns))
	for _, c := range columns {
		group[c] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema(name, group)
}

// ExportParquet writes the result of q against table to filename and
// returns the number of rows written. NULL cells are written as nulls,
// every other value as its text.
func (e *Exporter) ExportParquet(ctx context.Context, filename, table string, q pivotdb.Query) (int, error) {
	rows, err := e.db.Query(ctx, table, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	schema := exportSchema(table, rows.Columns)
	// leaf columns are ordered by name, not by output position
	leaves := make([]int, len(rows.Columns))
	for i, c := range rows.Columns {
		leaf, ok := schema.Lookup(c)
		if !ok {
			return 0, fmt.Errorf("column %s missing from parquet schema", c)
		}
		leaves[i] = leaf.ColumnIndex
	}

	file, err := os.Create(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	w := parquet.NewWriter(file, schema)
	count := 0
	for rows.Next() {
		row := make(parquet.Row, len(leaves))
		for i, v := range rows.Values() {
			col := leaves[i]
			if v.IsNull() {
				row[col] = parquet.NullValue().Level(0, 0, col)
			} else {
				row[col] = parquet.ByteArrayValue([]byte(v.Text())).Level(0, 1, col)
			}
		}
		if _, err := w.WriteRows([]parquet.Row{row}); err != nil {
			return count, fmt.Errorf("write row %d: %w", count+1, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}
	if err := w.Close(); err != nil {
		return count, err
	}
	return count, file.Close()
}
