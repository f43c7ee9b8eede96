package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	"github.com/cyw0ng95/pivotvtab/pkg/pivotdb"
)

// Importer loads CSV files into engine tables, typically the tables a
// pivot reads its keys and cells from.
type Importer struct {
	db *pivotdb.Database
}

func NewImporter(db *pivotdb.Database) *Importer {
	return &Importer{db: db}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ImportCSV creates table if needed, with one untyped column per header,
// and inserts every record. Numeric fields are stored as numbers and empty
// fields as NULL.
func (i *Importer) ImportCSV(ctx context.Context, filename, table string) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("empty CSV file")
	}

	headers := records[0]
	cols := make([]string, len(headers))
	placeholders := make([]string, len(headers))
	for j, h := range headers {
		cols[j] = quoteIdent(h)
		placeholders[j] = "?"
	}

	eng := i.db.Engine()
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if err := eng.Exec(ctx, createSQL); err != nil {
		return 0, err
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	count := 0
	for n, rec := range records[1:] {
		vals := make([]DS.Value, len(rec))
		for k, field := range rec {
			vals[k] = csvValue(field)
		}
		if _, err := eng.ExecArgs(ctx, insertSQL, vals...); err != nil {
			return count, fmt.Errorf("line %d: %w", n+2, err)
		}
		count++
	}
	return count, nil
}

func csvValue(field string) DS.Value {
	if field == "" {
		return DS.NullValue()
	}
	return literalValue(word{text: field})
}
