package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cyw0ng95/pivotvtab/pkg/pivotdb"
)

// ExecuteSQLFile runs every statement in filename, stopping at the first
// error.
func ExecuteSQLFile(ctx context.Context, db *pivotdb.Database, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := db.ExecScript(ctx, string(data)); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	return nil
}
