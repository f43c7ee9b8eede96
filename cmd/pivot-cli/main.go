// Command pivot-cli is an interactive shell for pivot virtual tables.
//
//	pivot-cli -db data.db -catalog ./catalog
//	pivot> CREATE VIRTUAL TABLE p USING pivot_vtab(
//	  ...> (SELECT id FROM r), (SELECT id, name FROM c),
//	  ...> (SELECT val FROM x WHERE r_id = ?1 AND c_id = ?2));
//	pivot> .scan p where a > 10 order b desc limit 5
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cyw0ng95/pivotvtab/driver"
	"github.com/cyw0ng95/pivotvtab/internal/log"
	"github.com/cyw0ng95/pivotvtab/pkg/pivotdb"
)

var (
	driverName  = flag.String("driver", driver.DefaultDriverName, "database/sql driver name")
	dbPath      = flag.String("db", ":memory:", "Database DSN")
	catalogDir  = flag.String("catalog", "", "Directory persisting virtual table definitions (empty keeps them in memory)")
	initFile    = flag.String("init", "", "SQL file executed before anything else")
	logLevel    = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	echoMode    = flag.Bool("echo", false, "Echo SQL statements")
	historyPath = flag.String("history", defaultHistoryPath(), "History file (empty disables it)")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	lvl, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	log.SetLevel(lvl)

	ctx := context.Background()
	db, err := pivotdb.Open(ctx, pivotdb.Options{
		Driver:     *driverName,
		DSN:        *dbPath,
		CatalogDir: *catalogDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("close: %v", err)
		}
	}()

	sh := newShell(ctx, db, os.Stdout, os.Stderr)
	sh.echo = *echoMode

	if *initFile != "" {
		if err := ExecuteSQLFile(ctx, db, *initFile); err != nil {
			sh.printError(err)
			return 1
		}
	}

	if args := flag.Args(); len(args) > 0 {
		line := strings.Join(args, " ")
		var err error
		if strings.HasPrefix(line, ".") {
			_, err = sh.meta(line)
		} else {
			err = sh.run(line)
		}
		if err != nil {
			sh.printError(err)
			return 1
		}
		return 0
	}

	sh.history = NewHistoryManager(*historyPath)
	if err := sh.history.Load(); err != nil {
		log.Warn("load history: %v", err)
	}
	fmt.Println("pivot-cli - pivot virtual table shell")
	fmt.Println("Type '.help' for help, '.exit' to exit")
	fmt.Println()
	sh.repl(os.Stdin, true)
	if err := sh.history.Save(); err != nil {
		log.Warn("save history: %v", err)
	}
	return 0
}
