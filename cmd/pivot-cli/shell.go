package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/cyw0ng95/pivotvtab/ext/pivot"
	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
	QP "github.com/cyw0ng95/pivotvtab/internal/QP"
	"github.com/cyw0ng95/pivotvtab/pkg/pivotdb"
)

// shell runs statements and dot commands against one database.
type shell struct {
	ctx    context.Context
	db     *pivotdb.Database
	out    io.Writer
	errOut io.Writer

	formatter *Formatter
	importer  *Importer
	exporter  *Exporter
	history   *HistoryManager

	echo  bool
	timer bool
}

func newShell(ctx context.Context, db *pivotdb.Database, out, errOut io.Writer) *shell {
	return &shell{
		ctx:       ctx,
		db:        db,
		out:       out,
		errOut:    errOut,
		formatter: NewFormatter(),
		importer:  NewImporter(db),
		exporter:  NewExporter(db),
		history:   NewHistoryManager(""),
	}
}

func (s *shell) printError(err error) {
	color.New(color.FgRed).Fprintf(s.errOut, "Error: %v\n", err)
}

// repl reads lines from in until EOF or .exit. SQL may span lines and runs
// once a line ends with ';'.
func (s *shell) repl(in io.Reader, interactive bool) {
	scanner := bufio.NewScanner(in)
	var pending strings.Builder
	for {
		if interactive {
			if pending.Len() == 0 {
				fmt.Fprint(s.out, "pivot> ")
			} else {
				fmt.Fprint(s.out, "  ...> ")
			}
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if pending.Len() == 0 {
			if strings.HasPrefix(line, ".") {
				s.history.Add(line)
				exit, err := s.meta(line)
				if err != nil {
					s.printError(err)
				}
				if exit {
					return
				}
				continue
			}
			if line == "exit" || line == "quit" {
				return
			}
		}

		if pending.Len() > 0 {
			pending.WriteByte('\n')
		}
		pending.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			continue
		}
		sql := pending.String()
		pending.Reset()
		s.history.Add(strings.Join(strings.Fields(sql), " "))
		if err := s.run(sql); err != nil {
			s.printError(err)
		}
	}
	if err := scanner.Err(); err != nil {
		s.printError(err)
	}
	if pending.Len() > 0 {
		if err := s.run(pending.String()); err != nil {
			s.printError(err)
		}
	}
}

// run executes the statements in sql in order, stopping at the first error.
func (s *shell) run(sql string) error {
	stmts, err := QP.SplitStatements(sql)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := s.runOne(stmt); err != nil {
			return err
		}
	}
	return nil
}

// runOne executes one statement. Statements that return rows are rendered;
// the rest go through the host so virtual table DDL is handled.
func (s *shell) runOne(sql string) error {
	if s.echo {
		fmt.Fprintln(s.out, sql)
	}
	start := time.Now()
	var err error
	if returnsRows(sql) {
		err = s.query(sql)
	} else {
		err = s.db.Exec(s.ctx, sql)
	}
	if err == nil && s.timer {
		s.printTime(time.Since(start))
	}
	return err
}

func returnsRows(sql string) bool {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(strings.TrimLeft(fields[0], "(")) {
	case "SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN":
		return true
	}
	return false
}

// query runs sql on the engine and renders the result.
func (s *shell) query(sql string) error {
	stmt, err := s.db.Engine().Prepare(s.ctx, sql)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var rows [][]DS.Value
	for {
		ok, err := stmt.Step(s.ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row := make([]DS.Value, stmt.ColumnCount())
		for i := range row {
			row[i] = stmt.Column(i).Dup()
		}
		rows = append(rows, row)
	}
	return s.formatter.Render(s.out, stmt.ColumnNames(), rows)
}

func (s *shell) printTime(d time.Duration) {
	fmt.Fprintln(s.out, color.CyanString("Run Time: real %.3f ms", float64(d.Microseconds())/1000.0))
}

// meta handles a dot command. It reports true when the shell should exit.
func (s *shell) meta(line string) (bool, error) {
	words, err := splitWords(line)
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(words[0].text)
	args := words[1:]

	switch cmd {
	case ".exit", ".quit":
		return true, nil
	case ".help":
		s.printHelp()
	case ".tables":
		return false, s.listTables()
	case ".schema":
		return false, s.showSchema(args)
	case ".scan":
		return false, s.scan(args)
	case ".explain":
		return false, s.explain(args)
	case ".stats":
		return false, s.stats(args)
	case ".export":
		return false, s.export(args)
	case ".import":
		return false, s.importCSV(args)
	case ".read":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: .read FILE")
		}
		return false, ExecuteSQLFile(s.ctx, s.db, args[0].text)
	case ".mode":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: .mode table|csv|list")
		}
		mode, err := parseOutputMode(args[0].text)
		if err != nil {
			return false, err
		}
		s.formatter.SetMode(mode)
	case ".headers":
		on, err := onOff(".headers", args)
		if err != nil {
			return false, err
		}
		s.formatter.SetShowHeaders(on)
	case ".nullvalue":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: .nullvalue TEXT")
		}
		s.formatter.SetNullValue(args[0].text)
	case ".timer":
		on, err := onOff(".timer", args)
		if err != nil {
			return false, err
		}
		s.timer = on
	case ".echo":
		on, err := onOff(".echo", args)
		if err != nil {
			return false, err
		}
		s.echo = on
	case ".history":
		for i, h := range s.history.GetHistory() {
			fmt.Fprintf(s.out, "%5d  %s\n", i+1, h)
		}
	default:
		return false, fmt.Errorf("unknown command: %s (try .help)", words[0].text)
	}
	return false, nil
}

func onOff(cmd string, args []word) (bool, error) {
	if len(args) == 1 {
		switch strings.ToLower(args[0].text) {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("usage: %s on|off", cmd)
}

func (s *shell) printHelp() {
	bold := color.New(color.Bold)
	bold.Fprintln(s.out, "Virtual tables:")
	fmt.Fprintln(s.out, "  .tables                 List virtual tables")
	fmt.Fprintln(s.out, "  .schema [NAME]          Show CREATE statement(s) and declared columns")
	fmt.Fprintln(s.out, "  .scan NAME [cols C1,C2] [where COL OP [VAL] [and ...]] [order COL [desc], ...] [limit N]")
	fmt.Fprintln(s.out, "                          Scan a virtual table")
	fmt.Fprintln(s.out, "  .explain NAME ...       Show how .scan would run")
	fmt.Fprintln(s.out, "  .stats NAME             Show cursor and cell counters")
	fmt.Fprintln(s.out)
	bold.Fprintln(s.out, "I/O:")
	fmt.Fprintln(s.out, "  .export NAME FILE ...   Write a scan to a parquet file")
	fmt.Fprintln(s.out, "  .import FILE TABLE      Load a CSV file into an engine table")
	fmt.Fprintln(s.out, "  .read FILE              Execute SQL from file")
	fmt.Fprintln(s.out)
	bold.Fprintln(s.out, "Output:")
	fmt.Fprintln(s.out, "  .mode table|csv|list    Set output mode")
	fmt.Fprintln(s.out, "  .headers on|off         Toggle column headers")
	fmt.Fprintln(s.out, "  .nullvalue TEXT         Set string for NULL values")
	fmt.Fprintln(s.out, "  .timer on|off           Toggle statement timer")
	fmt.Fprintln(s.out, "  .echo on|off            Echo statements before running them")
	fmt.Fprintln(s.out)
	bold.Fprintln(s.out, "Other:")
	fmt.Fprintln(s.out, "  .history                Show entered commands")
	fmt.Fprintln(s.out, "  .help                   Show this help")
	fmt.Fprintln(s.out, "  .exit, .quit            Exit the shell")
}

func (s *shell) listTables() error {
	tables := s.db.Tables()
	rows := make([][]DS.Value, 0, len(tables))
	for _, t := range tables {
		state := DS.StringValue("attached")
		if !t.Attached {
			state = DS.StringValue("detached: " + t.AttachError.Error())
		}
		rows = append(rows, []DS.Value{
			DS.StringValue(t.Name),
			DS.StringValue(t.Module),
			DS.IntValue(int64(len(t.Columns))),
			state,
			DS.StringValue(t.CreatedAt.Format(time.RFC3339)),
		})
	}
	return s.formatter.Render(s.out, []string{"name", "module", "columns", "state", "created"}, rows)
}

func (s *shell) showSchema(args []word) error {
	var names []string
	if len(args) > 0 {
		names = append(names, args[0].text)
	} else {
		for _, t := range s.db.Tables() {
			names = append(names, t.Name)
		}
	}
	for _, name := range names {
		sql, err := s.db.Schema(name)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, sql)
	}
	return nil
}

func (s *shell) scan(args []word) error {
	table, q, err := parseScan(args)
	if err != nil {
		return fmt.Errorf(".scan: %w", err)
	}
	start := time.Now()
	rows, err := s.db.Query(s.ctx, table, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	var data [][]DS.Value
	for rows.Next() {
		data = append(data, rows.Values())
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := s.formatter.Render(s.out, rows.Columns, data); err != nil {
		return err
	}
	if s.timer {
		s.printTime(time.Since(start))
	}
	return nil
}

func (s *shell) explain(args []word) error {
	table, q, err := parseScan(args)
	if err != nil {
		return fmt.Errorf(".explain: %w", err)
	}
	p, err := s.db.Explain(table, q)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, color.CyanString("QUERY PLAN"))
	for _, l := range p.Lines() {
		fmt.Fprintln(s.out, l)
	}
	return nil
}

func (s *shell) stats(args []word) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: .stats NAME")
	}
	vt, err := s.db.Table(args[0].text)
	if err != nil {
		return err
	}
	pt, ok := vt.(*pivot.Table)
	if !ok {
		return fmt.Errorf("%s is not a pivot table", args[0].text)
	}
	st := pt.Stats()
	return s.formatter.Render(s.out,
		[]string{"scans", "rows_fetched", "cells_resolved", "cell_misses"},
		[][]DS.Value{{
			DS.IntValue(st.Scans),
			DS.IntValue(st.RowsFetched),
			DS.IntValue(st.CellsResolved),
			DS.IntValue(st.CellMisses),
		}})
}

func (s *shell) export(args []word) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .export NAME FILE [cols ...] [where ...] [order ...] [limit N]")
	}
	filename := args[1].text
	scanArgs := append([]word{args[0]}, args[2:]...)
	table, q, err := parseScan(scanArgs)
	if err != nil {
		return fmt.Errorf(".export: %w", err)
	}
	n, err := s.exporter.ExportParquet(s.ctx, filename, table, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Exported %d rows to %s\n", n, filename)
	return nil
}

func (s *shell) importCSV(args []word) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: .import FILE TABLE")
	}
	n, err := s.importer.ImportCSV(s.ctx, args[0].text, args[1].text)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Imported %d rows\n", n)
	return nil
}
