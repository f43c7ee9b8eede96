package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

type OutputMode string

const (
	OutputTable OutputMode = "table"
	OutputCSV   OutputMode = "csv"
	OutputList  OutputMode = "list"
)

func parseOutputMode(s string) (OutputMode, error) {
	switch m := OutputMode(strings.ToLower(s)); m {
	case OutputTable, OutputCSV, OutputList:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode: %s (table, csv, list)", s)
}

// Formatter renders result sets.
type Formatter struct {
	mode        OutputMode
	showHeaders bool
	nullValue   string
}

func NewFormatter() *Formatter {
	return &Formatter{
		mode:        OutputTable,
		showHeaders: true,
		nullValue:   "NULL",
	}
}

func (f *Formatter) SetMode(mode OutputMode) {
	f.mode = mode
}

func (f *Formatter) SetShowHeaders(show bool) {
	f.showHeaders = show
}

func (f *Formatter) SetNullValue(value string) {
	f.nullValue = value
}

// Render writes columns and rows to w in the current mode.
func (f *Formatter) Render(w io.Writer, columns []string, rows [][]DS.Value) error {
	if len(columns) == 0 {
		return nil
	}
	switch f.mode {
	case OutputCSV:
		return f.renderCSV(w, columns, rows)
	case OutputList:
		return f.renderList(w, columns, rows)
	default:
		return f.renderTable(w, columns, rows)
	}
}

func (f *Formatter) renderTable(w io.Writer, columns []string, rows [][]DS.Value) error {
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	if f.showHeaders {
		table.Header(columns)
	}
	for _, row := range rows {
		if err := table.Append(f.formatRow(row)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", countLine(len(rows)))
	return err
}

func (f *Formatter) renderCSV(w io.Writer, columns []string, rows [][]DS.Value) error {
	cw := csv.NewWriter(w)
	if f.showHeaders {
		if err := cw.Write(columns); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := cw.Write(f.formatRow(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (f *Formatter) renderList(w io.Writer, columns []string, rows [][]DS.Value) error {
	for i, row := range rows {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		for j, col := range columns {
			if _, err := fmt.Fprintf(w, "%s = %s\n", col, f.formatValue(row[j])); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Formatter) formatRow(row []DS.Value) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = f.formatValue(v)
	}
	return out
}

func (f *Formatter) formatValue(v DS.Value) string {
	if v.IsNull() {
		return f.nullValue
	}
	return v.Text()
}

func countLine(n int) string {
	switch {
	case n == 0:
		return color.YellowString("no rows")
	case n == 1:
		return color.GreenString("1 row")
	default:
		return color.GreenString("%d rows", n)
	}
}
