package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/aliskhannn/iconverter/internal/model"
)

// column is one table column; right aligns its cells to the right.
type column struct {
	title string
	right bool
}

// writeTable renders a bordered table on terminals and tab separated
// values everywhere else. Short rows are padded with empty cells.
func writeTable(w io.Writer, columns []column, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	if !isTerminal(w) {
		titles := make([]string, len(columns))
		for i, c := range columns {
			titles[i] = c.title
		}
		fmt.Fprintln(w, strings.Join(titles, "\t"))
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(columns))
	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, c := range columns {
		header = append(header, c.title)

		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if c.right {
			cfg.Align = text.AlignRight
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		tw.AppendRow(cells)
	}

	tw.Render()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printSummary lists every item with its size before and after processing.
func printSummary(w io.Writer, items []model.Item) {
	columns := []column{
		{title: "FILE"},
		{title: "OUTPUT"},
		{title: "BEFORE", right: true},
		{title: "AFTER", right: true},
		{title: "SAVED", right: true},
	}
	rows := make([][]string, 0, len(items))

	for _, it := range items {
		if !it.Processed() {
			rows = append(rows, []string{it.Source.Name, "-", humanize.Bytes(uint64(it.Source.Size)), "-", "-"})
			continue
		}

		after := int64(len(it.Output))
		rows = append(rows, []string{
			it.Source.Name,
			it.OutputName(),
			humanize.Bytes(uint64(it.Source.Size)),
			humanize.Bytes(uint64(after)),
			savedPercent(it.Source.Size, after),
		})
	}

	writeTable(w, columns, rows)
}

func savedPercent(before, after int64) string {
	if before <= 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f%%", (1-float64(after)/float64(before))*100)
}
