package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// tablePrinter renders rounded tables onto one writer and knows whether
// that writer can take ANSI color.
type tablePrinter struct {
	w     io.Writer
	color bool
}

func newTablePrinter(w io.Writer) *tablePrinter {
	color := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &tablePrinter{w: w, color: color}
}

// paint wraps s in the ANSI code when the writer is a terminal and returns
// it untouched otherwise, so piped output stays clean.
func (p *tablePrinter) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p *tablePrinter) print(headers []string, rows [][]string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(p.w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(tableRow(headers))
	for _, row := range rows {
		tw.AppendRow(tableRow(row))
	}
	tw.Render()
}

func tableRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}
