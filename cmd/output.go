package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

var outputJSON bool

// stdoutIsTerminal reports whether stdout is an interactive terminal.
// Non-TTY output (pipes, redirects) gets JSON instead of tables.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printRecords renders rows as a table on a TTY, or as JSON when
// --json is set or stdout is not a terminal.
func printRecords(headers []string, rows [][]string, jsonValue any) error {
	if outputJSON || !stdoutIsTerminal() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonValue)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, c := range row {
			r[i] = c
		}
		tw.AppendRow(r)
	}

	fmt.Println(tw.Render())
	return nil
}

func truncateCell(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
