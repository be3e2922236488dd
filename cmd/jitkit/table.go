package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var headerColor = color.New(color.Bold)

// writeTable prints rows in columns padded to their display width.
func writeTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); i < len(widths) && cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	line := func(cells []string, paint func(string) string) {
		var sb strings.Builder
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(cells)-1 {
				sb.WriteString(paint(cell))
				continue
			}
			sb.WriteString(paint(runewidth.FillRight(cell, widths[i])))
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
	line(header, func(s string) string { return headerColor.Sprint(s) })
	for _, row := range rows {
		line(row, func(s string) string { return s })
	}
}
