package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// writeJSON prints v as indented JSON for --json output.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return err
}

// tableView is a listing rendered with go-pretty.
type tableView struct {
	headers []string
	rows    [][]string
	footer  []string
	// right holds zero-based indexes of right-aligned columns.
	right []int
}

func (v tableView) render() string {
	if len(v.headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)

	tw.AppendHeader(v.cells(v.headers))
	for _, row := range v.rows {
		tw.AppendRow(v.cells(row))
	}
	if len(v.footer) > 0 {
		tw.AppendFooter(v.cells(v.footer))
	}

	configs := make([]table.ColumnConfig, 0, len(v.right))
	for _, col := range v.right {
		configs = append(configs, table.ColumnConfig{
			Number:      col + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
			AlignFooter: text.AlignRight,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// cells converts values to a row exactly as wide as the header.
func (v tableView) cells(values []string) table.Row {
	row := make(table.Row, len(v.headers))
	for i := range row {
		row[i] = ""
		if i < len(values) {
			row[i] = values[i]
		}
	}
	return row
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label  string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

// statusPrinter writes "label: [KIND] message" lines grouped under
// "== Title ==" headings, colored when out is a terminal.
type statusPrinter struct {
	out   io.Writer
	color bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, color: isTerminal(out)}
}

func (p *statusPrinter) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if p.color {
		heading = text.FgBlue.Sprint(heading)
		rule = text.FgBlue.Sprint(rule)
	}
	fmt.Fprintln(p.out, heading)
	fmt.Fprintln(p.out, rule)
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	tag := "[" + style.label + "]"
	if message != "" {
		tag += " " + message
	}
	line := fmt.Sprintf("  %-20s %s", label+":", tag)
	if p.color {
		line = style.colors.Sprint(line)
	}
	fmt.Fprintln(p.out, line)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
