package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func parseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// detectFormat picks table output for terminals and JSON when output is piped.
func detectFormat(explicit Format, w io.Writer) Format {
	if explicit != "" {
		return explicit
	}
	if f, ok := w.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return FormatJSON
	}
	return FormatTable
}

type printer struct {
	w      io.Writer
	format Format
}

func (c *CLI) printer() printer {
	format, _ := parseFormat(c.format)
	return printer{w: c.out, format: detectFormat(format, c.out)}
}

// Print writes data as JSON or YAML, or renders the table built by fill.
func (p printer) Print(data any, fill func(*table)) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)

	case FormatYAML:
		// Going through JSON keeps field names and embedded structs identical to the
		// JSON output and the HTTP API.
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		out, err := yaml.JSONToYAML(raw)
		if err != nil {
			return err
		}
		_, err = p.w.Write(out)
		return err

	default:
		t := &table{}
		fill(t)
		return t.render(p.w)
	}
}

// Message writes a plain line in table mode. Structured formats stay machine readable.
func (p printer) Message(format string, args ...any) {
	if p.format == FormatJSON || p.format == FormatYAML {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

type table struct {
	title   string
	headers []string
	rows    [][]string
	empty   string
	next    *table
}

// Title prints a line above the table.
func (t *table) Title(title string) { t.title = title }

// Header sets the column names.
func (t *table) Header(headers ...string) { t.headers = headers }

// Row appends a row.
func (t *table) Row(cells ...string) { t.rows = append(t.rows, cells) }

// Empty is printed instead of the table when there are no rows.
func (t *table) Empty(msg string) { t.empty = msg }

// Then starts a second table rendered below this one.
func (t *table) Then() *table {
	t.next = &table{}
	return t.next
}

func (t *table) render(w io.Writer) error {
	if t.title != "" {
		fmt.Fprintln(w, t.title)
	}

	if len(t.rows) == 0 && t.empty != "" {
		fmt.Fprintln(w, t.empty)
	} else if len(t.headers) > 0 || len(t.rows) > 0 {
		tw := tablewriter.NewTable(w)
		if len(t.headers) > 0 {
			headers := make([]any, len(t.headers))
			for i, h := range t.headers {
				headers[i] = h
			}
			tw.Header(headers...)
		}
		for _, row := range t.rows {
			cells := make([]any, len(row))
			for i, cell := range row {
				cells[i] = cell
			}
			if err := tw.Append(cells...); err != nil {
				return err
			}
		}
		if err := tw.Render(); err != nil {
			return err
		}
	}

	if t.next != nil {
		fmt.Fprintln(w)
		return t.next.render(w)
	}
	return nil
}
