package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// printer renders command results as a table, JSON or YAML
type printer struct {
	w      io.Writer
	format string
}

func validFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

// print writes data in JSON or YAML, or calls table for table output
func (p printer) print(data interface{}, table func()) error {
	switch p.format {
	case formatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(p.w, string(out))
		return err
	case formatYAML:
		// Round trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = fmt.Fprint(p.w, string(out))
		return err
	default:
		table()
		return nil
	}
}

func (p printer) properties(rows [][]string) {
	table := tablewriter.NewWriter(p.w)
	table.SetHeader([]string{"Property", "Value"})
	configureTable(table)
	table.AppendBulk(rows)
	table.Render()
}

func (p printer) list(header string, values []string) {
	table := tablewriter.NewWriter(p.w)
	table.SetHeader([]string{"#", header})
	configureTable(table)
	for i, v := range values {
		table.Append([]string{fmt.Sprintf("%d", i+1), v})
	}
	table.Render()
}

func (p printer) success(message string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(p.w, message+"\n", args...)
}

func (p printer) failure(message string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(p.w, message+"\n", args...)
}

func (p printer) warning(message string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(p.w, message+"\n", args...)
}

func configureTable(table *tablewriter.Table) {
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
}
