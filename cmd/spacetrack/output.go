package main

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderRecords renders json rows as a table. Columns follow fields when
// given, otherwise every key seen, sorted.
func renderRecords(rows []map[string]interface{}, fields []string) string {
	columns := fields
	if len(columns) == 0 {
		seen := make(map[string]bool)
		for _, row := range rows {
			for k := range row {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
		}
		sort.Strings(columns)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i, c := range columns {
			if v, ok := row[c]; ok && v != nil {
				r[i] = fmt.Sprint(v)
			}
		}
		t.AppendRow(r)
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d rows", len(rows))})
	return t.Render() + "\n"
}
