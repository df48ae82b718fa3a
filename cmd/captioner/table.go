package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable lays rows out under headers with rounded borders. Short rows
// are padded; aligns may be shorter than headers.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(values []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
