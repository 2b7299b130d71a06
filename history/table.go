// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package history

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1).Align(lipgloss.Center)
	highlightStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#A0307A", Dark: "#F0A0D0"})
	tableBorderColor = "#705090"
)

// Table is a terminal table in the style of the training reports, where rows can be highlighted.
type Table struct {
	table       *lgtable.Table
	alignments  []lipgloss.Position
	highlighted []bool
}

// NewTable creates a table with the given headers. Without headers, it renders only the rows.
func NewTable(headers ...string) *Table {
	t := &Table{}
	t.table = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(t.style)
	if len(headers) > 0 {
		t.table.Headers(headers...)
	}
	return t
}

// Align sets the alignment of the columns, the last one given is used for the remaining columns.
// The default is left aligned.
func (t *Table) Align(alignments ...lipgloss.Position) *Table {
	t.alignments = alignments
	return t
}

// Row appends a row of cells. Highlighted rows are rendered in bold and color.
func (t *Table) Row(highlight bool, cells ...string) *Table {
	t.highlighted = append(t.highlighted, highlight)
	t.table.Row(cells...)
	return t
}

// Len returns the number of rows, not counting the headers.
func (t *Table) Len() int {
	return len(t.highlighted)
}

// Highlighted returns whether the row was highlighted.
func (t *Table) Highlighted(row int) bool {
	return row >= 0 && row < len(t.highlighted) && t.highlighted[row]
}

// String renders the table.
func (t *Table) String() string {
	return t.table.String()
}

func (t *Table) style(row, col int) lipgloss.Style {
	if row == lgtable.HeaderRow {
		return headerStyle
	}
	style := cellStyle
	if t.Highlighted(row) {
		style = highlightStyle
	}
	if len(t.alignments) > 0 {
		style = style.Align(t.alignments[min(col, len(t.alignments)-1)])
	}
	return style
}
