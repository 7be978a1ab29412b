package main

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	passStyle   = cellStyle.Foreground(lipgloss.Color("42"))
	failStyle   = cellStyle.Foreground(lipgloss.Color("196")).Bold(true)
)

// renderTable draws rows under headers. A statusCol >= 0 colours PASS and
// FAIL cells in that column.
func renderTable(headers []string, rows [][]string, statusCol int) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				switch rows[row][col] {
				case "PASS":
					return passStyle
				case "FAIL":
					return failStyle
				}
			}
			return cellStyle
		}).
		String()
}

func printMetrics(metrics map[string]float64) {
	if len(metrics) == 0 {
		return
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %-16s %s\n", name, dimStyle.Render(fmt.Sprintf("%.6g", metrics[name])))
	}
}
