// Package formatter renders aligned markdown tables for dataset cards.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const minColumnWidth = 3

// FormatMarkdown re-aligns every pipe table found in content. Lines outside
// tables are left untouched.
func FormatMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	var table []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			table = append(table, line)
			continue
		}

		if len(table) > 0 {
			out = append(out, alignTable(table)...)
			table = nil
		}

		out = append(out, line)
	}

	if len(table) > 0 {
		out = append(out, alignTable(table)...)
	}

	return strings.Join(out, "\n")
}

// Table builds an aligned markdown table. Cells are flattened to one line,
// pipes are escaped and anything wider than maxWidth display columns is
// truncated with an ellipsis (maxWidth <= 0 disables truncation).
func Table(headers []string, rows [][]string, maxWidth int) string {
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, joinRow(headers, maxWidth))

	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}

	lines = append(lines, joinRow(sep, 0))

	for _, row := range rows {
		lines = append(lines, joinRow(row, maxWidth))
	}

	return strings.Join(alignTable(lines), "\n")
}

func joinRow(cells []string, maxWidth int) string {
	clean := make([]string, len(cells))
	for i, c := range cells {
		clean[i] = cleanCell(c, maxWidth)
	}

	return "| " + strings.Join(clean, " | ") + " |"
}

func cleanCell(s string, maxWidth int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxWidth > 0 {
		s = runewidth.Truncate(s, maxWidth, "…")
	}

	return strings.ReplaceAll(s, "|", `\|`)
}

func alignTable(lines []string) []string {
	// a table needs at least a header and a separator
	if len(lines) < 2 {
		return lines
	}

	cells := make([][]string, len(lines))
	for i, line := range lines {
		cells[i] = splitRow(line)
	}

	sepIdx := -1
	if isSeparatorRow(cells[1]) {
		sepIdx = 1
	}

	widths := columnWidths(cells, sepIdx)

	out := make([]string, len(cells))
	for i, row := range cells {
		out[i] = renderRow(row, widths, i == sepIdx)
	}

	return out
}

// splitRow splits on unescaped pipes and trims each cell.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")

	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}

	var (
		cells []string
		cur   strings.Builder
	)

	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteString(`\|`)
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparatorRow(row []string) bool {
	for _, cell := range row {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}

	return true
}

func columnWidths(rows [][]string, sepIdx int) []int {
	count := 0
	for _, row := range rows {
		count = max(count, len(row))
	}

	widths := make([]int, count)
	for i := range widths {
		widths[i] = minColumnWidth
	}

	for r, row := range rows {
		if r == sepIdx {
			continue
		}

		for c, cell := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	return widths
}

func renderRow(row []string, widths []int, separator bool) string {
	var sb strings.Builder

	sb.WriteString("|")

	for c, width := range widths {
		sb.WriteString(" ")

		if separator {
			sb.WriteString(strings.Repeat("-", width))
		} else {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}

			sb.WriteString(runewidth.FillRight(cell, width))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
