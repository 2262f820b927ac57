// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-engine/pkg/types"
)

// preprocessTables finds every Markdown pipe table in text and replaces it
// with either the table verbatim (if it fits within maxRowsVerbatim and
// maxColsVerbatim) or a compacted version: header + topKRows selected by
// descending value of the strongest numeric column, plus an aggregate note.
// Grounded on original_source/test_tables.py's expected note format;
// discrepancy with spec.md's exact note wording is resolved in spec.md's
// favor: "{shown}/{total} rows shown; selection=max by {col}; {col}:
// mean={…}, max={…}".
func preprocessTables(text string, maxRowsVerbatim, maxColsVerbatim, topKRows int) (processed string, preserved []types.MarkdownTable, compacted []types.CompactedTable) {
	tables := findMarkdownTables(text)
	if len(tables) == 0 {
		return text, nil, nil
	}

	processed = text
	for _, loc := range tables {
		table := parseMarkdownTable(loc.lines)
		var replacement string
		if len(table.Rows) <= maxRowsVerbatim && len(table.Header) <= maxColsVerbatim {
			preserved = append(preserved, table)
			replacement = loc.raw
		} else {
			ct := compactTable(table, topKRows)
			compacted = append(compacted, ct)
			replacement = renderCompactedTable(ct)
		}
		processed = strings.Replace(processed, loc.raw, replacement, 1)
	}
	return processed, preserved, compacted
}

type tableLocation struct {
	raw   string
	lines []string
}

// findMarkdownTables scans text for contiguous runs of Markdown pipe-table
// lines: a header row, a separator row (---), and zero or more body rows.
func findMarkdownTables(text string) []tableLocation {
	lines := strings.Split(text, "\n")
	var found []tableLocation

	i := 0
	for i < len(lines) {
		if isPipeLine(lines[i]) && i+1 < len(lines) && isSeparatorLine(lines[i+1]) {
			start := i
			end := i + 2
			for end < len(lines) && isPipeLine(lines[end]) {
				end++
			}
			block := lines[start:end]
			found = append(found, tableLocation{raw: strings.Join(block, "\n"), lines: block})
			i = end
			continue
		}
		i++
	}
	return found
}

func isPipeLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}

func isSeparatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") {
		return false
	}
	for _, cell := range splitRow(trimmed) {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		for _, r := range cell {
			if r != '-' && r != ':' {
				return false
			}
		}
	}
	return true
}

func splitRow(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(trimmed, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func parseMarkdownTable(lines []string) types.MarkdownTable {
	header := splitRow(lines[0])
	var rows [][]string
	for _, line := range lines[2:] {
		rows = append(rows, splitRow(line))
	}
	return types.MarkdownTable{Header: header, Rows: rows}
}

// compactTable keeps the header, selects topKRows rows by descending value
// in the strongest numeric column (the column with the highest fraction of
// numeric cells, ties broken by leftmost column per Open Question 2), and
// appends a note with the mean and max of that column computed across all
// rows.
func compactTable(table types.MarkdownTable, topKRows int) types.CompactedTable {
	col, values := strongestNumericColumn(table)
	if col < 0 {
		// No numeric column: keep the first topKRows rows as-is.
		rows := table.Rows
		if len(rows) > topKRows {
			rows = rows[:topKRows]
		}
		return types.CompactedTable{
			Header: table.Header,
			Rows:   rows,
			Note:   fmt.Sprintf("%d/%d rows shown; no numeric column found for selection", len(rows), len(table.Rows)),
		}
	}

	type indexedValue struct {
		rowIndex int
		value    float64
	}
	indexed := make([]indexedValue, 0, len(values))
	var sum, max, min float64
	first := true
	for idx, v := range values {
		indexed = append(indexed, indexedValue{rowIndex: idx, value: v})
		sum += v
		if first || v > max {
			max = v
		}
		if first || v < min {
			min = v
		}
		first = false
	}

	sort.SliceStable(indexed, func(i, j int) bool {
		if indexed[i].value != indexed[j].value {
			return indexed[i].value > indexed[j].value
		}
		return indexed[i].rowIndex < indexed[j].rowIndex
	})

	k := topKRows
	if k > len(indexed) {
		k = len(indexed)
	}
	selected := indexed[:k]
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].rowIndex < selected[j].rowIndex })

	rows := make([][]string, 0, len(selected))
	for _, iv := range selected {
		rows = append(rows, table.Rows[iv.rowIndex])
	}

	colName := ""
	if col < len(table.Header) {
		colName = table.Header[col]
	}
	mean := sum / float64(len(values))
	note := fmt.Sprintf("%d/%d rows shown; selection=max by %s; %s: mean=%s, max=%s",
		len(rows), len(table.Rows), colName, colName, formatFloat(mean), formatFloat(max))

	return types.CompactedTable{Header: table.Header, Rows: rows, Note: note}
}

// strongestNumericColumn returns the index of the column with the highest
// fraction of numeric cells (ties broken by leftmost column), and the
// parsed numeric value for every row that has one. Returns col=-1 if no
// column has any numeric cell.
func strongestNumericColumn(table types.MarkdownTable) (col int, values map[int]float64) {
	numCols := len(table.Header)
	bestCol := -1
	bestCount := 0
	bestValues := map[int]float64{}

	for c := 0; c < numCols; c++ {
		count := 0
		vals := map[int]float64{}
		for r, row := range table.Rows {
			if c >= len(row) {
				continue
			}
			if v, ok := parseNumeric(row[c]); ok {
				vals[r] = v
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestCol = c
			bestValues = vals
		}
	}
	if bestCount == 0 {
		return -1, nil
	}
	return bestCol, bestValues
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderCompactedTable(ct types.CompactedTable) string {
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(ct.Header, " | ") + " |\n")
	sep := make([]string, len(ct.Header))
	for i := range sep {
		sep[i] = "---"
	}
	sb.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range ct.Rows {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	sb.WriteString("> Note: " + ct.Note)
	return sb.String()
}
