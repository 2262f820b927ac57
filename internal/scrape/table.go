// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tableToMarkdown converts one <table> selection into a Markdown pipe table.
// Cells longer than cellMaxChars are truncated with an ellipsis; this is a
// scraper-time safeguard against pathologically wide cells reaching the
// summarizer, independent of the summarizer's own row/column compaction.
// Rowspan/colspan are not honored; nested tables are flattened to text.
func tableToMarkdown(table *goquery.Selection, cellMaxChars int) string {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return ""
	}

	var header []string
	bodyStart := 0
	if thead := table.Find("thead"); thead.Length() > 0 {
		ths := thead.Find("th")
		ths.Each(func(_ int, th *goquery.Selection) {
			header = append(header, sanitizeCell(th.Text(), cellMaxChars))
		})
	}
	if len(header) == 0 {
		first := rows.Eq(0)
		first.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			header = append(header, sanitizeCell(cell.Text(), cellMaxChars))
		})
		bodyStart = 1
	}

	colCount := 1
	if len(header) > colCount {
		colCount = len(header)
	}

	var lines []string
	headerLine := "| " + strings.Join(padTo(header, colCount), " | ") + " |"
	sepLine := "| " + strings.Join(repeat("---", colCount), " | ") + " |"
	lines = append(lines, headerLine, sepLine)

	rows.Each(func(i int, row *goquery.Selection) {
		if i < bodyStart {
			return
		}
		var cells []string
		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, sanitizeCell(cell.Text(), cellMaxChars))
		})
		if len(cells) == 0 {
			return
		}
		lines = append(lines, "| "+strings.Join(padTo(cells, colCount), " | ")+" |")
	})

	return strings.Join(lines, "\n")
}

func sanitizeCell(text string, maxChars int) string {
	fields := strings.Fields(text)
	s := strings.Join(fields, " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if maxChars > 0 && len(s) > maxChars {
		s = s[:maxChars] + "…"
	}
	return s
}

func padTo(cells []string, n int) []string {
	out := make([]string, n)
	copy(out, cells)
	for i := len(cells); i < n; i++ {
		out[i] = ""
	}
	if len(cells) > n {
		out = cells[:n]
	}
	return out
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
