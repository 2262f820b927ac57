// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/pkg/types"
)

func TestPreprocessTablesKeepsSmallTableVerbatim(t *testing.T) {
	text := "Intro.\n\n| Name | Score |\n| --- | --- |\n| Alice | 9 |\n| Bob | 7 |\n\nOutro."
	processed, preserved, compacted := preprocessTables(text, 15, 8, 10)
	require.Contains(t, processed, "| Alice | 9 |")
	require.Len(t, preserved, 1)
	require.Empty(t, compacted)
}

func TestPreprocessTablesCompactsLargeTableWithExactNoteFormat(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("| ID | Accuracy |\n| --- | --- |\n")
	for i := 0; i < 20; i++ {
		sb.WriteString(fmt.Sprintf("| %d | %d |\n", i, i))
	}
	text := sb.String()

	_, preserved, compacted := preprocessTables(text, 15, 8, 10)
	require.Empty(t, preserved)
	require.Len(t, compacted, 1)

	ct := compacted[0]
	require.Len(t, ct.Rows, 10)
	require.Equal(t, "19", ct.Rows[len(ct.Rows)-1][1])
	require.Equal(t, "10/20 rows shown; selection=max by ID; ID: mean=9.50, max=19.00", ct.Note)
}

func TestStrongestNumericColumnTieBreaksLeftmostColumnOnEqualDensity(t *testing.T) {
	table := types.MarkdownTable{
		Header: []string{"A", "B"},
		Rows: [][]string{
			{"1", "5"},
			{"2", "6"},
		},
	}
	col, values := strongestNumericColumn(table)
	require.Equal(t, 0, col)
	require.Len(t, values, 2)
}

func TestPreprocessTablesLeavesTextWithoutTablesUnchanged(t *testing.T) {
	text := "Just prose, no pipes here."
	processed, preserved, compacted := preprocessTables(text, 15, 8, 10)
	require.Equal(t, text, processed)
	require.Empty(t, preserved)
	require.Empty(t, compacted)
}

func TestIsSeparatorLineRejectsNonSeparatorRows(t *testing.T) {
	require.True(t, isSeparatorLine("| --- | :--- |"))
	require.False(t, isSeparatorLine("| Alice | 9 |"))
}
