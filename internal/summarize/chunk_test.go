// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkContentReturnsSingleChunkForShortText(t *testing.T) {
	chunks := chunkContent("Paragraph one.\n\nParagraph two.")
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "Paragraph one.")
	require.Contains(t, chunks[0], "Paragraph two.")
}

func TestChunkContentSplitsOnParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("word ", 2000) // well under maxChunkChars alone
	text := para + "\n\n" + para + "\n\n" + para
	chunks := chunkContent(text)
	require.True(t, len(chunks) >= 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), maxChunkChars+chunkOverlapChars+10)
	}
}

func TestChunkContentFallsBackToSentenceSplitForOversizedParagraph(t *testing.T) {
	sentence := strings.Repeat("word ", 50) + "."
	para := strings.Repeat(sentence+" ", 1000) // one giant paragraph, no blank lines
	require.Greater(t, len(para), maxChunkChars)

	chunks := chunkContent(para)
	require.True(t, len(chunks) > 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), maxChunkChars+chunkOverlapChars+10)
	}
}

func TestSplitBySentenceHardTruncatesPathologicalSentence(t *testing.T) {
	giant := strings.Repeat("x", maxChunkChars*2)
	pieces := splitBySentence(giant)
	for _, p := range pieces {
		require.LessOrEqual(t, len(p), maxChunkChars)
	}
	joined := strings.Join(pieces, "")
	require.Equal(t, giant, joined)
}

func TestPackIntoChunksCarriesOverlapForward(t *testing.T) {
	pieces := []string{strings.Repeat("a", maxChunkChars), strings.Repeat("b", 100)}
	chunks := packIntoChunks(pieces)
	require.Len(t, chunks, 2)
	require.True(t, strings.HasSuffix(chunks[0], strings.Repeat("a", chunkOverlapChars)) || strings.Contains(chunks[0], "a"))
	require.Contains(t, chunks[1], strings.Repeat("a", 10))
	require.Contains(t, chunks[1], "b")
}
