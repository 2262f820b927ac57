// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import "strings"

// directSummarizationChars is the size under which preprocessed content is
// summarized in a single prompt rather than map-reduced. Grounded on
// original_source/stages/summarizer.py's DIRECT_SUMMARIZATION_CHARS.
const directSummarizationChars = 50_000

// maxChunkChars bounds a single map-reduce chunk, leaving headroom in the
// model's context window for the source-grounding prefix and instructions.
const maxChunkChars = 12_000

// chunkOverlapChars is carried from the tail of one chunk into the head of
// the next so summaries don't lose context at a chunk boundary.
const chunkOverlapChars = 500

// chunkContent splits text into chunks of about maxChunkChars, preferring
// paragraph boundaries (blank-line-separated) and falling back to sentence
// boundaries for any paragraph that alone exceeds the limit. A piece that
// still exceeds the limit after sentence splitting (a single pathologically
// long sentence) is hard-split into maxChunkChars pieces as a last resort.
// Every chunk after the first starts with the previous chunk's trailing
// chunkOverlapChars, so a chunk can be longer than maxChunkChars by that
// overlap.
// Grounded on original_source/stages/summarizer.py's _chunk_content.
func chunkContent(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var pieces []string
	for _, p := range paragraphs {
		if len(p) <= maxChunkChars {
			pieces = append(pieces, p)
			continue
		}
		pieces = append(pieces, splitBySentence(p)...)
	}

	return packIntoChunks(pieces)
}

// splitBySentence splits an oversized paragraph on ". " boundaries, and
// hard-splits any resulting piece still over maxChunkChars into
// maxChunkChars-sized pieces, keeping all of its text.
func splitBySentence(paragraph string) []string {
	sentences := strings.Split(paragraph, ". ")
	var out []string
	for i, s := range sentences {
		if i < len(sentences)-1 {
			s += "."
		}
		if len(s) > maxChunkChars {
			for len(s) > maxChunkChars {
				out = append(out, s[:maxChunkChars])
				s = s[maxChunkChars:]
			}
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// packIntoChunks greedily accumulates pieces (paragraphs or sentences) into
// chunks up to maxChunkChars, carrying a trailing-overlap seed forward into
// the next chunk.
func packIntoChunks(pieces []string) []string {
	var chunks []string
	var current strings.Builder
	var overlap string

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		if len(chunk) > chunkOverlapChars {
			overlap = chunk[len(chunk)-chunkOverlapChars:]
		} else {
			overlap = chunk
		}
		current.Reset()
	}

	for _, p := range pieces {
		if p == "" {
			continue
		}
		if current.Len() == 0 && overlap != "" {
			current.WriteString(overlap)
			current.WriteString("\n\n")
		}
		if current.Len()+len(p) > maxChunkChars && current.Len() > 0 {
			flush()
			current.WriteString(overlap)
			current.WriteString("\n\n")
		}
		current.WriteString(p)
		current.WriteString("\n\n")
	}
	flush()

	return chunks
}
