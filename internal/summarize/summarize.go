// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize implements the Summarizer component: map-reduce,
// table-aware summarization of scraped content with content-type model
// routing. Implements spec §4.8.
//
// Grounded on original_source/stages/summarizer.py: the direct-vs-chunked
// branch point and the per-chunk prompt shape carry over; the table
// preprocessing in tables.go and chunking in chunk.go are the Go-native
// reimplementation of _find_tables/_compact_table and _chunk_content. Per
// the original's prompts, a summary never carries a baked-in source number —
// "[Source N]" citations are assigned once, fresh, when the report is
// generated from the final selected summaries.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-engine/internal/classify"
	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/internal/logging"
	"github.com/pdiddy/research-engine/pkg/types"
)

// Summarizer turns one ScrapedContent into a types.Summary.
type Summarizer struct {
	gateway *llmgateway.Gateway
	cfg     types.Config
	logger  *zap.Logger
}

// New builds a Summarizer wired to gateway for completions. A nil logger
// defaults to a no-op logger so callers can omit it in tests.
func New(cfg types.Config, gateway *llmgateway.Gateway, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{gateway: gateway, cfg: cfg, logger: logger}
}

// Summarize produces a Summary for content in the context of query. Each
// LLM failure is logged as a structured stage error. A failed map-reduce
// chunk is skipped; when no summary can be produced it returns ok=false,
// and the caller is expected to continue the pipeline rather than fail the
// whole batch (spec §4.8).
func (s *Summarizer) Summarize(ctx context.Context, content types.ScrapedContent, query string) (types.Summary, bool) {
	if content.Empty() {
		return types.Summary{}, false
	}

	contentType := classify.Classify(content.URL)
	model := s.routeModel(contentType)

	text := content.MarkdownBody
	var preserved []types.MarkdownTable
	var compacted []types.CompactedTable
	if s.cfg.EnableTableAware {
		text, preserved, compacted = preprocessTables(text, s.cfg.TableMaxRowsVerbatim, s.cfg.TableMaxColsVerbatim, s.cfg.TableTopKRows)
	}

	var summary string
	var ok bool
	if len(text) <= directSummarizationChars {
		summary, ok = s.summarizeDirect(ctx, text, query, content, model)
	} else {
		summary, ok = s.summarizeMapReduce(ctx, text, query, content, model)
	}
	if !ok {
		return types.Summary{}, false
	}

	return types.Summary{
		SourceURL:       content.URL,
		Title:           content.Title,
		Text:            summary,
		Citations:       map[string]struct{}{content.URL: {}},
		ContentType:     contentType,
		PreservedTables: preserved,
		CompactedTables: compacted,
	}, true
}

// SummarizeMany summarizes contents with bounded concurrency, in the
// content-type model-routing and table-aware modes configured on s. Contents
// that fail to summarize are dropped (Summarize logs each failure); order among the survivors
// matches input order (spec §4.8: a per-content LLM failure does not fail
// the batch).
func (s *Summarizer) SummarizeMany(ctx context.Context, contents []types.ScrapedContent, query string, parallelism int) []types.Summary {
	if parallelism < 1 {
		parallelism = 1
	}
	results := make([]*types.Summary, len(contents))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, content := range contents {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, content types.ScrapedContent) {
			defer wg.Done()
			defer func() { <-sem }()
			summary, ok := s.Summarize(ctx, content, query)
			if ok {
				results[i] = &summary
			}
		}(i, content)
	}
	wg.Wait()

	out := make([]types.Summary, 0, len(contents))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// routeModel implements the fallback chain content-specific model →
// mrs_general → mrs_default.
func (s *Summarizer) routeModel(ct types.ContentType) string {
	specific := map[types.ContentType]string{
		types.ContentCode:          s.cfg.MRSCode,
		types.ContentResearch:      s.cfg.MRSResearch,
		types.ContentNews:          s.cfg.MRSNews,
		types.ContentDocumentation: s.cfg.MRSDocumentation,
	}[ct]
	if specific != "" {
		return specific
	}
	if s.cfg.MRSGeneral != "" {
		return s.cfg.MRSGeneral
	}
	return s.cfg.MRSDefault
}

func (s *Summarizer) summarizeDirect(ctx context.Context, text, query string, content types.ScrapedContent, model string) (string, bool) {
	prompt := groundingPrefix() + directPrompt(query, content, text)
	out, err := s.gateway.CompleteText(ctx, prompt, model, 0.3, 1500)
	if err != nil {
		logging.StageError(s.logger, "summarize", content.URL, types.ErrLLMUnavailable, err)
		return "", false
	}
	return out, true
}

func (s *Summarizer) summarizeMapReduce(ctx context.Context, text, query string, content types.ScrapedContent, model string) (string, bool) {
	chunks := chunkContent(text)
	if len(chunks) == 0 {
		return "", false
	}

	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := groundingPrefix() + chunkPrompt(query, content, i+1, len(chunks), chunk)
		out, err := s.gateway.CompleteText(ctx, prompt, model, 0.3, 800)
		if err != nil {
			logging.StageError(s.logger, "summarize", content.URL, types.ErrLLMUnavailable, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err))
			continue
		}
		chunkSummaries = append(chunkSummaries, out)
	}
	if len(chunkSummaries) == 0 {
		return "", false
	}

	reducePrompt := groundingPrefix() + reducePrompt(query, content, chunkSummaries)
	final, err := s.gateway.CompleteText(ctx, reducePrompt, model, 0.3, 1500)
	if err != nil {
		logging.StageError(s.logger, "summarize", content.URL, types.ErrLLMUnavailable, err)
		return "", false
	}
	return final, true
}

// groundingPrefix is prepended to every summarization prompt per spec §4.8:
// trust the source over prior knowledge, never add temporal qualifiers the
// source doesn't state, and quote when in doubt. The current UTC date is
// included so the model can reason about recency correctly.
func groundingPrefix() string {
	return fmt.Sprintf(
		"Today's date is %s (UTC). Trust the source text below over any prior knowledge you have. "+
			"Never add a temporal qualifier (\"recently\", \"as of today\", a specific date) unless the source itself states it. "+
			"When uncertain about a detail, quote the source directly rather than paraphrasing.\n\n",
		time.Now().UTC().Format("2006-01-02"),
	)
}

func directPrompt(query string, content types.ScrapedContent, text string) string {
	return fmt.Sprintf(
		"Research query: %s\nSource: %s\nURL: %s\n\nSummarize the following content, focused on information relevant to the query. Preserve any Markdown tables verbatim.\n\n%s",
		query, content.Title, content.URL, text,
	)
}

func chunkPrompt(query string, content types.ScrapedContent, chunkID, totalChunks int, chunk string) string {
	return fmt.Sprintf(
		"Research query: %s\nSource: %s\nURL: %s\nChunk %d of %d.\n\nSummarize this chunk, focused on information relevant to the query. Preserve any Markdown tables verbatim.\n\n%s",
		query, content.Title, content.URL, chunkID, totalChunks, chunk,
	)
}

func reducePrompt(query string, content types.ScrapedContent, chunkSummaries []string) string {
	var sb strings.Builder
	for i, cs := range chunkSummaries {
		sb.WriteString(fmt.Sprintf("Chunk %d summary:\n%s\n\n", i+1, cs))
	}
	return fmt.Sprintf(
		"Research query: %s\nSource: %s\nURL: %s\n\nCombine the following chunk summaries into one coherent summary of the source, focused on the query. Preserve any retained Markdown tables verbatim. Remove redundancy between chunks.\n\n%s",
		query, content.Title, content.URL, sb.String(),
	)
}
