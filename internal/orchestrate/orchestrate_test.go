// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/internal/rerank"
	"github.com/pdiddy/research-engine/pkg/types"
)

type fakeIntent struct{}

func (fakeIntent) Classify(ctx context.Context, query string) (types.IntentKind, bool) {
	return types.IntentInformational, true
}

type fakePlanner struct {
	plan types.ResearchPlan
	err  error
}

func (f fakePlanner) Plan(ctx context.Context, query types.Query) (types.ResearchPlan, error) {
	return f.plan, f.err
}

type fixedSearchProvider struct {
	results [][]types.SearchResult // one slice per call, consumed in order
	calls   int
}

func (f *fixedSearchProvider) Name() string { return "fixed" }

func (f *fixedSearchProvider) Search(ctx context.Context, query string, kind types.SearchKind, n int) []types.SearchResult {
	if f.calls >= len(f.results) {
		f.calls++
		return nil
	}
	r := f.results[f.calls]
	f.calls++
	return r
}

type identityURLReranker struct{}

func (identityURLReranker) Rerank(ctx context.Context, query string, items []rerank.Item, topK int) []rerank.Ranked {
	if topK > len(items) {
		topK = len(items)
	}
	out := make([]rerank.Ranked, topK)
	for i := 0; i < topK; i++ {
		out[i] = rerank.Ranked{Item: items[i], Score: 1.0 - float64(i)/float64(len(items))}
	}
	return out
}

type fixedScraper struct {
	byURL map[string]types.ScrapedContent
}

func (f *fixedScraper) ScrapeMany(ctx context.Context, urls []string, parallelism int) []types.ScrapedContent {
	out := make([]types.ScrapedContent, len(urls))
	for i, u := range urls {
		out[i] = f.byURL[u]
	}
	return out
}

func (f *fixedScraper) FallbackUsage() (int, int) { return 0, 0 }

type echoSummarizer struct{}

func (echoSummarizer) SummarizeMany(ctx context.Context, contents []types.ScrapedContent, query string, parallelism int) []types.Summary {
	out := make([]types.Summary, 0, len(contents))
	for _, c := range contents {
		if c.Empty() {
			continue
		}
		out = append(out, types.Summary{SourceURL: c.URL, Title: c.Title, Text: "summary of " + c.URL, Citations: map[string]struct{}{c.URL: {}}})
	}
	return out
}

type passthroughAssembler struct{}

func (passthroughAssembler) Assemble(ctx context.Context, query string, allSummaries []types.Summary) (types.ContextPackage, error) {
	scores := make(map[string]float64, len(allSummaries))
	for _, s := range allSummaries {
		scores[s.SourceURL] = 0.9
	}
	return types.ContextPackage{SelectedSummaries: allSummaries, Scores: scores}, nil
}

type oneShotAssembler struct {
	keep int
}

func (o oneShotAssembler) Assemble(ctx context.Context, query string, allSummaries []types.Summary) (types.ContextPackage, error) {
	n := o.keep
	if n > len(allSummaries) {
		n = len(allSummaries)
	}
	selected := allSummaries[:n]
	scores := make(map[string]float64, len(selected))
	for _, s := range selected {
		scores[s.SourceURL] = 0.9
	}
	return types.ContextPackage{SelectedSummaries: selected, Scores: scores, ExcludedCount: len(allSummaries) - n}, nil
}

type fixedReflector struct {
	results []types.ReflectionResult
	calls   int
}

func (f *fixedReflector) Reflect(ctx context.Context, query types.Query, plan types.ResearchPlan, summaries []types.Summary) types.ReflectionResult {
	if f.calls >= len(f.results) {
		f.calls++
		return types.ReflectionResult{Complete: true}
	}
	r := f.results[f.calls]
	f.calls++
	return r
}

type templateGateway struct{}

func (templateGateway) CompleteText(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (string, error) {
	n := strings.Count(prompt, "Source ")
	if n == 0 {
		return "## Overview\n\nNo sources were available.\n", nil
	}
	return "## Overview\n\nHTTP/3 uses QUIC [Source 1].\n", nil
}

func basePlan() types.ResearchPlan {
	return types.ResearchPlan{
		Sections:      []string{"Overview"},
		SearchQueries: []types.SearchQuery{{Text: "what is http/3", Purpose: "intro", Priority: 1}},
		Rationale:     "cover the basics",
	}
}

func baseCfg() types.Config {
	cfg := types.Config{MaxIterations: 1, TopKURL: 0.5, TopKSum: 0.5, SearchParallel: 2, ScrapeParallel: 2, SummaryParallel: 2, SearchResultsPerQuery: 4, ReportModel: "report-model"}
	cfg.ApplyDefaults()
	return cfg
}

func fourSearchResults() []types.SearchResult {
	return []types.SearchResult{
		{URL: "https://a.example/1", Title: "A", Rank: 1},
		{URL: "https://a.example/2", Title: "B", Rank: 2},
		{URL: "https://a.example/3", Title: "C", Rank: 3},
		{URL: "https://a.example/4", Title: "D", Rank: 4},
	}
}

// Scenario A — happy path, single iteration.
func TestRunHappyPathSingleIteration(t *testing.T) {
	cfg := baseCfg()
	search := &fixedSearchProvider{results: [][]types.SearchResult{fourSearchResults()}}
	scraper := &fixedScraper{byURL: map[string]types.ScrapedContent{
		"https://a.example/1": {URL: "https://a.example/1", Title: "A", MarkdownBody: "QUIC is a transport protocol."},
		"https://a.example/2": {URL: "https://a.example/2", Title: "B", MarkdownBody: "HTTP/3 runs over QUIC."},
	}}

	o := New(cfg, Deps{
		Intent:      fakeIntent{},
		Planner:     fakePlanner{plan: basePlan()},
		Search:      search,
		URLReranker: identityURLReranker{},
		Scraper:     scraper,
		Summarizer:  echoSummarizer{},
		Assembler:   oneShotAssembler{keep: 1},
		Reflector:   &fixedReflector{},
		Gateway:     templateGateway{},
	})

	report, err := o.Run(context.Background(), "What is HTTP/3?")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(report.Sections), 1)
	require.Len(t, report.Sources, 1)
	require.Contains(t, report.Sections[0].Body, "[Source 1]")
}

// Scenario B — reflection re-entry.
func TestRunReflectionReEntryRunsSearchTwice(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxIterations = 2
	search := &fixedSearchProvider{results: [][]types.SearchResult{
		fourSearchResults(),
		{{URL: "https://a.example/5", Title: "E", Rank: 1}},
	}}
	scraper := &fixedScraper{byURL: map[string]types.ScrapedContent{
		"https://a.example/1": {URL: "https://a.example/1", Title: "A", MarkdownBody: "QUIC is a transport protocol."},
		"https://a.example/2": {URL: "https://a.example/2", Title: "B", MarkdownBody: "HTTP/3 runs over QUIC."},
		"https://a.example/5": {URL: "https://a.example/5", Title: "E", MarkdownBody: "QUIC reduces handshake latency."},
	}}
	reflector := &fixedReflector{results: []types.ReflectionResult{
		{Complete: false, Gaps: []string{"latency numbers"}, AdditionalQueries: []types.SearchQuery{{Text: "http/3 latency", Priority: 1}}},
		{Complete: true},
	}}

	o := New(cfg, Deps{
		Intent:      fakeIntent{},
		Planner:     fakePlanner{plan: basePlan()},
		Search:      search,
		URLReranker: identityURLReranker{},
		Scraper:     scraper,
		Summarizer:  echoSummarizer{},
		Assembler:   passthroughAssembler{},
		Reflector:   reflector,
		Gateway:     templateGateway{},
	})

	report, err := o.Run(context.Background(), "What is HTTP/3?")
	require.NoError(t, err)
	require.Equal(t, 2, search.calls)
	require.GreaterOrEqual(t, len(report.Sources), 2)
}

// Scenario C — zero results.
func TestRunZeroResultsAbortsWithNoResults(t *testing.T) {
	cfg := baseCfg()
	search := &fixedSearchProvider{results: [][]types.SearchResult{{}}}
	scraper := &fixedScraper{byURL: map[string]types.ScrapedContent{}}

	o := New(cfg, Deps{
		Intent:      fakeIntent{},
		Planner:     fakePlanner{plan: basePlan()},
		Search:      search,
		URLReranker: identityURLReranker{},
		Scraper:     scraper,
		Summarizer:  echoSummarizer{},
		Assembler:   passthroughAssembler{},
		Reflector:   &fixedReflector{},
		Gateway:     templateGateway{},
	})

	_, err := o.Run(context.Background(), "What is HTTP/3?")
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrNoResults))
}

func TestRunPlanningFailurePropagates(t *testing.T) {
	cfg := baseCfg()
	o := New(cfg, Deps{
		Intent:  fakeIntent{},
		Planner: fakePlanner{err: types.ErrPlanningFailed},
		Gateway: templateGateway{},
	})

	_, err := o.Run(context.Background(), "What is HTTP/3?")
	require.True(t, errors.Is(err, types.ErrPlanningFailed))
}

func TestRunFallsBackToNoSourcesPromptWhenAssemblerSelectsNone(t *testing.T) {
	cfg := baseCfg()
	search := &fixedSearchProvider{results: [][]types.SearchResult{fourSearchResults()}}
	scraper := &fixedScraper{byURL: map[string]types.ScrapedContent{}}

	o := New(cfg, Deps{
		Intent:      fakeIntent{},
		Planner:     fakePlanner{plan: basePlan()},
		Search:      search,
		URLReranker: identityURLReranker{},
		Scraper:     scraper,
		Summarizer:  echoSummarizer{},
		Assembler:   passthroughAssembler{},
		Reflector:   &fixedReflector{},
		Gateway:     templateGateway{},
	})

	report, err := o.Run(context.Background(), "What is HTTP/3?")
	require.NoError(t, err)
	require.Empty(t, report.Sources)
}
