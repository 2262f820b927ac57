// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate implements the pipeline state machine: the top-level
// control flow connecting every other stage into one research run.
// Implements spec §4.13.
//
// Grounded on original_source/pipeline.py's ResearchPipeline.run (iteration
// bookkeeping, the per-iteration stage order, the NoResults hard-failure
// rule, report generation and file writing), re-expressed per the design
// notes' "express as an explicit finite state machine, not nested callbacks"
// guidance: each state is its own method rather than one long function with
// nested try/excepts. Concurrency fan-out generalizes the teacher's
// internal/search/search.go bounded-goroutine pattern to all three bounded
// stages.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-engine/internal/logging"
	"github.com/pdiddy/research-engine/internal/rerank"
	"github.com/pdiddy/research-engine/pkg/types"
)

// errCitationOutOfRange marks a "[Source N]" citation in the generated
// report that does not resolve to any selected summary.
var errCitationOutOfRange = errors.New("citation out of range")

// The following interfaces name only the methods the Orchestrator calls.
// Every concrete stage type (internal/plan.Planner, internal/scrape.Scraper,
// internal/summarize.Summarizer, ...) already satisfies its interface by
// structure; tests substitute fakes without any adapter boilerplate.

type intentClassifier interface {
	Classify(ctx context.Context, query string) (types.IntentKind, bool)
}

type planner interface {
	Plan(ctx context.Context, query types.Query) (types.ResearchPlan, error)
}

type searchProvider interface {
	Name() string
	Search(ctx context.Context, query string, kind types.SearchKind, n int) []types.SearchResult
}

type scraper interface {
	ScrapeMany(ctx context.Context, urls []string, parallelism int) []types.ScrapedContent
	FallbackUsage() (fallback1, fallback2 int)
}

type summarizer interface {
	SummarizeMany(ctx context.Context, contents []types.ScrapedContent, query string, parallelism int) []types.Summary
}

type assembler interface {
	Assemble(ctx context.Context, query string, allSummaries []types.Summary) (types.ContextPackage, error)
}

type reflector interface {
	Reflect(ctx context.Context, query types.Query, plan types.ResearchPlan, summaries []types.Summary) types.ReflectionResult
}

type claimExtractor interface {
	Extract(ctx context.Context, reportText string, sources []types.SearchResult) []types.ExtractedClaim
}

type claimVerifier interface {
	VerifyAllWithThreshold(ctx context.Context, claims []types.ExtractedClaim, sources []types.SearchResult, threshold float64) types.VerificationSummary
}

type reportGateway interface {
	CompleteText(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (string, error)
}

// Orchestrator wires every stage together and drives the iterative research
// loop described in spec §4.13's state diagram.
type Orchestrator struct {
	cfg types.Config

	intent       intentClassifier
	plan         planner
	search       searchProvider
	urlReranker  rerank.Reranker
	scrape       scraper
	summarize    summarizer
	assemble     assembler
	reflect      reflector
	claims       claimExtractor
	verify       claimVerifier
	gateway      reportGateway

	logger   *zap.Logger
	progress io.Writer

	now func() time.Time
}

// Deps bundles the concrete stage implementations New wires into an
// Orchestrator. URLReranker may be nil: results then keep their search
// order and are truncated to ceil(top_k_url * n) without reranking. Claims
// and Verifier are only called when cfg.VerifyClaims is set. A nil Logger
// defaults to a no-op logger, and a nil Progress disables progress output.
// Every other field is required.
type Deps struct {
	Intent      intentClassifier
	Planner     planner
	Search      searchProvider
	URLReranker rerank.Reranker
	Scraper     scraper
	Summarizer  summarizer
	Assembler   assembler
	Reflector   reflector
	Claims      claimExtractor
	Verifier    claimVerifier
	Gateway     reportGateway
	Logger      *zap.Logger
	Progress    io.Writer
}

// New builds an Orchestrator from cfg and its wired stage dependencies. A
// nil Logger defaults to a no-op logger so tests can omit it.
func New(cfg types.Config, d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:         cfg,
		intent:      d.Intent,
		plan:        d.Planner,
		search:      d.Search,
		urlReranker: d.URLReranker,
		scrape:      d.Scraper,
		summarize:   d.Summarizer,
		assemble:    d.Assembler,
		reflect:     d.Reflector,
		claims:      d.Claims,
		verify:      d.Verifier,
		gateway:     d.Gateway,
		logger:      logger,
		progress:    d.Progress,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run drives one complete pipeline execution for queryText, per the
// START -> CLASSIFY -> PLAN -> RESEARCH_LOOP -> ASSEMBLE -> REPORT -> VERIFY?
// -> DONE state diagram in spec §4.13.
func (o *Orchestrator) Run(ctx context.Context, queryText string) (types.Report, error) {
	query := o.classify(ctx, queryText)
	o.printf("intent: %s\n", query.Intent)

	researchPlan, err := o.plan.Plan(ctx, query)
	if err != nil {
		return types.Report{}, err
	}
	o.printf("plan created with %d sections, %d initial queries\n", len(researchPlan.Sections), len(researchPlan.SearchQueries))

	run, err := o.researchLoop(ctx, query, researchPlan)
	if err != nil {
		return types.Report{}, err
	}

	ctxPkg, err := o.assemble.Assemble(ctx, query.Text, run.summaries)
	if err != nil {
		logging.StageError(o.logger, "assemble", query.Text, types.ErrEmbeddingUnavailable, err)
		ctxPkg = types.ContextPackage{SelectedSummaries: run.summaries}
	}

	report, err := o.generateReport(ctx, query, run.plan, ctxPkg, run.finalReflection)
	if err != nil {
		return types.Report{}, err
	}

	if o.cfg.VerifyClaims {
		o.verifyReport(ctx, &report)
	}

	return report, nil
}

// classify assigns the query's intent, defaulting to general with a
// WARNING on any classifier failure (spec §4.11).
func (o *Orchestrator) classify(ctx context.Context, queryText string) types.Query {
	intent, ok := o.intent.Classify(ctx, queryText)
	if !ok {
		o.logger.Warn("intent classification failed, defaulting to general",
			zap.String("stage", "classify"), zap.String("item_identifier", queryText), zap.Error(types.ErrLLMUnavailable))
	}
	return types.Query{Text: queryText, Intent: intent}
}

// researchState accumulates the cross-iteration state the loop builds up:
// every summary produced so far, every URL seen (for cross-iteration
// dedup), and the plan/reflection that were in effect at the end of the
// last iteration actually run.
type researchState struct {
	summaries       []types.Summary
	seenURLs        map[string]bool
	plan            types.ResearchPlan
	finalReflection *types.ReflectionResult
}

func (o *Orchestrator) researchLoop(ctx context.Context, query types.Query, initialPlan types.ResearchPlan) (researchState, error) {
	state := researchState{seenURLs: make(map[string]bool), plan: initialPlan}
	currentQueries := initialPlan.SearchQueries
	intent := query.Intent

	for iteration := 1; iteration <= o.maxIterations(); iteration++ {
		o.printf("iteration %d/%d\n", iteration, o.maxIterations())

		newResults := o.searchStage(ctx, currentQueries, intent)
		newResults = o.dedupeAgainstSeen(newResults, state.seenURLs)

		if iteration == 1 && len(newResults) == 0 && len(state.summaries) == 0 {
			return state, fmt.Errorf("no search results for any planned query: %w", types.ErrNoResults)
		}

		newResults = o.urlRerankStage(ctx, query.Text, newResults)
		scraped := o.scrapeStage(ctx, newResults)
		summaries := o.summarizeStage(ctx, scraped, query.Text)
		state.summaries = append(state.summaries, summaries...)

		reflection := o.reflect.Reflect(ctx, query, state.plan, state.summaries)
		state.finalReflection = &reflection

		if reflection.Complete || iteration == o.maxIterations() {
			break
		}
		if len(reflection.AdditionalQueries) == 0 {
			break
		}

		o.logger.Warn("reflection found gaps, starting another iteration",
			zap.String("stage", "reflect"), zap.Int("iteration", iteration+1), zap.Int("gap_count", len(reflection.Gaps)))

		state.plan = types.ResearchPlan{
			Query:         query,
			Sections:      state.plan.Sections,
			SearchQueries: reflection.AdditionalQueries,
			Rationale:     fmt.Sprintf("iteration %d: %s", iteration+1, reflection.Rationale),
		}
		currentQueries = reflection.AdditionalQueries
	}

	return state, nil
}

func (o *Orchestrator) maxIterations() int {
	if o.cfg.MaxIterations < 1 {
		return 1
	}
	return o.cfg.MaxIterations
}

// searchStage runs every query in this iteration's plan with bounded
// concurrency, preserving per-query rank ordering in the flattened result.
func (o *Orchestrator) searchStage(ctx context.Context, queries []types.SearchQuery, intent types.IntentKind) []types.SearchResult {
	kind := types.KindForIntent(intent)
	parallel := o.cfg.SearchParallel
	if parallel < 1 {
		parallel = 1
	}

	perQuery := make([][]types.SearchResult, len(queries))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, q types.SearchQuery) {
			defer wg.Done()
			defer func() { <-sem }()
			perQuery[i] = o.search.Search(ctx, q.Text, kind, o.cfg.SearchResultsPerQuery)
		}(i, q)
	}
	wg.Wait()

	var flat []types.SearchResult
	for _, results := range perQuery {
		flat = append(flat, results...)
	}
	o.printf("found %d search results across %d queries\n", len(flat), len(queries))
	return flat
}

// dedupeAgainstSeen drops any result whose canonical URL was already seen
// in a prior iteration (or earlier in this one), keeping the first-seen
// rank per spec §4.13.
func (o *Orchestrator) dedupeAgainstSeen(results []types.SearchResult, seen map[string]bool) []types.SearchResult {
	out := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		canonical := types.CanonicalURL(r.URL)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, r)
	}
	return out
}

// urlRerankStage reorders this iteration's new results and truncates to
// ceil(top_k_url * n), per spec §4.13/§4.7.
func (o *Orchestrator) urlRerankStage(ctx context.Context, query string, results []types.SearchResult) []types.SearchResult {
	if len(results) == 0 {
		return results
	}

	topK := int(math.Ceil(o.cfg.TopKURL * float64(len(results))))
	if topK < 1 {
		topK = 1
	}
	if o.urlReranker == nil {
		return results[:minInt(topK, len(results))]
	}

	items := make([]rerank.Item, len(results))
	for i, r := range results {
		items[i] = rerank.Item{Text: r.Title + "\n" + r.Snippet, Ref: r}
	}

	ranked := o.urlReranker.Rerank(ctx, query, items, topK)

	out := make([]types.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		if sr, ok := r.Item.Ref.(types.SearchResult); ok {
			out = append(out, sr)
		}
	}
	if len(out) == 0 {
		return results[:minInt(topK, len(results))]
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (o *Orchestrator) scrapeStage(ctx context.Context, results []types.SearchResult) []types.ScrapedContent {
	if len(results) == 0 {
		return nil
	}
	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}
	scraped := o.scrape.ScrapeMany(ctx, urls, o.parallelOrOne(o.cfg.ScrapeParallel))

	fallback1, fallback2 := o.scrape.FallbackUsage()
	if fallback1 > 0 || fallback2 > 0 {
		o.printf("scraper fallback usage: tier1=%d tier2=%d\n", fallback1, fallback2)
	}
	return scraped
}

func (o *Orchestrator) summarizeStage(ctx context.Context, scraped []types.ScrapedContent, query string) []types.Summary {
	nonEmpty := make([]types.ScrapedContent, 0, len(scraped))
	for _, c := range scraped {
		if c.Empty() {
			continue
		}
		nonEmpty = append(nonEmpty, c)
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	summaries := o.summarize.SummarizeMany(ctx, nonEmpty, query, o.parallelOrOne(o.cfg.SummaryParallel))
	o.printf("generated %d summaries\n", len(summaries))
	return summaries
}

func (o *Orchestrator) parallelOrOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func (o *Orchestrator) printf(format string, args ...any) {
	if o.progress == nil {
		return
	}
	fmt.Fprintf(o.progress, format, args...)
}

var citationRef = regexp.MustCompile(`\[Source (\d+)\]`)

// generateReport issues the final report-writing LLM call given the
// assembled context, splits the Markdown response into titled sections, and
// validates every "[Source N]" citation against the selected summaries
// (spec invariant 1), logging a WARNING for any citation that resolves to
// nothing rather than failing the run.
func (o *Orchestrator) generateReport(ctx context.Context, query types.Query, plan types.ResearchPlan, ctxPkg types.ContextPackage, reflection *types.ReflectionResult) (types.Report, error) {
	prompt := reportPrompt(query, plan, ctxPkg.SelectedSummaries, o.now())

	content, err := o.gateway.CompleteText(ctx, prompt, o.cfg.ReportModel, 0.2, o.cfg.ReportMaxTokens)
	if err != nil {
		return types.Report{}, fmt.Errorf("generating report: %w", err)
	}

	sources := make([]types.SearchResult, len(ctxPkg.SelectedSummaries))
	for i, s := range ctxPkg.SelectedSummaries {
		sources[i] = types.SearchResult{URL: s.SourceURL, Title: s.Title, Rank: i + 1}
	}
	o.validateCitations(content, len(sources))

	report := types.Report{
		Query:       query,
		Intent:      query.Intent,
		Sections:    splitSections(content),
		Sources:     sources,
		GeneratedAt: o.now(),
		Metadata: map[string]any{
			"num_sources": len(sources),
			"sections":    plan.Sections,
		},
	}

	if reflection != nil {
		report.Metadata["research_complete"] = reflection.Complete
		if !reflection.Complete {
			report.Limitations = limitationsText(reflection)
		}
	}

	return report, nil
}

func (o *Orchestrator) validateCitations(content string, sourceCount int) {
	for _, m := range citationRef.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > sourceCount {
			o.logger.Warn("stage error",
				zap.String("stage", "report"), zap.String("item_identifier", m[0]), zap.Error(errCitationOutOfRange),
				zap.NamedError("cause", fmt.Errorf("citation %s resolves to nothing among %d selected sources", m[0], sourceCount)))
		}
	}
}

func limitationsText(reflection *types.ReflectionResult) string {
	if len(reflection.Gaps) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("This report was generated with the maximum number of research iterations, but the following information gaps were identified:\n\n")
	for i, gap := range reflection.Gaps {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, gap)
	}
	if reflection.Rationale != "" {
		fmt.Fprintf(&sb, "\nAssessment: %s\n", reflection.Rationale)
	}
	return sb.String()
}

func reportPrompt(query types.Query, plan types.ResearchPlan, summaries []types.Summary, currentTime time.Time) string {
	var sections strings.Builder
	for _, s := range plan.Sections {
		fmt.Fprintf(&sections, "- %s\n", s)
	}

	if len(summaries) == 0 {
		return fmt.Sprintf(`Generate a comprehensive research report for the following query.

Query: %q
Intent: %s

Report sections to cover:
%s

Research approach: %s

Note: no research sources were available; write a preliminary report and say so in the executive summary.

Format the report in Markdown, with "## " headings for each section.`, query.Text, query.Intent, sections.String(), plan.Rationale)
	}

	var sourcesText strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&sourcesText, "Source %d: %s\nTitle: %s\n%s\n\n", i+1, s.SourceURL, s.Title, s.Text)
	}

	return fmt.Sprintf(`Current date: %s. The sources below reflect events and facts as of that date; they are more current than anything you were trained on. Where a source states a fact, report it as stated even if it conflicts with what you believe to be true — do not "correct" names, titles, or dates using your training knowledge. Cite every factual claim with "[Source N]" using the numbering below.

Generate a comprehensive research report.

Query: %q
Intent: %s

Report sections to cover:
%s

Research summaries:
%s

Write an executive summary, then cover each section with direct source citations, then a conclusion. Report only what the sources state; do not invent disagreement between sources that agree. Format the report in Markdown, with "## " headings for each section.`,
		currentTime.Format("January 2, 2006"), query.Text, query.Intent, sections.String(), sourcesText.String())
}

// splitSections breaks a Markdown report into titled sections on "## "
// boundaries. Content preceding the first heading becomes an "Overview"
// section; a report with no headings at all becomes one section.
func splitSections(content string) []types.ReportSection {
	lines := strings.Split(content, "\n")
	var out []types.ReportSection
	title := "Overview"
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text != "" {
			out = append(out, types.ReportSection{Title: title, Body: text})
		}
		body.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if len(out) == 0 {
		out = append(out, types.ReportSection{Title: "Report", Body: strings.TrimSpace(content)})
	}
	return out
}

func (o *Orchestrator) verifyReport(ctx context.Context, report *types.Report) {
	var fullText strings.Builder
	for _, s := range report.Sections {
		fullText.WriteString(s.Body)
		fullText.WriteString("\n\n")
	}

	extracted := o.claims.Extract(ctx, fullText.String(), report.Sources)
	if len(extracted) == 0 {
		return
	}

	threshold := o.cfg.VerifyThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	summary := o.verify.VerifyAllWithThreshold(ctx, extracted, report.Sources, threshold)
	report.Verification = &summary
}
