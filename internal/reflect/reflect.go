// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reflect implements the Reflector: a JSON-mode gap-analysis LLM
// call that judges whether accumulated research covers the plan's sections,
// and if not, proposes follow-up search queries. Implements spec §4.10.
// Grounded on original_source/stages/reflector.py: the prompt shape (plan
// sections, truncated per-source excerpts, a structured JSON verdict) and
// the fail-safe default of treating any LLM failure as complete to avoid an
// infinite research loop both carry over.
package reflect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/pkg/types"
)

const summaryExcerptChars = 500

// Reflector judges research completeness against a ResearchPlan.
type Reflector struct {
	gateway *llmgateway.Gateway
	model   string
}

// New builds a Reflector using cfg.ReflectionModel (falling back to
// cfg.DefaultModel when unset).
func New(cfg types.Config, gateway *llmgateway.Gateway) *Reflector {
	model := cfg.ReflectionModel
	if model == "" {
		model = cfg.DefaultModel
	}
	return &Reflector{gateway: gateway, model: model}
}

type reflectionResponse struct {
	IsComplete         bool   `json:"is_complete"`
	Confidence         float64 `json:"confidence"`
	MissingInformation []string `json:"missing_information"`
	AdditionalQueries  []struct {
		Query    string `json:"query"`
		Purpose  string `json:"purpose"`
		Priority int    `json:"priority"`
	} `json:"additional_queries"`
	Rationale string `json:"rationale"`
}

// Reflect analyzes query, plan, and the summaries gathered so far. On any
// LLM failure it returns a safe default of Complete=true (the failure is
// described in the returned Rationale) rather than risking an infinite
// research loop.
func (r *Reflector) Reflect(ctx context.Context, query types.Query, plan types.ResearchPlan, summaries []types.Summary) types.ReflectionResult {
	prompt := r.buildPrompt(query, plan, summaries)

	raw, err := r.gateway.CompleteJSON(ctx, prompt, r.model, 0.3, 1500)
	if err != nil {
		return types.ReflectionResult{
			Complete:  true,
			Rationale: fmt.Sprintf("reflection failed, proceeding with available research: %v", err),
		}
	}

	var parsed reflectionResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return types.ReflectionResult{
			Complete:  true,
			Rationale: fmt.Sprintf("reflection response was not valid JSON, proceeding with available research: %v", err),
		}
	}

	additional := make([]types.SearchQuery, 0, len(parsed.AdditionalQueries))
	for _, q := range parsed.AdditionalQueries {
		priority := q.Priority
		if priority == 0 {
			priority = 3
		}
		additional = append(additional, types.SearchQuery{Text: q.Query, Purpose: q.Purpose, Priority: priority})
	}

	complete := parsed.IsComplete
	rationale := parsed.Rationale
	if !complete && len(additional) == 0 {
		// Open Question: a reflector that says "incomplete" but proposes no
		// follow-up queries cannot make progress; treat it as complete
		// rather than looping forever on the same summaries. The case is
		// recorded in the returned Rationale; no log record is written.
		complete = true
		rationale = "reflector reported incomplete research with no additional queries; treating as complete: " + rationale
	}

	return types.ReflectionResult{
		Complete:          complete,
		Gaps:              parsed.MissingInformation,
		AdditionalQueries: additional,
		Rationale:         rationale,
	}
}

func (r *Reflector) buildPrompt(query types.Query, plan types.ResearchPlan, summaries []types.Summary) string {
	var excerpts strings.Builder
	for i, s := range summaries {
		text := s.Text
		if len(text) > summaryExcerptChars {
			text = text[:summaryExcerptChars] + "..."
		}
		fmt.Fprintf(&excerpts, "Source %d: %s\n%s\n\n", i+1, s.SourceURL, text)
	}

	var sections strings.Builder
	for _, section := range plan.Sections {
		fmt.Fprintf(&sections, "- %s\n", section)
	}

	return fmt.Sprintf(`You are a research quality analyst. Analyze the research gathered so far and determine if it's sufficient to answer the user's query comprehensively.

Original Query: %q
Intent: %s

Planned Report Sections:
%s

Research Gathered (%d sources):
%s

Evaluate whether the gathered research provides sufficient information to fully answer the query, cover every planned section with adequate depth, provide authoritative and diverse perspectives, and include necessary examples or data. Identify specific gaps: missing perspectives, insufficient technical depth, lack of recent information, missing comparisons, or unexplored aspects.

Respond with a JSON object:
{
  "is_complete": true/false,
  "confidence": 0.0-1.0,
  "missing_information": ["gap 1", "gap 2"],
  "additional_queries": [{"query": "...", "purpose": "...", "priority": 1}],
  "rationale": "explanation of the completeness assessment"
}

Be critical but realistic: minor gaps are acceptable if the core query is well addressed.`,
		query.Text, query.Intent, sections.String(), len(summaries), excerpts.String())
}
