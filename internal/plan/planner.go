// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/pkg/types"
)

// Planner produces a ResearchPlan from a classified query.
type Planner struct {
	gateway *llmgateway.Gateway
	model   string
}

// NewPlanner builds a Planner using cfg.PlannerModel (falling back to
// cfg.DefaultModel when unset).
func NewPlanner(cfg types.Config, gateway *llmgateway.Gateway) *Planner {
	model := cfg.PlannerModel
	if model == "" {
		model = cfg.DefaultModel
	}
	return &Planner{gateway: gateway, model: model}
}

type planResponse struct {
	Sections      []string `json:"sections"`
	SearchQueries []struct {
		Query    string `json:"query"`
		Purpose  string `json:"purpose"`
		Priority int    `json:"priority"`
	} `json:"search_queries"`
	Rationale string `json:"rationale"`
}

// Plan produces a ResearchPlan for query. If the LLM returns empty
// sections or empty search_queries, Plan fails with types.ErrPlanningFailed
// (spec §4.12): there is no outer retry beyond the gateway's own retries.
func (p *Planner) Plan(ctx context.Context, query types.Query) (types.ResearchPlan, error) {
	prompt := planPrompt(query)

	raw, err := p.gateway.CompleteJSON(ctx, prompt, p.model, 0.3, 2000)
	if err != nil {
		return types.ResearchPlan{}, fmt.Errorf("%w: %v", types.ErrPlanningFailed, err)
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return types.ResearchPlan{}, fmt.Errorf("%w: planner response was not valid JSON: %v", types.ErrPlanningFailed, err)
	}

	if len(parsed.Sections) == 0 || len(parsed.SearchQueries) == 0 {
		return types.ResearchPlan{}, fmt.Errorf("%w: planner returned empty sections or queries", types.ErrPlanningFailed)
	}

	queries := make([]types.SearchQuery, 0, len(parsed.SearchQueries))
	for _, sq := range parsed.SearchQueries {
		priority := sq.Priority
		if priority == 0 {
			priority = 3
		}
		queries = append(queries, types.SearchQuery{Text: sq.Query, Purpose: sq.Purpose, Priority: priority})
	}

	return types.ResearchPlan{
		Query:         query,
		Sections:      parsed.Sections,
		SearchQueries: queries,
		Rationale:     parsed.Rationale,
	}, nil
}

func planPrompt(query types.Query) string {
	return fmt.Sprintf(`You are a research planner. Given a user query and its intent, create a comprehensive research plan.

Operational rules:
- Do not mention knowledge cutoff or browsing limitations.
- Assume web search will be performed; prefer recent sources for time-sensitive topics.
- When relevant, generate queries targeting fresh information (recent date ranges, current years, site filters).

Query: %q
Intent: %s

Create a research plan with:
1. A list of report sections that should be covered.
2. Specific search queries to gather information for each section.
3. Rationale for the overall approach.

Consider: what information is needed to fully answer the query, the most important aspects to cover, and what search queries will find the most relevant and authoritative sources. For code intent, focus on documentation, examples, and best practices. For news intent, prioritize recent sources and multiple perspectives. For research intent, include academic sources and in-depth analysis.

Respond with a JSON object:
{
  "sections": ["Section 1 title", "Section 2 title"],
  "search_queries": [{"query": "search query 1", "purpose": "what this finds", "priority": 1}],
  "rationale": "explanation of the research approach"
}

Priority is 1 (highest) to 5 (lowest).`, query.Text, query.Intent)
}
