// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan implements the Intent Classifier and Planner. Implements
// spec §4.11 and §4.12. Grounded on original_source/stages/intent_classifier.py
// and original_source/stages/planner.py: prompt shape and the
// defaults-to-general-on-error behavior for intent classification carry
// over; the planner's empty-sections/empty-queries hard failure
// (types.ErrPlanningFailed) matches the original's RuntimeError.
package plan

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/pkg/types"
)

// IntentClassifier assigns one of the seven recognized intents to a query.
type IntentClassifier struct {
	gateway *llmgateway.Gateway
	model   string
}

// NewIntentClassifier builds an IntentClassifier using cfg.IntentModel
// (falling back to cfg.DefaultModel when unset).
func NewIntentClassifier(cfg types.Config, gateway *llmgateway.Gateway) *IntentClassifier {
	model := cfg.IntentModel
	if model == "" {
		model = cfg.DefaultModel
	}
	return &IntentClassifier{gateway: gateway, model: model}
}

type intentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classify returns the query's intent. Any LLM or parse failure defaults to
// IntentGeneral (spec §4.11: "Errors default to general with a WARNING"),
// signaled to the caller via the ok=false return so it can log the
// WARNING itself.
func (c *IntentClassifier) Classify(ctx context.Context, query string) (types.IntentKind, bool) {
	prompt := intentPrompt(query)

	raw, err := c.gateway.CompleteJSON(ctx, prompt, c.model, 0.3, 500)
	if err != nil {
		return types.IntentGeneral, false
	}

	var parsed intentResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return types.IntentGeneral, false
	}

	intent := types.IntentKind(strings.ToLower(parsed.Intent))
	if !intent.Valid() {
		return types.IntentGeneral, false
	}
	return intent, true
}

func intentPrompt(query string) string {
	return `Analyze the following user query and classify its intent into one of these categories:

- informational: general questions seeking factual information
- comparative: questions comparing multiple things
- news: questions about current events or recent news
- code: questions about programming, code examples, or technical implementation
- tutorial: questions seeking step-by-step instructions or how-to guides
- research: academic or in-depth research questions
- general: general conversational queries

Query: "` + query + `"

Respond with a JSON object:
{"intent": "<category>", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`
}
