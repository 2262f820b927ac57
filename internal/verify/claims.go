// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify implements the Claim Extractor and Verifier. Implements
// spec §4.14. Grounded on original_source/stages/verifier.py: the
// "[Source N]" citation regex, the discard-uncited-claims rule, and the
// per-source single verification call (with a temporal-authority prompt
// that instructs the model to trust the source over training knowledge)
// all carry over.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/pkg/types"
)

var citationPattern = regexp.MustCompile(`\[Source (\d+)\]`)

// ClaimExtractor pulls cited factual claims out of a generated report.
type ClaimExtractor struct {
	gateway *llmgateway.Gateway
	model   string
}

// NewClaimExtractor builds a ClaimExtractor using cfg.VerifyModel (falling
// back to cfg.DefaultModel when unset).
func NewClaimExtractor(cfg types.Config, gateway *llmgateway.Gateway) *ClaimExtractor {
	model := cfg.VerifyModel
	if model == "" {
		model = cfg.DefaultModel
	}
	return &ClaimExtractor{gateway: gateway, model: model}
}

type claimsResponse struct {
	Claims []struct {
		Text         string `json:"text"`
		SourceNumber int    `json:"source_number"`
		Type         string `json:"type"`
		Context      string `json:"context"`
	} `json:"claims"`
}

// Extract finds every "[Source N]" citation in reportText, then asks the
// LLM for the claims attached to those citations. Claims whose
// source_number does not resolve against sources (out of range, or N was
// never cited) are discarded. Returns nil if the report cites no sources
// or the LLM call fails.
func (e *ClaimExtractor) Extract(ctx context.Context, reportText string, sources []types.SearchResult) []types.ExtractedClaim {
	citedNumbers := citedSourceNumbers(reportText, len(sources))
	if len(citedNumbers) == 0 {
		return nil
	}

	prompt := extractPrompt(reportText)
	raw, err := e.gateway.CompleteJSON(ctx, prompt, e.model, 0.2, 2000)
	if err != nil {
		return nil
	}

	var parsed claimsResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}

	claims := make([]types.ExtractedClaim, 0, len(parsed.Claims))
	for _, c := range parsed.Claims {
		if !citedNumbers[c.SourceNumber] {
			continue
		}
		claims = append(claims, types.ExtractedClaim{
			ClaimText:    c.Text,
			SourceNumber: c.SourceNumber,
			ClaimType:    claimTypeOrDefault(c.Type),
			Context:      c.Context,
		})
	}
	return claims
}

func claimTypeOrDefault(s string) types.ClaimType {
	switch types.ClaimType(s) {
	case types.ClaimFactual, types.ClaimStatistic, types.ClaimQuote, types.ClaimDate:
		return types.ClaimType(s)
	default:
		return types.ClaimFactual
	}
}

// citedSourceNumbers returns the set of [Source N] numbers in text that
// fall within [1, sourceCount].
func citedSourceNumbers(text string, sourceCount int) map[int]bool {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	cited := make(map[int]bool, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > sourceCount {
			continue
		}
		cited[n] = true
	}
	return cited
}

func extractPrompt(reportText string) string {
	return fmt.Sprintf(`Extract all factual claims from this report that cite sources.

Report:
%s

For each claim:
1. Extract the claim text (a complete, standalone assertion).
2. Note which [Source N] it cites (extract N).
3. Classify the claim type: factual, statistic, quote, or date.

Return JSON:
{
  "claims": [
    {"text": "...", "source_number": 1, "type": "factual", "context": "surrounding sentence"}
  ]
}

Extract complete claims that can stand alone. Include all factual assertions that have [Source N] citations. Don't extract opinions, analysis, or unsourced statements.`, reportText)
}
