// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/research-engine/internal/classify"
	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/pkg/types"
)

// maxSourceContentChars bounds how much of a re-scraped source is included
// in one verification prompt, matching original_source/stages/verifier.py's
// conservative per-model context budget.
const maxSourceContentChars = 300_000

// Scraper is the subset of scrape.Scraper the Verifier needs: a cache-first
// lookup plus an on-demand fetch for sources the cache has never seen.
type Scraper interface {
	Lookup(url string) (types.ScrapedContent, bool)
	ScrapeURL(ctx context.Context, url string) types.ScrapedContent
}

// Verifier checks extracted claims against their cited source's scraped
// content, one LLM call per source.
type Verifier struct {
	gateway *llmgateway.Gateway
	scraper Scraper
	model   string
}

// NewVerifier builds a Verifier using cfg.VerifyModel (falling back to
// cfg.DefaultModel when unset).
func NewVerifier(cfg types.Config, gateway *llmgateway.Gateway, scraper Scraper) *Verifier {
	model := cfg.VerifyModel
	if model == "" {
		model = cfg.DefaultModel
	}
	return &Verifier{gateway: gateway, scraper: scraper, model: model}
}

// VerifyAll groups claims by their cited source's URL (resolving
// SourceNumber against sources) and verifies each group with a single LLM
// call per source, per spec §4.14.
func (v *Verifier) VerifyAll(ctx context.Context, claims []types.ExtractedClaim, sources []types.SearchResult) types.VerificationSummary {
	grouped := groupBySource(claims, sources)

	var all []types.VerificationResult
	for url, groupClaims := range grouped {
		all = append(all, v.verifySource(ctx, url, groupClaims)...)
	}
	return types.Summarize(all, 0.7)
}

// VerifyAllWithThreshold is VerifyAll with an explicit flag threshold
// (spec's verify_threshold config, default 0.7).
func (v *Verifier) VerifyAllWithThreshold(ctx context.Context, claims []types.ExtractedClaim, sources []types.SearchResult, threshold float64) types.VerificationSummary {
	grouped := groupBySource(claims, sources)

	var all []types.VerificationResult
	for url, groupClaims := range grouped {
		all = append(all, v.verifySource(ctx, url, groupClaims)...)
	}
	return types.Summarize(all, threshold)
}

func groupBySource(claims []types.ExtractedClaim, sources []types.SearchResult) map[string][]types.ExtractedClaim {
	grouped := make(map[string][]types.ExtractedClaim)
	for _, c := range claims {
		if c.SourceNumber < 1 || c.SourceNumber > len(sources) {
			continue
		}
		url := sources[c.SourceNumber-1].URL
		grouped[url] = append(grouped[url], c)
	}
	return grouped
}

// verifySource consults the scrape cache first (no re-fetch if a prior
// attempt already yielded an empty body) and scrapes on demand only if the
// cache has never seen this URL.
func (v *Verifier) verifySource(ctx context.Context, sourceURL string, claims []types.ExtractedClaim) []types.VerificationResult {
	content, ok := v.scraper.Lookup(sourceURL)
	if !ok {
		content = v.scraper.ScrapeURL(ctx, sourceURL)
	}
	if content.Empty() {
		return markUnverifiable(claims, sourceURL, "source unavailable or empty")
	}

	prompt := verificationPrompt(sourceURL, content, claims)
	raw, err := v.gateway.CompleteJSON(ctx, prompt, v.model, 0.1, 2000)
	if err != nil {
		return markUnverifiable(claims, sourceURL, fmt.Sprintf("verification error: %v", err))
	}

	var parsed verificationResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return markUnverifiable(claims, sourceURL, fmt.Sprintf("verification response was not valid JSON: %v", err))
	}

	return parseVerificationResponse(parsed, claims, sourceURL)
}

type verificationResponse struct {
	Verifications []struct {
		ClaimID    int     `json:"claim_id"`
		Verdict    string  `json:"verdict"`
		Confidence float64 `json:"confidence"`
		Evidence   string  `json:"evidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"verifications"`
}

func parseVerificationResponse(parsed verificationResponse, claims []types.ExtractedClaim, sourceURL string) []types.VerificationResult {
	results := make([]types.VerificationResult, 0, len(claims))
	seen := make(map[int]bool, len(parsed.Verifications))

	for _, v := range parsed.Verifications {
		if v.ClaimID < 0 || v.ClaimID >= len(claims) {
			continue
		}
		seen[v.ClaimID] = true
		results = append(results, types.VerificationResult{
			ClaimText:  claims[v.ClaimID].ClaimText,
			SourceURL:  sourceURL,
			Verdict:    verdictOrDefault(v.Verdict),
			Confidence: v.Confidence,
			Evidence:   v.Evidence,
			Reasoning:  v.Reasoning,
		})
	}

	for i, c := range claims {
		if seen[i] {
			continue
		}
		results = append(results, types.VerificationResult{
			ClaimText:  c.ClaimText,
			SourceURL:  sourceURL,
			Verdict:    types.VerdictUnsupported,
			Confidence: 0,
			Reasoning:  "not included in verification response",
		})
	}
	return results
}

func verdictOrDefault(s string) types.Verdict {
	switch types.Verdict(s) {
	case types.VerdictSupported, types.VerdictPartial, types.VerdictUnsupported, types.VerdictContradicted:
		return types.Verdict(s)
	default:
		return types.VerdictUnsupported
	}
}

func markUnverifiable(claims []types.ExtractedClaim, sourceURL, reason string) []types.VerificationResult {
	results := make([]types.VerificationResult, 0, len(claims))
	for _, c := range claims {
		results = append(results, types.VerificationResult{
			ClaimText: c.ClaimText,
			SourceURL: sourceURL,
			Verdict:   types.VerdictUnsupported,
			Reasoning: "cannot verify: " + reason,
		})
	}
	return results
}

func verificationPrompt(sourceURL string, content types.ScrapedContent, claims []types.ExtractedClaim) string {
	var claimLines strings.Builder
	for i, c := range claims {
		fmt.Fprintf(&claimLines, "%d. [%s] %s\n", i, c.ClaimType, c.ClaimText)
	}

	sourceText := content.MarkdownBody
	if len(sourceText) > maxSourceContentChars {
		sourceText = sourceText[:maxSourceContentChars] + "\n\n[content truncated due to length]"
	}

	sourceDate := "unknown"
	if !content.RetrievedAt.IsZero() {
		sourceDate = content.RetrievedAt.Format("January 2, 2006")
	}

	tierNote := ""
	if tier := classify.Tier(sourceURL); tier != types.Tier4 {
		tierNote = fmt.Sprintf("Source authority tier: %s.\n", tier)
	}

	return fmt.Sprintf(`TASK: Verify whether each claim below is supported by the source content.

Current date: %s
Source retrieved: %s
%sVerify claims based ONLY on what the source states. Ignore any conflict with your training knowledge: the source is authoritative for facts about current events, even if they postdate your training.

SOURCE: %s

CLAIMS TO VERIFY (by id):
%s
SOURCE CONTENT:
%s

For each claim, assign one verdict: "supported" (explicitly stated or strongly implied), "partial" (approximately correct but imprecise), "unsupported" (not mentioned), or "contradicted" (the source explicitly contradicts it).

Return JSON:
{
  "verifications": [
    {"claim_id": 0, "verdict": "supported", "confidence": 0.95, "evidence": "quote from source", "reasoning": "why"}
  ]
}`,
		time.Now().UTC().Format("January 2, 2006"), sourceDate, tierNote, sourceURL, claimLines.String(), sourceText)
}
