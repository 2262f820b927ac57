// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Sentinel error kinds from the error taxonomy. Stages wrap these with
// fmt.Errorf("...: %w", ErrX) so callers can test with errors.Is.
var (
	// ErrConfigInvalid indicates a missing or malformed required configuration key.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrLLMUnavailable indicates the LLM Gateway exhausted its retries.
	ErrLLMUnavailable = errors.New("llm unavailable")

	// ErrEmbeddingUnavailable indicates the Embedding Client failed; callers
	// must not substitute zero vectors.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrSearchFailed indicates a single search provider call failed. It is
	// logged and the caller returns an empty result set, never propagated raw.
	ErrSearchFailed = errors.New("search failed")

	// ErrNoResults indicates the orchestrator got zero search results and zero
	// summaries after iteration 1.
	ErrNoResults = errors.New("no results")

	// ErrScrapeFailed indicates all three scraper tiers failed for a URL.
	ErrScrapeFailed = errors.New("scrape failed")

	// ErrPlanningFailed indicates the planner returned empty sections or
	// empty search queries.
	ErrPlanningFailed = errors.New("planning failed")

	// ErrJSONInvalid indicates an LLM JSON response could not be salvaged
	// into valid JSON after all salvage strategies were tried.
	ErrJSONInvalid = errors.New("json invalid")

	// ErrVerifyUnavailable indicates the verification stage could not run;
	// it is non-fatal, the verification appendix is omitted with a note.
	ErrVerifyUnavailable = errors.New("verify unavailable")
)

// ExitCode maps an error produced by the pipeline to the CLI exit code
// defined in spec §6. Unrecognized errors map to 5 (unexpected failure).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, ErrConfigInvalid):
		return 2
	case errors.Is(err, ErrNoResults):
		return 3
	case errors.Is(err, ErrLLMUnavailable):
		return 4
	default:
		return 5
	}
}
