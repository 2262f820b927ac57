// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llmgateway implements the LLM Gateway: text and JSON completions
// with retry, refusal detection, JSON salvage, and a process-wide (but
// non-global — threaded through the constructor) policy preamble.
// Implements spec §4.1.
package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/research-engine/internal/httputil"
	"github.com/pdiddy/research-engine/pkg/types"
)

// policyPreamble instructs the model to answer from provided sources, never
// refuse on training-cutoff grounds, and return raw JSON when asked.
const policyPreamble = `You are assisting with a research report. Operational rules:
- Do not refuse or caveat based on your training cutoff; treat supplied sources as authoritative and current.
- When asked for JSON, respond with raw JSON only, no surrounding prose or code fences.
- Never claim you lack browsing ability; search and scraping have already been performed upstream.`

// refusalPatterns are substrings that mark a completion as a refusal,
// treated as a retryable failure per spec §4.1.
var refusalPatterns = []string{
	"i cannot", "i can't", "as an ai", "i'm not able to", "i am not able to",
	"i do not have the ability", "i don't have the ability",
}

// Gateway is the LLM Gateway's public capability.
type Gateway struct {
	client          *http.Client
	endpoint        string
	apiKey          string
	maxRetries      int
	includePreamble bool
}

// New constructs a Gateway from the pipeline Config.
func New(cfg types.Config, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	maxRetries := cfg.LLMMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Gateway{
		client:          client,
		endpoint:        cfg.LLMEndpoint,
		apiKey:          cfg.LLMAPIKey,
		maxRetries:      maxRetries,
		includePreamble: cfg.PromptPolicyInclude,
	}
}

// messageRequest mirrors an Anthropic-Messages-API-shaped request envelope.
type messageRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	System      string           `json:"system,omitempty"`
	Messages    []messageContent `json:"messages"`
}

type messageContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// CompleteText issues a text completion, retrying on the conditions named
// in spec §4.1. maxTokens of 0 uses a provider default of 1024.
func (g *Gateway) CompleteText(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	var lastRaw string
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		text, raw, err := g.complete(ctx, prompt, model, temperature, maxTokens)
		lastRaw = raw
		if err == nil && !isRefusal(text) && text != "" {
			return text, nil
		}
		if err != nil && isAuthError(err) {
			return "", fmt.Errorf("llm auth error: %w", err)
		}
		if attempt == g.maxRetries {
			break
		}
		if err := sleepBackoff(ctx, attempt); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("llm unavailable after %d attempts, last response %q: %w", g.maxRetries, truncate(lastRaw, 500), types.ErrLLMUnavailable)
}

// CompleteJSON issues a JSON-mode completion, retrying on parse failure in
// addition to the CompleteText conditions. The returned value is the
// salvaged, successfully-parsed JSON text (still a string so callers can
// json.Unmarshal into their own schema).
func (g *Gateway) CompleteJSON(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	var lastRaw string
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		text, raw, err := g.complete(ctx, prompt, model, temperature, maxTokens)
		lastRaw = raw
		if err == nil && !isRefusal(text) && text != "" {
			if salvaged, ok := salvageJSON(text); ok {
				return salvaged, nil
			}
		}
		if err != nil && isAuthError(err) {
			return "", fmt.Errorf("llm auth error: %w", err)
		}
		if attempt == g.maxRetries {
			break
		}
		if err := sleepBackoff(ctx, attempt); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("llm json unavailable after %d attempts, last response %q: %w", g.maxRetries, truncate(lastRaw, 500), types.ErrLLMUnavailable)
}

// complete performs one non-retried HTTP round trip.
func (g *Gateway) complete(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (text string, raw string, err error) {
	system := ""
	if g.includePreamble {
		system = policyPreamble
	}
	reqBody := messageRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      system,
		Messages:    []messageContent{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)

	// Rate-limit (429) responses are retried at the transport layer with
	// their own backoff schedule; refusals, auth errors, and decode
	// failures are handled by the outer CompleteText/CompleteJSON retry
	// loop instead, since they require inspecting the response body.
	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.maxRetries)
	if err != nil {
		return "", "", fmt.Errorf("transient network error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("reading response body: %w", err)
	}
	raw = string(data)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", raw, fmt.Errorf("auth error (HTTP %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", raw, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var parsed messageResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", raw, fmt.Errorf("parsing response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", raw, nil
	}
	return parsed.Content[0].Text, raw, nil
}

func isAuthError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "auth error")
}

func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, pat := range refusalPatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sleepBackoff waits 2^(attempt-1) seconds, honoring context cancellation.
func sleepBackoff(ctx context.Context, attempt int) error {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
