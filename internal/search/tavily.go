// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-engine/internal/logging"
	"github.com/pdiddy/research-engine/pkg/types"
)

const tavilyEndpoint = "https://api.tavily.com/search"

type tavilyProvider struct {
	baseProvider
	apiKey   string
	endpoint string // overridable in tests; defaults to tavilyEndpoint
}

func (p *tavilyProvider) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	Topic          string   `json:"topic,omitempty"`
	MaxResults     int      `json:"max_results"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search uses Tavily's native exclude_domains field rather than the inline
// -site: suffix, and maps kind to Tavily's topic selector ("news" is the
// only non-default topic Tavily exposes; scholar has no native analogue and
// falls back to the default "general" topic).
func (p *tavilyProvider) Search(ctx context.Context, query string, kind types.SearchKind, n int) []types.SearchResult {
	excluded := make([]string, 0, len(p.excludeDomains))
	for d := range p.excludeDomains {
		excluded = append(excluded, d)
	}

	reqBody := tavilyRequest{
		APIKey:         p.apiKey,
		Query:          query,
		MaxResults:     n,
		ExcludeDomains: excluded,
	}
	if kind == types.SearchNews {
		reqBody.Topic = "news"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	ep := p.endpoint
	if ep == "" {
		ep = tavilyEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, fmt.Errorf("tavily: HTTP %d", resp.StatusCode))
		return nil
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}

	results := make([]types.SearchResult, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		if i >= n {
			break
		}
		results = append(results, types.SearchResult{
			URL:         types.CanonicalURL(r.URL),
			Title:       r.Title,
			Snippet:     r.Content,
			Rank:        i + 1,
			ProviderTag: "tavily",
		})
	}
	return p.postFilter(results)
}
