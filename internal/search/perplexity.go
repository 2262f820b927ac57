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

const perplexityEndpoint = "https://api.perplexity.ai/search"

type perplexityProvider struct {
	baseProvider
	apiKey   string
	endpoint string // overridable in tests; defaults to perplexityEndpoint
}

func (p *perplexityProvider) Name() string { return "perplexity" }

type perplexityRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type perplexityResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search has no native topic or exclude_domains field, so kind never
// changes the request and exclusion relies entirely on the inline -site:
// suffix plus postFilter.
func (p *perplexityProvider) Search(ctx context.Context, query string, kind types.SearchKind, n int) []types.SearchResult {
	reqBody := perplexityRequest{
		Query:      query + excludeQuerySuffixFor(p.excludeDomains),
		MaxResults: n,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	ep := p.endpoint
	if ep == "" {
		ep = perplexityEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, fmt.Errorf("perplexity: HTTP %d", resp.StatusCode))
		return nil
	}

	var parsed perplexityResponse
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
			Snippet:     r.Snippet,
			Rank:        i + 1,
			ProviderTag: "perplexity",
		})
	}
	return p.postFilter(results)
}
