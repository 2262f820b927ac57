// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/research-engine/internal/logging"
	"github.com/pdiddy/research-engine/pkg/types"
)

const serpEndpoint = "https://serpapi.com/search"

type serpProvider struct {
	baseProvider
	apiKey   string
	endpoint string // overridable in tests; defaults to serpEndpoint
}

func (p *serpProvider) Name() string { return "serp" }

type serpResponse struct {
	OrganicResults []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search maps kind to SerpAPI's "tbm" engine selector and appends the
// configured -site: exclusions before issuing the request. Per spec §4.4, a
// per-query failure never propagates; it logs a structured stage error and
// returns an empty slice for the caller to count and warn about.
func (p *serpProvider) Search(ctx context.Context, query string, kind types.SearchKind, n int) []types.SearchResult {
	q := url.Values{}
	q.Set("q", query+excludeQuerySuffixFor(p.excludeDomains))
	q.Set("api_key", p.apiKey)
	q.Set("num", fmt.Sprintf("%d", n))
	switch kind {
	case types.SearchNews:
		q.Set("tbm", "nws")
	case types.SearchScholar:
		q.Set("engine", "google_scholar")
	}

	ep := p.endpoint
	if ep == "" {
		ep = serpEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep+"?"+q.Encode(), nil)
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	resp, err := p.client.Do(req)
	if err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, fmt.Errorf("serp: HTTP %d", resp.StatusCode))
		return nil
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logging.StageError(p.logger, "search", query, types.ErrSearchFailed, err)
		return nil
	}

	results := make([]types.SearchResult, 0, len(parsed.OrganicResults))
	for i, r := range parsed.OrganicResults {
		if i >= n {
			break
		}
		results = append(results, types.SearchResult{
			URL:         types.CanonicalURL(r.Link),
			Title:       r.Title,
			Snippet:     r.Snippet,
			Rank:        i + 1,
			ProviderTag: "serp",
		})
	}
	return p.postFilter(results)
}
