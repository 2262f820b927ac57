// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search implements the Search Providers component: a uniform
// capability across multiple vendors with domain exclusion. Implements
// spec §4.4. The Provider Strategy interface and post-filtering discipline
// generalize the teacher's internal/search.Backend interface (academic
// APIs) to web-search vendors.
package search

import (
	"context"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/pdiddy/research-engine/pkg/types"
)

// Provider searches a single vendor. Concrete providers (SERP, Tavily,
// Perplexity) implement this per the Strategy pattern. A Provider never
// raises a partial error upward: on any per-query failure it logs a
// structured stage error and returns an empty slice (spec §4.4/§7).
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, kind types.SearchKind, n int) []types.SearchResult
}

// New selects the concrete Provider named by cfg.SearchProviderName. A nil
// logger defaults to a no-op logger so callers can omit it in tests.
func New(cfg types.Config, httpClient *http.Client, logger *zap.Logger) Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	switch cfg.SearchProviderName {
	case types.ProviderTavily:
		return &tavilyProvider{baseProvider: newBaseProvider(cfg, httpClient, logger), apiKey: cfg.TavilyAPIKey}
	case types.ProviderPerplexity:
		return &perplexityProvider{baseProvider: newBaseProvider(cfg, httpClient, logger), apiKey: cfg.PerplexityAPIKey}
	default:
		return &serpProvider{baseProvider: newBaseProvider(cfg, httpClient, logger), apiKey: cfg.SERPAPIKey}
	}
}

// baseProvider holds the fields every concrete provider needs: an HTTP
// client, the configured exclude list, and a logger for per-query failures.
type baseProvider struct {
	client         *http.Client
	excludeDomains map[string]struct{}
	logger         *zap.Logger
}

func newBaseProvider(cfg types.Config, client *http.Client, logger *zap.Logger) baseProvider {
	excluded := make(map[string]struct{}, len(cfg.ExcludeDomains))
	for _, d := range cfg.ExcludeDomains {
		excluded[d] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseProvider{client: client, excludeDomains: excluded, logger: logger}
}

// postFilter applies the belt-and-braces domain exclusion: drop any result
// whose host is in the exclude list even if the vendor ignored the
// site-exclusion hint.
func (b baseProvider) postFilter(results []types.SearchResult) []types.SearchResult {
	if len(b.excludeDomains) == 0 {
		return results
	}
	out := make([]types.SearchResult, 0, len(results))
	rank := 1
	for _, r := range results {
		if _, excluded := b.excludeDomains[types.Host(r.URL)]; excluded {
			continue
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out
}

// excludeQuerySuffixFor builds the "-site:<domain>" exclusion suffix vendors
// that only accept exclusions inline in the query string (SERP, Perplexity)
// append to the query text. Tavily takes exclusions as a native field instead.
func excludeQuerySuffixFor(excluded map[string]struct{}) string {
	domains := make([]string, 0, len(excluded))
	for d := range excluded {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	suffix := ""
	for _, d := range domains {
		suffix += " -site:" + d
	}
	return suffix
}
