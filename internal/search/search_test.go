// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/pkg/types"
)

func TestSerpProviderParsesResultsAndAppliesPostFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic_results": [
			{"link": "https://keep.test/a", "title": "A", "snippet": "a"},
			{"link": "https://excluded.test/b", "title": "B", "snippet": "b"},
			{"link": "https://keep.test/c", "title": "C", "snippet": "c"}
		]}`))
	}))
	defer srv.Close()

	cfg := types.Config{
		SearchProviderName: types.ProviderSERP,
		SERPAPIKey:         "key",
		ExcludeDomains:     []string{"excluded.test"},
	}
	p := &serpProvider{baseProvider: newBaseProvider(cfg, srv.Client(), nil), apiKey: cfg.SERPAPIKey, endpoint: srv.URL}

	results := p.Search(context.Background(), "golang", types.SearchWeb, 10)
	require.Len(t, results, 2)
	require.Equal(t, "https://keep.test/a", results[0].URL)
	require.Equal(t, 1, results[0].Rank)
	require.Equal(t, "https://keep.test/c", results[1].URL)
	require.Equal(t, 2, results[1].Rank)
}

func TestSerpProviderFailureReturnsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := types.Config{SearchProviderName: types.ProviderSERP, SERPAPIKey: "key"}
	p := &serpProvider{baseProvider: newBaseProvider(cfg, srv.Client(), nil), endpoint: srv.URL}

	results := p.Search(context.Background(), "golang", types.SearchWeb, 10)
	require.Empty(t, results)
}

func TestTavilyProviderUsesNativeExcludeDomainsField(t *testing.T) {
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		capturedBody = buf
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"url": "https://x.test", "title": "X", "content": "body"}]}`))
	}))
	defer srv.Close()

	cfg := types.Config{
		SearchProviderName: types.ProviderTavily,
		TavilyAPIKey:       "key",
		ExcludeDomains:     []string{"blocked.test"},
	}
	p := &tavilyProvider{baseProvider: newBaseProvider(cfg, srv.Client(), nil), apiKey: cfg.TavilyAPIKey, endpoint: srv.URL}

	results := p.Search(context.Background(), "golang news", types.SearchNews, 5)
	require.Len(t, results, 1)
	require.Equal(t, "https://x.test", results[0].URL)
	require.Contains(t, string(capturedBody), "blocked.test")
	require.Contains(t, string(capturedBody), `"topic":"news"`)
}

func TestPerplexityProviderAppendsExcludeSuffixInline(t *testing.T) {
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		capturedBody = buf
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"url": "https://y.test", "title": "Y", "snippet": "s"}]}`))
	}))
	defer srv.Close()

	cfg := types.Config{
		SearchProviderName: types.ProviderPerplexity,
		PerplexityAPIKey:   "key",
		ExcludeDomains:     []string{"blocked.test"},
	}
	p := &perplexityProvider{baseProvider: newBaseProvider(cfg, srv.Client(), nil), apiKey: cfg.PerplexityAPIKey, endpoint: srv.URL}

	results := p.Search(context.Background(), "golang", types.SearchWeb, 5)
	require.Len(t, results, 1)
	require.Contains(t, string(capturedBody), "-site:blocked.test")
}

func TestNewSelectsProviderByConfig(t *testing.T) {
	client := &http.Client{Timeout: time.Second}

	serp := New(types.Config{SearchProviderName: types.ProviderSERP}, client, nil)
	require.Equal(t, "serp", serp.Name())

	tavily := New(types.Config{SearchProviderName: types.ProviderTavily}, client, nil)
	require.Equal(t, "tavily", tavily.Name())

	perplexity := New(types.Config{SearchProviderName: types.ProviderPerplexity}, client, nil)
	require.Equal(t, "perplexity", perplexity.Name())
}

func TestExcludeQuerySuffixForIsDeterministicAndEmpty(t *testing.T) {
	require.Equal(t, "", excludeQuerySuffixFor(nil))
	require.Equal(t, " -site:a.test", excludeQuerySuffixFor(map[string]struct{}{"a.test": {}}))
}
