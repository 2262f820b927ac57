// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/pkg/types"
)

func extractServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"content": []map[string]string{{"type": "text", "text": body}}}
		json.NewEncoder(w).Encode(resp)
	}))
}

func verifyCfg(endpoint string) types.Config {
	cfg := types.Config{LLMEndpoint: endpoint, LLMAPIKey: "k", LLMMaxRetries: 1, VerifyModel: "verify-model"}
	cfg.ApplyDefaults()
	return cfg
}

func TestExtractReturnsClaimsForCitedSources(t *testing.T) {
	srv := extractServer(t, `{"claims": [{"text": "Widgets grew 10% in 2026.", "source_number": 1, "type": "statistic", "context": "market section"}]}`)
	defer srv.Close()

	cfg := verifyCfg(srv.URL)
	e := NewClaimExtractor(cfg, llmgateway.New(cfg, srv.Client()))

	sources := []types.SearchResult{{URL: "https://a.example/1"}, {URL: "https://a.example/2"}}
	report := "Widgets grew steadily [Source 1] and prices held [Source 2]."

	claims := e.Extract(context.Background(), report, sources)
	require.Len(t, claims, 1)
	require.Equal(t, 1, claims[0].SourceNumber)
	require.Equal(t, types.ClaimStatistic, claims[0].ClaimType)
}

func TestExtractReturnsNilWhenNoCitations(t *testing.T) {
	srv := extractServer(t, `{"claims": []}`)
	defer srv.Close()

	cfg := verifyCfg(srv.URL)
	e := NewClaimExtractor(cfg, llmgateway.New(cfg, srv.Client()))

	claims := e.Extract(context.Background(), "a report with no citations at all", []types.SearchResult{{URL: "https://a.example"}})
	require.Nil(t, claims)
}

func TestExtractDiscardsClaimsWithUncitedSourceNumber(t *testing.T) {
	srv := extractServer(t, `{"claims": [
		{"text": "claim citing cited source", "source_number": 1, "type": "factual"},
		{"text": "claim citing out-of-range source", "source_number": 99, "type": "factual"}
	]}`)
	defer srv.Close()

	cfg := verifyCfg(srv.URL)
	e := NewClaimExtractor(cfg, llmgateway.New(cfg, srv.Client()))

	sources := []types.SearchResult{{URL: "https://a.example/1"}}
	report := "Some claim [Source 1] is made here."

	claims := e.Extract(context.Background(), report, sources)
	require.Len(t, claims, 1)
	require.Equal(t, "claim citing cited source", claims[0].ClaimText)
}

func TestExtractDefaultsUnknownClaimTypeToFactual(t *testing.T) {
	srv := extractServer(t, `{"claims": [{"text": "x", "source_number": 1, "type": "speculation"}]}`)
	defer srv.Close()

	cfg := verifyCfg(srv.URL)
	e := NewClaimExtractor(cfg, llmgateway.New(cfg, srv.Client()))

	sources := []types.SearchResult{{URL: "https://a.example/1"}}
	claims := e.Extract(context.Background(), "claim here [Source 1].", sources)
	require.Len(t, claims, 1)
	require.Equal(t, types.ClaimFactual, claims[0].ClaimType)
}

func TestExtractReturnsNilOnGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := verifyCfg(srv.URL)
	e := NewClaimExtractor(cfg, llmgateway.New(cfg, srv.Client()))

	sources := []types.SearchResult{{URL: "https://a.example/1"}}
	claims := e.Extract(context.Background(), "claim here [Source 1].", sources)
	require.Nil(t, claims)
}
