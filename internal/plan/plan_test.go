// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

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

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"content": []map[string]string{{"type": "text", "text": body}}}
		json.NewEncoder(w).Encode(resp)
	}))
}

func planCfg(endpoint string) types.Config {
	cfg := types.Config{LLMEndpoint: endpoint, LLMAPIKey: "k", LLMMaxRetries: 1, IntentModel: "intent-model", PlannerModel: "planner-model"}
	cfg.ApplyDefaults()
	return cfg
}

func TestClassifyIntentReturnsRecognizedIntent(t *testing.T) {
	srv := jsonServer(t, `{"intent": "news", "confidence": 0.9, "reasoning": "about current events"}`)
	defer srv.Close()

	cfg := planCfg(srv.URL)
	c := NewIntentClassifier(cfg, llmgateway.New(cfg, srv.Client()))

	intent, ok := c.Classify(context.Background(), "what happened today")
	require.True(t, ok)
	require.Equal(t, types.IntentNews, intent)
}

func TestClassifyIntentDefaultsToGeneralOnUnknownLabel(t *testing.T) {
	srv := jsonServer(t, `{"intent": "not-a-real-intent", "confidence": 0.5, "reasoning": "x"}`)
	defer srv.Close()

	cfg := planCfg(srv.URL)
	c := NewIntentClassifier(cfg, llmgateway.New(cfg, srv.Client()))

	intent, ok := c.Classify(context.Background(), "query")
	require.False(t, ok)
	require.Equal(t, types.IntentGeneral, intent)
}

func TestClassifyIntentDefaultsToGeneralOnGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := planCfg(srv.URL)
	c := NewIntentClassifier(cfg, llmgateway.New(cfg, srv.Client()))

	intent, ok := c.Classify(context.Background(), "query")
	require.False(t, ok)
	require.Equal(t, types.IntentGeneral, intent)
}

func TestPlanReturnsSectionsAndQueries(t *testing.T) {
	srv := jsonServer(t, `{"sections": ["Intro", "Details"], "search_queries": [{"query": "q1", "purpose": "find basics", "priority": 1}], "rationale": "because"}`)
	defer srv.Close()

	cfg := planCfg(srv.URL)
	p := NewPlanner(cfg, llmgateway.New(cfg, srv.Client()))

	result, err := p.Plan(context.Background(), types.Query{Text: "how does X work", Intent: types.IntentInformational})
	require.NoError(t, err)
	require.Equal(t, []string{"Intro", "Details"}, result.Sections)
	require.Len(t, result.SearchQueries, 1)
	require.Equal(t, "q1", result.SearchQueries[0].Text)
}

func TestPlanFailsOnEmptySections(t *testing.T) {
	srv := jsonServer(t, `{"sections": [], "search_queries": [{"query": "q1", "purpose": "p", "priority": 1}], "rationale": "r"}`)
	defer srv.Close()

	cfg := planCfg(srv.URL)
	p := NewPlanner(cfg, llmgateway.New(cfg, srv.Client()))

	_, err := p.Plan(context.Background(), types.Query{Text: "q"})
	require.ErrorIs(t, err, types.ErrPlanningFailed)
}

func TestPlanFailsOnEmptySearchQueries(t *testing.T) {
	srv := jsonServer(t, `{"sections": ["Intro"], "search_queries": [], "rationale": "r"}`)
	defer srv.Close()

	cfg := planCfg(srv.URL)
	p := NewPlanner(cfg, llmgateway.New(cfg, srv.Client()))

	_, err := p.Plan(context.Background(), types.Query{Text: "q"})
	require.ErrorIs(t, err, types.ErrPlanningFailed)
}

func TestPlanDefaultsPriorityWhenMissing(t *testing.T) {
	srv := jsonServer(t, `{"sections": ["Intro"], "search_queries": [{"query": "q1", "purpose": "p"}], "rationale": "r"}`)
	defer srv.Close()

	cfg := planCfg(srv.URL)
	p := NewPlanner(cfg, llmgateway.New(cfg, srv.Client()))

	result, err := p.Plan(context.Background(), types.Query{Text: "q"})
	require.NoError(t, err)
	require.Equal(t, 3, result.SearchQueries[0].Priority)
}
