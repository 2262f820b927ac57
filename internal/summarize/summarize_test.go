// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/pkg/types"
)

func messageServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func baseConfig(endpoint string) types.Config {
	cfg := types.Config{
		LLMEndpoint:      endpoint,
		LLMAPIKey:        "test-key",
		LLMMaxRetries:    1,
		MRSDefault:       "default-model",
		MRSGeneral:       "general-model",
		MRSResearch:      "research-model",
		EnableTableAware: true,
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestSummarizeDirectForShortContent(t *testing.T) {
	srv := messageServer(t, "This source discusses the query topic in depth.")
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	gw := llmgateway.New(cfg, srv.Client())
	s := New(cfg, gw, nil)

	content := types.ScrapedContent{URL: "https://arxiv.org/abs/123", Title: "A Paper", MarkdownBody: "Short body."}
	summary, ok := s.Summarize(context.Background(), content, "query text")
	require.True(t, ok)
	require.Equal(t, "This source discusses the query topic in depth.", summary.Text)
	require.Equal(t, types.ContentResearch, summary.ContentType)
	require.Contains(t, summary.Citations, content.URL)
}

func TestSummarizeReturnsFalseOnEmptyContent(t *testing.T) {
	s := New(types.Config{}, nil, nil)
	_, ok := s.Summarize(context.Background(), types.ScrapedContent{URL: "https://example.com"}, "q")
	require.False(t, ok)
}

func TestSummarizeReturnsFalseOnGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	gw := llmgateway.New(cfg, srv.Client())
	s := New(cfg, gw, nil)

	content := types.ScrapedContent{URL: "https://example.com", MarkdownBody: "Body text."}
	_, ok := s.Summarize(context.Background(), content, "q")
	require.False(t, ok)
}

func TestSummarizeMapReduceForLongContent(t *testing.T) {
	srv := messageServer(t, "chunk or final summary text")
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	gw := llmgateway.New(cfg, srv.Client())
	s := New(cfg, gw, nil)

	longBody := strings.Repeat("Paragraph with content about the topic. ", 3000)
	require.Greater(t, len(longBody), directSummarizationChars)

	content := types.ScrapedContent{URL: "https://example.com/article", MarkdownBody: longBody}
	summary, ok := s.Summarize(context.Background(), content, "q")
	require.True(t, ok)
	require.Equal(t, "chunk or final summary text", summary.Text)
}

func TestSummarizeMoveTablesIntoCompactedOrPreserved(t *testing.T) {
	srv := messageServer(t, "summary mentioning the table")
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	gw := llmgateway.New(cfg, srv.Client())
	s := New(cfg, gw, nil)

	content := types.ScrapedContent{
		URL: "https://example.com",
		MarkdownBody: "Intro.\n\n| Name | Score |\n| --- | --- |\n| Alice | 9 |\n| Bob | 7 |\n\nOutro.",
	}
	summary, ok := s.Summarize(context.Background(), content, "q")
	require.True(t, ok)
	require.Len(t, summary.PreservedTables, 1)
	require.Empty(t, summary.CompactedTables)
}

func TestSummarizeManyDropsFailuresButKeepsOrder(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := map[string]any{"content": []map[string]string{{"type": "text", "text": "ok summary"}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	gw := llmgateway.New(cfg, srv.Client())
	s := New(cfg, gw, nil)

	contents := []types.ScrapedContent{
		{URL: "https://a.test", MarkdownBody: "Body A."},
		{URL: "https://b.test", MarkdownBody: "Body B."},
		{URL: "https://c.test", MarkdownBody: "Body C."},
	}
	summaries := s.SummarizeMany(context.Background(), contents, "q", 1)
	require.Len(t, summaries, 2)
	require.Equal(t, "https://a.test", summaries[0].SourceURL)
	require.Equal(t, "https://c.test", summaries[1].SourceURL)
}
