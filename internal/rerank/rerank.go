// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rerank implements the Reranker component: an optional external
// relevance reorder step used both before scraping (on search-result
// snippets) and during context assembly (on selected summaries). Implements
// spec §4.7. When disabled or unavailable it degrades to identity order
// truncated to top_k and must never panic on empty input.
//
// The multi-format request cascade (Jina, Cohere, embeddings-similarity
// fallback) is grounded on original_source/stages/reranker.py.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"

	"github.com/pdiddy/research-engine/pkg/types"
)

// Item is one candidate passed to Rerank. Ref carries the caller's original
// value through the reorder so callers never need index bookkeeping.
type Item struct {
	Text string
	Ref  any
}

// Ranked is one reranked item with its relevance score.
type Ranked struct {
	Item  Item
	Score float64
}

// Reranker scores items against a query and returns the top_k in descending
// score order. Implementations never error outward: any failure degrades to
// the identity fallback.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []Item, topK int) []Ranked
}

// New returns the configured Reranker. If cfg disables reranking or omits a
// URL/model, the returned Reranker is the stateless identity fallback.
func New(cfg types.Config, httpClient *http.Client) Reranker {
	if !cfg.UseReranker || cfg.RerankerURL == "" || cfg.RerankerModel == "" {
		return identityReranker{}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &httpReranker{
		client: httpClient,
		url:    cfg.RerankerURL,
		apiKey: cfg.RerankerAPIKey,
		model:  cfg.RerankerModel,
	}
}

// identityReranker preserves input order, attaching a descending synthetic
// score so callers can treat the output uniformly regardless of provider.
type identityReranker struct{}

func (identityReranker) Rerank(_ context.Context, _ string, items []Item, topK int) []Ranked {
	return identityFallback(items, topK)
}

func identityFallback(items []Item, topK int) []Ranked {
	n := len(items)
	if n == 0 {
		return nil
	}
	if topK <= 0 || topK > n {
		topK = n
	}
	out := make([]Ranked, topK)
	for i := 0; i < topK; i++ {
		out[i] = Ranked{Item: items[i], Score: 1.0 - float64(i)/float64(n)}
	}
	return out
}

// httpReranker calls an external reranker endpoint once, using the Jina
// request/response shape (Cohere's is wire-compatible for request and
// response in the cases this client needs), then tries an
// embeddings-similarity fallback. If both fail, items keep identity order.
type httpReranker struct {
	client *http.Client
	url    string
	apiKey string
	model  string
}

func (r *httpReranker) Rerank(ctx context.Context, query string, items []Item, topK int) []Ranked {
	if len(items) == 0 {
		return nil
	}
	if topK <= 0 || topK > len(items) {
		topK = len(items)
	}

	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = it.Text
	}

	if ranked, ok := r.rerankJinaFormat(ctx, query, docs, topK); ok {
		return attach(ranked, items)
	}
	if ranked, ok := r.rerankEmbeddingFormat(ctx, query, docs, topK); ok {
		return attach(ranked, items)
	}
	return identityFallback(items, topK)
}

type scoredIndex struct {
	index int
	score float64
}

func attach(scored []scoredIndex, items []Item) []Ranked {
	out := make([]Ranked, 0, len(scored))
	for _, s := range scored {
		if s.index < 0 || s.index >= len(items) {
			continue
		}
		out = append(out, Ranked{Item: items[s.index], Score: s.score})
	}
	return out
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// rerankJinaFormat is wire-compatible with both Jina's and Cohere's rerank
// APIs: identical request shape, identical results[].{index,relevance_score}
// response shape.
func (r *httpReranker) rerankJinaFormat(ctx context.Context, query string, docs []string, topK int) ([]scoredIndex, bool) {
	payload, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs, TopN: topK})
	if err != nil {
		return nil, false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false
	}
	if len(parsed.Results) == 0 {
		return nil, false
	}

	out := make([]scoredIndex, len(parsed.Results))
	for i, res := range parsed.Results {
		out[i] = scoredIndex{index: res.Index, score: res.RelevanceScore}
	}
	return out, true
}

type embedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// rerankEmbeddingFormat embeds the query and every document individually
// through an OpenAI-compatible /embeddings endpoint and scores by cosine
// similarity. It is the slowest and last-tried format, matching the
// original's fallback ordering.
func (r *httpReranker) rerankEmbeddingFormat(ctx context.Context, query string, docs []string, topK int) ([]scoredIndex, bool) {
	queryVec, ok := r.embedOne(ctx, query)
	if !ok {
		return nil, false
	}

	scored := make([]scoredIndex, 0, len(docs))
	for i, doc := range docs {
		docVec, ok := r.embedOne(ctx, doc)
		if !ok {
			return nil, false
		}
		scored = append(scored, scoredIndex{index: i, score: cosine(queryVec, docVec)})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, true
}

func (r *httpReranker) embedOne(ctx context.Context, text string) ([]float32, bool) {
	payload, err := json.Marshal(embedRequest{Input: text, Model: r.model})
	if err != nil {
		return nil, false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Data) == 0 {
		return nil, false
	}
	return parsed.Data[0].Embedding, true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
