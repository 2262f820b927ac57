// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble implements the Context Assembler: embeds summaries and
// the query, upserts into the Vector Store, pulls the top-k candidates by
// cosine similarity, optionally reorders them with the Reranker, and maps
// scores into [0,1]. Implements spec §4.9.
package assemble

import (
	"context"
	"fmt"
	"math"

	"github.com/pdiddy/research-engine/internal/rerank"
	"github.com/pdiddy/research-engine/internal/vectorstore"
	"github.com/pdiddy/research-engine/pkg/types"
)

// Embedder is the subset of embedclient.Client the Assembler needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Assembler builds a ContextPackage from a run's accumulated summaries.
type Assembler struct {
	embedder Embedder
	store    *vectorstore.Store
	reranker rerank.Reranker
	topKSum  float64
}

// New builds an Assembler. reranker may be rerank.New's identity
// implementation when disabled; it is never nil.
func New(cfg types.Config, embedder Embedder, store *vectorstore.Store, reranker rerank.Reranker) *Assembler {
	topKSum := cfg.TopKSum
	if topKSum <= 0 {
		topKSum = 0.5
	}
	return &Assembler{embedder: embedder, store: store, reranker: reranker, topKSum: topKSum}
}

// Assemble embeds query and every summary's text in a single batch call,
// upserts the summaries into the Vector Store, retrieves the top
// ceil(topKSum*n) candidates by cosine similarity, reorders them via the
// Reranker, and returns a ContextPackage with scores mapped into [0,1]
// (spec §4.9: negative cosine values map to 0).
func (a *Assembler) Assemble(ctx context.Context, query string, allSummaries []types.Summary) (types.ContextPackage, error) {
	if len(allSummaries) == 0 {
		return types.ContextPackage{}, nil
	}

	texts := make([]string, len(allSummaries)+1)
	for i, s := range allSummaries {
		texts[i] = s.Text
	}
	texts[len(allSummaries)] = query

	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return types.ContextPackage{}, fmt.Errorf("embedding summaries and query: %w", err)
	}
	summaryVectors, queryVector := vectors[:len(allSummaries)], vectors[len(allSummaries)]

	if err := a.upsert(ctx, allSummaries, summaryVectors); err != nil {
		return types.ContextPackage{}, err
	}

	k := int(math.Ceil(a.topKSum * float64(len(allSummaries))))
	if k < 1 {
		k = 1
	}
	scored, err := a.store.TopK(ctx, queryVector, k)
	if err != nil {
		return types.ContextPackage{}, fmt.Errorf("retrieving top-k candidates: %w", err)
	}

	scored = a.rerankScored(ctx, query, scored)

	summaryByURL := make(map[string]types.Summary, len(allSummaries))
	for _, s := range allSummaries {
		summaryByURL[s.SourceURL] = s
	}

	selected := make([]types.Summary, 0, len(scored))
	scores := make(map[string]float64, len(scored))
	for _, sc := range scored {
		full, ok := summaryByURL[sc.Chunk.SourceURL]
		if !ok {
			full = types.Summary{SourceURL: sc.Chunk.SourceURL, Text: sc.Chunk.Text}
		}
		selected = append(selected, full)
		scores[sc.Chunk.SourceURL] = mapScore(sc.Score)
	}

	excluded := len(allSummaries) - len(selected)
	if excluded < 0 {
		excluded = 0
	}

	return types.ContextPackage{
		SelectedSummaries: selected,
		Scores:            scores,
		ExcludedCount:     excluded,
	}, nil
}

func (a *Assembler) upsert(ctx context.Context, summaries []types.Summary, vectors [][]float32) error {
	records := make([]vectorstore.Record, len(summaries))
	for i, s := range summaries {
		records[i] = vectorstore.Record{
			Chunk: types.Chunk{
				ID:        s.SourceURL,
				SourceURL: s.SourceURL,
				Text:      s.Text,
				Embedding: vectors[i],
			},
			Title: s.Title,
		}
	}
	return a.store.Upsert(ctx, records)
}

// rerankScored reorders scored via the Reranker while keeping each chunk's
// original cosine score (the Reranker only changes order, not the score
// reported in the ContextPackage).
func (a *Assembler) rerankScored(ctx context.Context, query string, scored []vectorstore.ScoredChunk) []vectorstore.ScoredChunk {
	if len(scored) == 0 {
		return scored
	}
	items := make([]rerank.Item, len(scored))
	for i, sc := range scored {
		items[i] = rerank.Item{Text: sc.Chunk.Text, Ref: sc}
	}
	ranked := a.reranker.Rerank(ctx, query, items, len(items))

	out := make([]vectorstore.ScoredChunk, 0, len(ranked))
	for _, r := range ranked {
		if sc, ok := r.Item.Ref.(vectorstore.ScoredChunk); ok {
			out = append(out, sc)
		}
	}
	if len(out) == 0 {
		return scored
	}
	return out
}

// mapScore clips a cosine similarity (range [-1,1]) into [0,1] by mapping
// negative values to 0, per spec §4.9.
func mapScore(cosine float64) float64 {
	if cosine < 0 {
		return 0
	}
	return cosine
}
