// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/internal/rerank"
	"github.com/pdiddy/research-engine/internal/vectorstore"
	"github.com/pdiddy/research-engine/pkg/types"
)

// fakeEmbedder maps known texts to fixed vectors so cosine similarity is
// predictable in tests, and counts how many times Embed was called so
// tests can assert summaries and the query are batched into one call.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func openTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := vectorstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAssembleReturnsTopKOrderedByCosine(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query":         {1, 0, 0},
		"close match":   {0.9, 0.1, 0},
		"distant match": {-1, 0, 0},
	}}
	store := openTestStore(t)
	cfg := types.Config{TopKSum: 1.0}
	a := New(cfg, embedder, store, rerank.New(types.Config{}, nil))

	summaries := []types.Summary{
		{SourceURL: "https://close.test", Text: "close match"},
		{SourceURL: "https://distant.test", Text: "distant match"},
	}

	pkg, err := a.Assemble(context.Background(), "query", summaries)
	require.NoError(t, err)
	require.Len(t, pkg.SelectedSummaries, 2)
	require.Equal(t, "https://close.test", pkg.SelectedSummaries[0].SourceURL)
	require.Equal(t, "https://distant.test", pkg.SelectedSummaries[1].SourceURL)
}

func TestAssembleMapsNegativeCosineToZero(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query":   {1, 0, 0},
		"opposite": {-1, 0, 0},
	}}
	store := openTestStore(t)
	cfg := types.Config{TopKSum: 1.0}
	a := New(cfg, embedder, store, rerank.New(types.Config{}, nil))

	summaries := []types.Summary{{SourceURL: "https://opposite.test", Text: "opposite"}}
	pkg, err := a.Assemble(context.Background(), "query", summaries)
	require.NoError(t, err)
	require.Equal(t, float64(0), pkg.Scores["https://opposite.test"])
}

func TestAssembleReturnsEmptyPackageForNoSummaries(t *testing.T) {
	store := openTestStore(t)
	a := New(types.Config{}, &fakeEmbedder{}, store, rerank.New(types.Config{}, nil))
	pkg, err := a.Assemble(context.Background(), "query", nil)
	require.NoError(t, err)
	require.Empty(t, pkg.SelectedSummaries)
}

func TestAssembleIssuesExactlyOneEmbeddingBatchCall(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
		"a":     {0.9, 0, 0},
		"b":     {0.8, 0, 0},
	}}
	store := openTestStore(t)
	cfg := types.Config{TopKSum: 1.0}
	a := New(cfg, embedder, store, rerank.New(types.Config{}, nil))

	summaries := []types.Summary{
		{SourceURL: "https://a.test", Text: "a"},
		{SourceURL: "https://b.test", Text: "b"},
	}
	_, err := a.Assemble(context.Background(), "query", summaries)
	require.NoError(t, err)
	require.Equal(t, 1, embedder.calls)
}

func TestAssembleExcludedCountReflectsTopKTruncation(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
		"a":     {0.9, 0, 0},
		"b":     {0.8, 0, 0},
		"c":     {0.7, 0, 0},
		"d":     {0.6, 0, 0},
	}}
	store := openTestStore(t)
	cfg := types.Config{TopKSum: 0.5}
	a := New(cfg, embedder, store, rerank.New(types.Config{}, nil))

	summaries := []types.Summary{
		{SourceURL: "https://a.test", Text: "a"},
		{SourceURL: "https://b.test", Text: "b"},
		{SourceURL: "https://c.test", Text: "c"},
		{SourceURL: "https://d.test", Text: "d"},
	}
	pkg, err := a.Assemble(context.Background(), "query", summaries)
	require.NoError(t, err)
	require.Len(t, pkg.SelectedSummaries, 2)
	require.Equal(t, 2, pkg.ExcludedCount)
}
