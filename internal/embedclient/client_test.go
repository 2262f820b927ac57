// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/pkg/types"
)

func TestEmbedPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(len(text)), float32(i)}})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cfg := types.Config{LLMAPIKey: "k", EmbeddingModel: "m"}
	client := New(cfg, srv.URL, srv.Client())

	texts := []string{"a", "bb", "ccc"}
	vectors, err := client.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	require.Equal(t, float32(1), vectors[0][0])
	require.Equal(t, float32(2), vectors[1][0])
	require.Equal(t, float32(3), vectors[2][0])
}

func TestEmbedBatchesAtLimit(t *testing.T) {
	var calls int
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batchSizes = append(batchSizes, len(req.Input))

		resp := embedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{1}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cfg := types.Config{LLMAPIKey: "k"}
	client := New(cfg, srv.URL, srv.Client())

	texts := make([]string, 2050)
	for i := range texts {
		texts[i] = "t"
	}
	vectors, err := client.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 2050)
	require.Equal(t, 2, calls)
	require.Equal(t, []int{2048, 2}, batchSizes)
}

func TestEmbedFailureDoesNotZeroFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := types.Config{LLMAPIKey: "k"}
	client := New(cfg, srv.URL, srv.Client())

	vectors, err := client.Embed(context.Background(), []string{"a", "b"})
	require.Nil(t, vectors)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrEmbeddingUnavailable))
}
