// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedclient implements the Embedding Client: batched embedding
// generation that preserves input order and never substitutes zero vectors
// on failure. Implements spec §4.2. Corrects original_source's per-text
// loop and zero-vector fallback (SPEC_FULL.md discrepancies 1 and 2).
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/research-engine/pkg/types"
)

const maxBatchSize = 2048

// Client is the Embedding Client's public capability.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// New constructs a Client from the pipeline Config. endpoint is the
// embeddings endpoint, distinct from the LLM Gateway's completion endpoint.
func New(cfg types.Config, endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     cfg.LLMAPIKey,
		model:      cfg.EmbeddingModel,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order, issuing one
// native batch API call per <=2048 texts. On any failure it returns
// ErrEmbeddingUnavailable rather than a partial result with zero vectors.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		copy(out[start:end], vectors)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := embedRequest{Model: c.model, Input: batch}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w: %w", err, types.ErrEmbeddingUnavailable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embed response: %w: %w", err, types.ErrEmbeddingUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed API returned HTTP %d: %w", resp.StatusCode, types.ErrEmbeddingUnavailable)
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embed response: %w: %w", err, types.ErrEmbeddingUnavailable)
	}
	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("embed API returned %d vectors for %d inputs: %w", len(parsed.Data), len(batch), types.ErrEmbeddingUnavailable)
	}

	vectors := make([][]float32, len(batch))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embed API returned out-of-range index %d: %w", d.Index, types.ErrEmbeddingUnavailable)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embed API omitted vector for input %d: %w", i, types.ErrEmbeddingUnavailable)
		}
	}
	return vectors, nil
}
