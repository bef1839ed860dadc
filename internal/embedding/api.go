package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/kberr"
)

// apiBatchSize texts per request. Kept at one because hosted inference
// gateways reject larger payloads with 413 once chunk text gets long.
const apiBatchSize = 1

// apiRequestDelay spaces consecutive requests to stay under rate limits.
const apiRequestDelay = 100 * time.Millisecond

// apiBackend calls an OpenAI-compatible /embeddings endpoint
// (vLLM, sglang, Ollama, hosted gateways). Dense only.
type apiBackend struct {
	model      string
	baseURL    string
	apiKey     string
	dim        int
	httpClient *http.Client
	logger     *logrus.Logger
}

func newAPIBackend(model, baseURL, apiKey string, dim int, timeout time.Duration, logger *logrus.Logger) *apiBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if dim <= 0 {
		dim = 384
	}
	logger.WithFields(logrus.Fields{
		"model":    model,
		"base_url": baseURL,
	}).Info("Initialized API embedding backend")
	return &apiBackend{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		dim:     dim,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (b *apiBackend) Dimension() int {
	return b.dim
}

func (b *apiBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += apiBatchSize {
		end := i + apiBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := b.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		if end < len(texts) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(apiRequestDelay):
			}
		}
	}
	return all, nil
}

func (b *apiBackend) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": b.model,
		"input": texts,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, kberr.NewUpstream("embedding", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, kberr.NewUpstream("embedding",
			fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, string(body)))
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, kberr.NewUpstream("embedding", fmt.Errorf("failed to decode response: %w", err))
	}
	if len(response.Data) != len(texts) {
		return nil, kberr.NewUpstream("embedding",
			fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(response.Data), len(texts)))
	}

	// The API may answer out of order; the index field is authoritative.
	sort.Slice(response.Data, func(i, j int) bool {
		return response.Data[i].Index < response.Data[j].Index
	})

	vectors := make([][]float32, len(response.Data))
	for i, item := range response.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
