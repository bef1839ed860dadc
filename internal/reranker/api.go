package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/kberr"
)

type wireConvention int

const (
	conventionUnknown wireConvention = iota
	conventionRerank
	conventionScore
)

func (c wireConvention) String() string {
	switch c {
	case conventionRerank:
		return "rerank"
	case conventionScore:
		return "score"
	default:
		return "unknown"
	}
}

// apiBackend calls a remote cross-encoder service. Providers expose one of
// two wire conventions; the backend detects which one on first use and
// remembers it, retrying the other convention if the remembered one stops
// resolving.
type apiBackend struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger

	mu         sync.Mutex
	convention wireConvention
}

func newAPIBackend(config *Config, model string, logger *logrus.Logger) *apiBackend {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &apiBackend{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (b *apiBackend) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	b.mu.Lock()
	cached := b.convention
	b.mu.Unlock()

	order := []wireConvention{conventionRerank, conventionScore}
	if cached == conventionScore {
		order = []wireConvention{conventionScore, conventionRerank}
	}

	var lastErr error
	for _, convention := range order {
		scores, err := b.scoreWith(ctx, convention, query, documents)
		if err == nil {
			if cached != convention {
				b.mu.Lock()
				b.convention = convention
				b.mu.Unlock()
				b.logger.WithField("convention", convention.String()).Debug("Detected reranker wire convention")
			}
			return scores, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (b *apiBackend) scoreWith(ctx context.Context, convention wireConvention, query string, documents []string) ([]float64, error) {
	switch convention {
	case conventionRerank:
		return b.scoreRerank(ctx, query, documents)
	case conventionScore:
		return b.scoreScore(ctx, query, documents)
	default:
		return nil, kberr.NewUpstream("reranker", fmt.Errorf("no wire convention"))
	}
}

func (b *apiBackend) scoreRerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	body := map[string]interface{}{
		"model":     b.model,
		"query":     query,
		"documents": documents,
	}
	var response struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := b.post(ctx, "/rerank", body, &response); err != nil {
		return nil, err
	}
	if len(response.Results) != len(documents) {
		return nil, kberr.NewUpstream("reranker", fmt.Errorf("expected %d results, got %d", len(documents), len(response.Results)))
	}

	scores := make([]float64, len(documents))
	for _, r := range response.Results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, kberr.NewUpstream("reranker", fmt.Errorf("result index %d out of range", r.Index))
		}
		scores[r.Index] = r.RelevanceScore
	}
	return scores, nil
}

func (b *apiBackend) scoreScore(ctx context.Context, query string, documents []string) ([]float64, error) {
	body := map[string]interface{}{
		"model":  b.model,
		"text_1": query,
		"text_2": documents,
	}
	var response struct {
		Data []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		} `json:"data"`
	}
	if err := b.post(ctx, "/score", body, &response); err != nil {
		return nil, err
	}
	if len(response.Data) != len(documents) {
		return nil, kberr.NewUpstream("reranker", fmt.Errorf("expected %d scores, got %d", len(documents), len(response.Data)))
	}

	sort.Slice(response.Data, func(i, j int) bool { return response.Data[i].Index < response.Data[j].Index })
	scores := make([]float64, len(documents))
	for i, d := range response.Data {
		scores[i] = d.Score
	}
	return scores, nil
}

func (b *apiBackend) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return kberr.NewUpstream("reranker", fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return kberr.NewUpstream("reranker", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return kberr.NewUpstream("reranker", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return kberr.NewUpstream("reranker", fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return kberr.NewUpstream("reranker", fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return kberr.NewUpstream("reranker", fmt.Errorf("decode response: %w", err))
	}
	return nil
}
