package reranker

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/metrics"
)

// Ranked pairs an input document index with its cross-encoder score.
type Ranked struct {
	Index int
	Score float64
}

// Provider wraps a backend with ranking and truncation.
type Provider struct {
	backend Backend
	logger  *logrus.Logger
}

// NewProvider builds a Provider from configuration.
func NewProvider(config *Config, logger *logrus.Logger) (*Provider, error) {
	backend, err := NewBackend(config, logger)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{backend: backend, logger: logger}, nil
}

// NewProviderWithBackend builds a Provider around an existing backend.
func NewProviderWithBackend(backend Backend, logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{backend: backend, logger: logger}
}

// Score scores documents against the query.
func (p *Provider) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	return p.backend.Score(ctx, query, documents)
}

// Rerank scores the texts, sorts descending by score and truncates to topK.
// Empty input returns an empty slice without touching the backend.
func (p *Provider) Rerank(ctx context.Context, query string, texts []string, topK int) ([]Ranked, error) {
	if len(texts) == 0 {
		return []Ranked{}, nil
	}

	timer := metrics.NewTimer(metrics.RerankDuration)
	scores, err := p.backend.Score(ctx, query, texts)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	ranked := make([]Ranked, len(scores))
	for i, score := range scores {
		ranked[i] = Ranked{Index: i, Score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}
