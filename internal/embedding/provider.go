package embedding

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/kberr"
	"github.com/zilogo/simba/internal/metrics"
)

// Provider is the embedding service handed to the orchestrators. It owns
// the backend and the query caches; construct one at startup and share it.
type Provider struct {
	backend     Backend
	denseCache  *ttlCache[[]float32]
	sparseCache *ttlCache[SparseVector]
	logger      *logrus.Logger
}

// NewProvider builds the configured backend and its caches. Fails with a
// ConfigError on an unknown provider or missing API settings.
func NewProvider(cfg *Config, logger *logrus.Logger) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	backend, err := NewBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Provider{
		backend:     backend,
		denseCache:  newTTLCache[[]float32](cfg.CacheSize, cfg.CacheTTL),
		sparseCache: newTTLCache[SparseVector](cfg.CacheSize, cfg.CacheTTL),
		logger:      logger,
	}, nil
}

// NewProviderWithBackend wires an explicit backend, used by tests.
func NewProviderWithBackend(backend Backend, cfg *Config, logger *logrus.Logger) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{
		backend:     backend,
		denseCache:  newTTLCache[[]float32](cfg.CacheSize, cfg.CacheTTL),
		sparseCache: newTTLCache[SparseVector](cfg.CacheSize, cfg.CacheTTL),
		logger:      logger,
	}
}

// Dimension returns the dense vector dimension of the backend.
func (p *Provider) Dimension() int {
	return p.backend.Dimension()
}

// SupportsSparse reports whether the backend can produce sparse vectors.
func (p *Provider) SupportsSparse() bool {
	_, ok := p.backend.(SparseBackend)
	return ok
}

// EmbedTexts generates dense embeddings for a batch of texts. Uncached;
// meant for document chunks during ingestion.
func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	timer := metrics.NewTimer(metrics.EmbeddingDuration)
	defer timer.ObserveDuration()
	return p.backend.Embed(ctx, texts)
}

// EmbedQuery generates a dense embedding for a single text, cached with a
// bounded TTL to avoid recomputing repeated queries.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := p.denseCache.Get(text); ok {
		return cached, nil
	}

	vectors, err := p.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, kberr.NewUpstream("embedding", errNoVectors)
	}
	p.denseCache.Set(text, vectors[0])
	return vectors[0], nil
}

// EmbedSparseTexts generates sparse embeddings for a batch of texts.
// Fails with a ConfigError when the backend has no sparse support.
func (p *Provider) EmbedSparseTexts(ctx context.Context, texts []string) ([]SparseVector, error) {
	sparse, ok := p.backend.(SparseBackend)
	if !ok {
		return nil, kberr.NewConfig("sparse embeddings require the local provider, the configured backend is dense-only")
	}
	return sparse.EmbedSparse(ctx, texts)
}

// EmbedSparseQuery generates a sparse embedding for a single text, cached.
func (p *Provider) EmbedSparseQuery(ctx context.Context, text string) (SparseVector, error) {
	if cached, ok := p.sparseCache.Get(text); ok {
		return cached, nil
	}

	vectors, err := p.EmbedSparseTexts(ctx, []string{text})
	if err != nil {
		return SparseVector{}, err
	}
	if len(vectors) == 0 {
		return SparseVector{}, kberr.NewUpstream("embedding", errNoVectors)
	}
	p.sparseCache.Set(text, vectors[0])
	return vectors[0], nil
}

// ClearCaches drops both query caches, used on configuration reload.
func (p *Provider) ClearCaches() {
	p.denseCache.Clear()
	p.sparseCache.Clear()
}
