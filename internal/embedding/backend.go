// Package embedding generates dense and sparse vector representations of
// text through pluggable backends: a co-located model computed in-process,
// or a remote OpenAI-compatible embeddings API.
package embedding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/kberr"
)

var errNoVectors = errors.New("backend returned no vectors")

// SparseVector is an index/weight pair representation of term-level signal.
// Indices are unique within a vector and values are non-negative.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Backend produces dense embeddings for batches of text.
type Backend interface {
	// Embed generates one dense vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the fixed dense vector dimension.
	Dimension() int
}

// SparseBackend is implemented by backends that can also produce sparse
// embeddings. Currently only the co-located backend qualifies.
type SparseBackend interface {
	Backend
	// EmbedSparse generates one sparse vector per input text, in input order.
	EmbedSparse(ctx context.Context, texts []string) ([]SparseVector, error)
}

// Config configures the embedding provider.
type Config struct {
	// Provider is a "provider:model" descriptor, e.g. "local:simhash" or
	// "api:BAAI/bge-m3". A bare model name implies the local provider.
	Provider string `json:"provider"`
	// BaseURL is the OpenAI-compatible API root, required for "api".
	BaseURL string `json:"base_url"`
	// APIKey is the optional bearer token for the remote API.
	APIKey string `json:"api_key"`
	// Dimensions is the dense vector dimension.
	Dimensions int `json:"dimensions"`
	// Timeout bounds each remote request.
	Timeout time.Duration `json:"timeout"`
	// CacheSize bounds the single-text query caches.
	CacheSize int `json:"cache_size"`
	// CacheTTL expires cached query embeddings.
	CacheTTL time.Duration `json:"cache_ttl"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:   "local:simhash",
		Dimensions: 384,
		Timeout:    60 * time.Second,
		CacheSize:  1000,
		CacheTTL:   5 * time.Minute,
	}
}

// ParseProviderString splits a "provider:model" descriptor. A descriptor
// without a colon is treated as a local model name for backward
// compatibility with bare model configuration.
func ParseProviderString(s string) (provider, model string) {
	if !strings.Contains(s, ":") {
		return "local", s
	}
	parts := strings.SplitN(s, ":", 2)
	return strings.ToLower(parts[0]), parts[1]
}

// NewBackend constructs the backend named by cfg.Provider. Construction is
// cheap for the remote backend and loads the model for the local one, so
// callers are expected to build a backend once per process and share it.
func NewBackend(cfg *Config, logger *logrus.Logger) (Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	provider, model := ParseProviderString(cfg.Provider)
	switch provider {
	case "local":
		return newLocalBackend(model, cfg.Dimensions, logger), nil
	case "api":
		if cfg.BaseURL == "" {
			return nil, kberr.NewConfig("embedding base URL is required for the api provider")
		}
		return newAPIBackend(model, cfg.BaseURL, cfg.APIKey, cfg.Dimensions, cfg.Timeout, logger), nil
	default:
		return nil, kberr.NewConfig("unknown embedding provider %q, supported: local, api", provider)
	}
}
