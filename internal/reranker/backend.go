package reranker

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/kberr"
)

// Backend scores documents against a query with a cross-encoder.
// Higher scores mean more relevant.
type Backend interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}

// Config holds reranker backend configuration.
type Config struct {
	// Provider is a "provider:model" descriptor, e.g. "local:overlap"
	// or "api:bge-reranker-base".
	Provider string        `json:"provider" yaml:"provider"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	APIKey   string        `json:"api_key" yaml:"api_key"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: "local:overlap",
		Timeout:  60 * time.Second,
	}
}

// ParseProviderString splits a "provider:model" descriptor. A bare model
// name maps to the local provider.
func ParseProviderString(s string) (provider, model string) {
	if idx := strings.Index(s, ":"); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return "local", s
}

// NewBackend builds a backend from the configuration.
func NewBackend(config *Config, logger *logrus.Logger) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	provider, model := ParseProviderString(config.Provider)
	switch provider {
	case "local":
		return newLocalBackend(), nil
	case "api":
		if config.BaseURL == "" {
			return nil, kberr.NewConfig("reranker api provider requires a base URL")
		}
		return newAPIBackend(config, model, logger), nil
	default:
		return nil, kberr.NewConfig("unknown reranker provider: %s", provider)
	}
}
