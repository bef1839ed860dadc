package qdrant

import (
	"fmt"
	"time"
)

// Config holds Qdrant connection configuration.
type Config struct {
	Host    string        `json:"host" yaml:"host"`
	Port    int           `json:"port" yaml:"port"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	UseTLS  bool          `json:"use_tls" yaml:"use_tls"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Distance metric for dense vectors.
	Distance string `json:"distance" yaml:"distance"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     6333,
		UseTLS:   false,
		Timeout:  30 * time.Second,
		Distance: "Cosine",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Distance == "" {
		return fmt.Errorf("distance is required")
	}
	return nil
}

// GetHTTPURL builds the base URL for the REST API.
func (c *Config) GetHTTPURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}
