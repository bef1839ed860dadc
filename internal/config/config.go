// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/zilogo/simba/internal/embedding"
	"github.com/zilogo/simba/internal/ingest"
	"github.com/zilogo/simba/internal/reranker"
	"github.com/zilogo/simba/internal/retrieval"
	minio "github.com/zilogo/simba/internal/storage/minio"
	"github.com/zilogo/simba/internal/vectordb/qdrant"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Qdrant    *qdrant.Config
	MinIO     *minio.Config
	Embedding *embedding.Config
	Reranker  *reranker.Config
	Retrieval *retrieval.Config
	Ingest    *ingest.Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load builds the configuration from environment variables, falling back to
// defaults for anything unset.
func Load() *Config {
	qdrantCfg := qdrant.DefaultConfig()
	qdrantCfg.Host = getEnv("QDRANT_HOST", qdrantCfg.Host)
	qdrantCfg.Port = getIntEnv("QDRANT_PORT", qdrantCfg.Port)
	qdrantCfg.APIKey = getEnv("QDRANT_API_KEY", "")
	qdrantCfg.UseTLS = getBoolEnv("QDRANT_USE_TLS", qdrantCfg.UseTLS)
	qdrantCfg.Timeout = getDurationEnv("QDRANT_TIMEOUT", qdrantCfg.Timeout)

	minioCfg := minio.DefaultConfig()
	minioCfg.Endpoint = getEnv("MINIO_ENDPOINT", minioCfg.Endpoint)
	minioCfg.AccessKey = getEnv("MINIO_ACCESS_KEY", minioCfg.AccessKey)
	minioCfg.SecretKey = getEnv("MINIO_SECRET_KEY", minioCfg.SecretKey)
	minioCfg.UseSSL = getBoolEnv("MINIO_USE_SSL", minioCfg.UseSSL)
	minioCfg.Bucket = getEnv("MINIO_BUCKET", minioCfg.Bucket)

	embeddingCfg := embedding.DefaultConfig()
	embeddingCfg.Provider = getEnv("EMBEDDING_PROVIDER", embeddingCfg.Provider)
	embeddingCfg.BaseURL = getEnv("EMBEDDING_BASE_URL", "")
	embeddingCfg.APIKey = getEnv("EMBEDDING_API_KEY", "")
	embeddingCfg.Dimensions = getIntEnv("EMBEDDING_DIMENSIONS", embeddingCfg.Dimensions)
	embeddingCfg.Timeout = getDurationEnv("EMBEDDING_TIMEOUT", embeddingCfg.Timeout)

	rerankerCfg := reranker.DefaultConfig()
	rerankerCfg.Provider = getEnv("RERANKER_PROVIDER", rerankerCfg.Provider)
	rerankerCfg.BaseURL = getEnv("RERANKER_BASE_URL", "")
	rerankerCfg.APIKey = getEnv("RERANKER_API_KEY", "")
	rerankerCfg.Timeout = getDurationEnv("RERANKER_TIMEOUT", rerankerCfg.Timeout)

	retrievalCfg := retrieval.DefaultConfig()
	retrievalCfg.Limit = getIntEnv("RETRIEVAL_LIMIT", retrievalCfg.Limit)
	retrievalCfg.MinScore = getFloatEnv("RETRIEVAL_MIN_SCORE", retrievalCfg.MinScore)
	retrievalCfg.Rerank = getBoolEnv("RETRIEVAL_RERANK", retrievalCfg.Rerank)
	retrievalCfg.Hybrid = getBoolEnv("RETRIEVAL_HYBRID", retrievalCfg.Hybrid)

	ingestCfg := ingest.DefaultConfig()
	ingestCfg.ChunkSize = getIntEnv("CHUNK_SIZE", ingestCfg.ChunkSize)
	ingestCfg.ChunkOverlap = getIntEnv("CHUNK_OVERLAP", ingestCfg.ChunkOverlap)

	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("PORT", "8090"),
			Mode:            getEnv("GIN_MODE", "release"),
			ReadTimeout:     getDurationEnv("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Qdrant:    qdrantCfg,
		MinIO:     minioCfg,
		Embedding: embeddingCfg,
		Reranker:  rerankerCfg,
		Retrieval: retrievalCfg,
		Ingest:    ingestCfg,
	}
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Qdrant.Validate(); err != nil {
		return err
	}
	if err := c.MinIO.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	return c.Ingest.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
