// simbad is the knowledge-base retrieval and ingestion daemon.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/config"
	"github.com/zilogo/simba/internal/document"
	"github.com/zilogo/simba/internal/embedding"
	"github.com/zilogo/simba/internal/ingest"
	"github.com/zilogo/simba/internal/lexical"
	"github.com/zilogo/simba/internal/reranker"
	"github.com/zilogo/simba/internal/retrieval"
	"github.com/zilogo/simba/internal/server"
	minio "github.com/zilogo/simba/internal/storage/minio"
	"github.com/zilogo/simba/internal/vectordb/qdrant"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	qdrantClient, err := qdrant.NewClient(cfg.Qdrant, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Qdrant client")
	}
	gateway := qdrant.NewGateway(qdrantClient)

	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MinIO client")
	}
	if err := minioClient.Connect(context.Background()); err != nil {
		logger.WithError(err).Warn("MinIO unavailable at startup, ingestion will fail until it recovers")
	}

	embedder, err := embedding.NewProvider(cfg.Embedding, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create embedding provider")
	}

	rerank, err := reranker.NewProvider(cfg.Reranker, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create reranker")
	}

	tokenizer, err := lexical.NewTokenizer()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load segmentation dictionary")
	}
	registry := lexical.NewRegistry(tokenizer, logger)

	retriever, err := retrieval.NewService(cfg.Retrieval, gateway, embedder, registry, rerank, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create retrieval service")
	}

	docs := document.NewMemStore()
	ingestor, err := ingest.NewIngestor(cfg.Ingest, docs, minioClient, gateway, embedder, registry, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create ingestor")
	}

	srv := server.New(retriever, ingestor, map[string]server.HealthChecker{
		"qdrant": qdrantClient,
		"minio":  minioClient,
	}, logger)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Router(cfg.Server.Mode),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
	_ = minioClient.Close()
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
