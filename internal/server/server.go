// Package server exposes the retrieval and ingestion pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/ingest"
	"github.com/zilogo/simba/internal/kberr"
	"github.com/zilogo/simba/internal/retrieval"
)

// Retriever answers queries.
type Retriever interface {
	Retrieve(ctx context.Context, query, orgID, collection string, opts retrieval.Options) ([]retrieval.RetrievedChunk, retrieval.Latency, error)
	DefaultOptions() retrieval.Options
}

// Ingestor drives document processing.
type Ingestor interface {
	Process(ctx context.Context, documentID string) error
	Reprocess(ctx context.Context, documentID string) error
}

// HealthChecker reports backend liveness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires the HTTP routes.
type Server struct {
	retriever Retriever
	ingestor  Ingestor
	health    map[string]HealthChecker
	logger    *logrus.Logger
}

// New creates a Server. The health map associates a backend name with its
// checker; both appear verbatim in the health endpoint response.
func New(retriever Retriever, ingestor Ingestor, health map[string]HealthChecker, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		retriever: retriever,
		ingestor:  ingestor,
		health:    health,
		logger:    logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router(mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/retrieve", s.handleRetrieve)
		documents := api.Group("/documents")
		{
			documents.POST("/:id/process", s.handleProcess)
			documents.POST("/:id/reprocess", s.handleReprocess)
		}
	}
	return r
}

type retrieveRequest struct {
	Query          string   `json:"query" binding:"required"`
	OrganizationID string   `json:"organization_id" binding:"required"`
	Collection     string   `json:"collection" binding:"required"`
	Limit          *int     `json:"limit"`
	MinScore       *float64 `json:"min_score"`
	Rerank         *bool    `json:"rerank"`
	Hybrid         *bool    `json:"hybrid"`
}

type retrieveResponse struct {
	Chunks  []retrieval.RetrievedChunk `json:"chunks"`
	Context string                     `json:"context"`
	Latency retrieval.Latency          `json:"latency"`
}

func (s *Server) handleRetrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := s.retriever.DefaultOptions()
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}
	if req.MinScore != nil {
		opts.MinScore = *req.MinScore
	}
	if req.Rerank != nil {
		opts.Rerank = *req.Rerank
	}
	if req.Hybrid != nil {
		opts.Hybrid = *req.Hybrid
	}

	chunks, latency, err := s.retriever.Retrieve(c.Request.Context(), req.Query, req.OrganizationID, req.Collection, opts)
	if err != nil {
		s.logger.WithError(err).Error("Retrieval failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, retrieveResponse{
		Chunks:  chunks,
		Context: retrieval.FormatContext(chunks),
		Latency: latency,
	})
}

func (s *Server) handleProcess(c *gin.Context) {
	documentID := c.Param("id")
	if err := s.ingestor.Process(c.Request.Context(), documentID); err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Error("Processing failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "document_id": documentID})
}

func (s *Server) handleReprocess(c *gin.Context) {
	documentID := c.Param("id")
	if err := s.ingestor.Reprocess(c.Request.Context(), documentID); err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Error("Reprocessing failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "document_id": documentID})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	backends := gin.H{}
	for name, checker := range s.health {
		if err := checker.HealthCheck(c.Request.Context()); err != nil {
			backends[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			backends[name] = "ok"
		}
	}
	c.JSON(status, gin.H{"status": httpStatusWord(status), "backends": backends})
}

func httpStatusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func statusFor(err error) int {
	var statusErr *ingest.StatusError
	switch {
	case errors.As(err, &statusErr):
		return http.StatusConflict
	case kberr.IsNotFound(err):
		return http.StatusNotFound
	case kberr.IsParse(err):
		return http.StatusUnprocessableEntity
	case kberr.IsConfig(err):
		return http.StatusInternalServerError
	case kberr.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
