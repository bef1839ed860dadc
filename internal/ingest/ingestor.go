// Package ingest drives a document through download, parsing, chunking,
// embedding and indexing, tracking its processing status along the way.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/chunker"
	"github.com/zilogo/simba/internal/document"
	"github.com/zilogo/simba/internal/embedding"
	"github.com/zilogo/simba/internal/kberr"
	"github.com/zilogo/simba/internal/lexical"
	"github.com/zilogo/simba/internal/metrics"
	"github.com/zilogo/simba/internal/parser"
	"github.com/zilogo/simba/internal/vectordb/qdrant"
)

// Config holds ingestion settings.
type Config struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`
}

// DefaultConfig returns the default chunking settings.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:    400,
		ChunkOverlap: 50,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

// ObjectStore fetches raw document bytes.
type ObjectStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// VectorStore is the slice of the vector gateway ingestion needs.
type VectorStore interface {
	EnsureCollection(ctx context.Context, orgID, collection string, dimension int) error
	CollectionExists(ctx context.Context, orgID, collection string) (bool, error)
	Upsert(ctx context.Context, orgID, collection string, points []qdrant.Point) error
	DeleteByDocument(ctx context.Context, orgID, collection, documentID string) error
	ScrollPayloads(ctx context.Context, orgID, collection string, batchSize int) ([]map[string]interface{}, error)
}

// Embedder produces chunk embeddings.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSparseTexts(ctx context.Context, texts []string) ([]embedding.SparseVector, error)
	Dimension() int
}

// Ingestor is the ingestion orchestrator.
type Ingestor struct {
	config  *Config
	docs    document.Store
	objects ObjectStore
	vectors VectorStore
	embed   Embedder
	lexical *lexical.Registry
	logger  *logrus.Logger
}

// NewIngestor builds an Ingestor.
func NewIngestor(config *Config, docs document.Store, objects ObjectStore, vectors VectorStore, embed Embedder, registry *lexical.Registry, logger *logrus.Logger) (*Ingestor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, kberr.NewConfig("invalid ingest config: %v", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Ingestor{
		config:  config,
		docs:    docs,
		objects: objects,
		vectors: vectors,
		embed:   embed,
		lexical: registry,
		logger:  logger,
	}, nil
}

// StatusError rejects a pipeline entry from a state the state machine does
// not allow. Ready and failed documents leave their state only through
// Reprocess, which purges indexed points first.
type StatusError struct {
	DocumentID string
	Status     document.Status
	Transition string // "process" or "reprocess"
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("document %s cannot be %sed from status %q", e.DocumentID, e.Transition, e.Status)
}

// Process runs a pending document through the full pipeline. Documents in
// any other status are rejected; ready and failed documents go through
// Reprocess instead, which purges their indexed points first. Any pipeline
// failure flips the document to failed with the error message recorded
// verbatim, and the error is returned to the trigger. Partially upserted
// points from a failed run are left in place; Reprocess purges them.
func (ing *Ingestor) Process(ctx context.Context, documentID string) error {
	doc, err := ing.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != document.StatusPending {
		return &StatusError{DocumentID: doc.ID, Status: doc.Status, Transition: "process"}
	}

	log := ing.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"document":    doc.Name,
	})

	if err := ing.docs.SetStatus(ctx, doc.ID, document.StatusProcessing, ""); err != nil {
		return err
	}
	log.Info("Starting document ingestion")

	timer := metrics.NewTimer(metrics.IngestDuration)
	defer timer.ObserveDuration()

	if err := ing.process(ctx, doc, log); err != nil {
		log.WithError(err).Error("Ingestion failed")
		metrics.IngestFailures.Inc()
		if statusErr := ing.docs.SetStatus(ctx, doc.ID, document.StatusFailed, err.Error()); statusErr != nil {
			log.WithError(statusErr).Error("Failed to record failure status")
		}
		return err
	}

	log.Info("Document ingested")
	return nil
}

func (ing *Ingestor) process(ctx context.Context, doc *document.Document, log *logrus.Entry) error {
	collection, err := ing.docs.GetCollection(ctx, doc.CollectionID)
	if err != nil {
		return err
	}

	log.WithField("object_key", doc.ObjectKey).Debug("Downloading document")
	content, err := ing.objects.Download(ctx, doc.ObjectKey)
	if err != nil {
		return err
	}

	text, err := parser.Parse(content, doc.MimeType, doc.Name)
	if err != nil {
		return err
	}
	if isBlank(text) {
		return kberr.NewParse("document parsing resulted in empty text")
	}

	chunks, err := chunker.Split(text, ing.config.ChunkSize, ing.config.ChunkOverlap)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return kberr.NewParse("document produced no chunks")
	}
	log.WithField("chunks", len(chunks)).Debug("Chunked document")

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	dense, err := ing.embed.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	sparse, err := ing.embed.EmbedSparseTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(dense) != len(chunks) || len(sparse) != len(chunks) {
		return kberr.NewUpstream("embedding", fmt.Errorf("expected %d vectors, got %d dense and %d sparse", len(chunks), len(dense), len(sparse)))
	}

	if err := ing.vectors.EnsureCollection(ctx, doc.OrganizationID, collection.Name, ing.embed.Dimension()); err != nil {
		return err
	}

	points := make([]qdrant.Point, len(chunks))
	for i, chunk := range chunks {
		sv := sparse[i]
		points[i] = qdrant.Point{
			ID:     uuid.New().String(),
			Dense:  dense[i],
			Sparse: &sv,
			Payload: map[string]interface{}{
				"document_id":    doc.ID,
				"document_name":  doc.Name,
				"collection_id":  doc.CollectionID,
				"chunk_text":     chunk.Content,
				"chunk_position": chunk.Position,
				"start_char":     chunk.StartChar,
				"end_char":       chunk.EndChar,
			},
		}
	}

	if err := ing.vectors.Upsert(ctx, doc.OrganizationID, collection.Name, points); err != nil {
		return err
	}
	log.WithField("points", len(points)).Debug("Upserted vectors")

	if err := ing.markReady(ctx, doc, collection, len(chunks)); err != nil {
		return err
	}

	ing.refreshLexicalIndex(ctx, doc.OrganizationID, collection.Name, log)
	return nil
}

func (ing *Ingestor) markReady(ctx context.Context, doc *document.Document, collection *document.Collection, chunkCount int) error {
	doc.Status = document.StatusReady
	doc.ChunkCount = chunkCount
	doc.ErrorMessage = ""
	if err := ing.docs.SaveDocument(ctx, doc); err != nil {
		return err
	}

	ready, err := ing.docs.CountReadyDocuments(ctx, collection.ID)
	if err != nil {
		return err
	}
	collection.DocumentCount = ready
	return ing.docs.SaveCollection(ctx, collection)
}

// refreshLexicalIndex rebuilds the collection's BM25 corpus from the indexed
// payloads. Failures here never fail the ingestion run; the index is a
// process-local cache and hybrid search degrades to dense-only without it.
func (ing *Ingestor) refreshLexicalIndex(ctx context.Context, orgID, collectionName string, log *logrus.Entry) {
	payloads, err := ing.vectors.ScrollPayloads(ctx, orgID, collectionName, 256)
	if err != nil {
		log.WithError(err).Warn("Skipping lexical index refresh")
		return
	}

	texts := make([]string, 0, len(payloads))
	for _, payload := range payloads {
		if text, ok := payload["chunk_text"].(string); ok && text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return
	}

	ing.lexical.Build(qdrant.CollectionName(orgID, collectionName), texts)
	log.WithField("documents", len(texts)).Debug("Rebuilt lexical index")
}

// Reprocess purges a document's indexed points and runs the pipeline again.
// Only failed and ready documents may be reprocessed.
func (ing *Ingestor) Reprocess(ctx context.Context, documentID string) error {
	doc, err := ing.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != document.StatusFailed && doc.Status != document.StatusReady {
		return &StatusError{DocumentID: doc.ID, Status: doc.Status, Transition: "reprocess"}
	}

	collection, err := ing.docs.GetCollection(ctx, doc.CollectionID)
	if err != nil {
		return err
	}

	if err := ing.DeleteDocumentVectors(ctx, doc.OrganizationID, collection.Name, doc.ID); err != nil {
		return err
	}
	if err := ing.docs.SetStatus(ctx, doc.ID, document.StatusPending, ""); err != nil {
		return err
	}
	return ing.Process(ctx, documentID)
}

// DeleteDocumentVectors removes a document's points from the collection.
// A missing collection means there is nothing to delete.
func (ing *Ingestor) DeleteDocumentVectors(ctx context.Context, orgID, collectionName, documentID string) error {
	exists, err := ing.vectors.CollectionExists(ctx, orgID, collectionName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return ing.vectors.DeleteByDocument(ctx, orgID, collectionName, documentID)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
