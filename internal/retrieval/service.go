// Package retrieval answers queries against an indexed collection, fusing
// dense, lexical and cross-encoder signals into one ranked result list.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/embedding"
	"github.com/zilogo/simba/internal/fusion"
	"github.com/zilogo/simba/internal/kberr"
	"github.com/zilogo/simba/internal/lexical"
	"github.com/zilogo/simba/internal/metrics"
	"github.com/zilogo/simba/internal/reranker"
	"github.com/zilogo/simba/internal/vectordb/qdrant"
)

// RetrievedChunk is a ranked passage surfaced to callers. The score's
// meaning depends on the pipeline stage that produced it: cosine similarity,
// RRF fusion score or cross-encoder score. Scores from different stages are
// not comparable.
type RetrievedChunk struct {
	DocumentID    string  `json:"document_id"`
	DocumentName  string  `json:"document_name"`
	ChunkText     string  `json:"chunk_text"`
	ChunkPosition int     `json:"chunk_position"`
	Score         float64 `json:"score"`
}

// Latency breaks down where a retrieve call spent its time.
type Latency struct {
	EmbeddingMS       float64 `json:"embedding_ms"`
	SparseEmbeddingMS float64 `json:"sparse_embedding_ms,omitempty"`
	BM25MS            float64 `json:"bm25_ms,omitempty"`
	SearchMS          float64 `json:"search_ms"`
	RerankMS          float64 `json:"rerank_ms,omitempty"`
	TotalMS           float64 `json:"total_ms"`
}

// Options control a single retrieve call.
type Options struct {
	Limit    int
	MinScore float64
	Rerank   bool
	Hybrid   bool
}

// Config holds the retrieval defaults applied when callers do not override.
type Config struct {
	Limit    int     `json:"limit" yaml:"limit"`
	MinScore float64 `json:"min_score" yaml:"min_score"`
	Rerank   bool    `json:"rerank" yaml:"rerank"`
	Hybrid   bool    `json:"hybrid" yaml:"hybrid"`
}

// DefaultConfig returns the default retrieval settings.
func DefaultConfig() *Config {
	return &Config{
		Limit:    8,
		MinScore: 0.3,
		Rerank:   true,
		Hybrid:   false,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if c.MinScore < 0 {
		return fmt.Errorf("min_score must not be negative")
	}
	return nil
}

// VectorStore is the slice of the vector gateway retrieval needs.
type VectorStore interface {
	Search(ctx context.Context, orgID, collection string, vector []float32, limit int, scoreThreshold float64) ([]qdrant.ScoredPoint, error)
	HybridQuery(ctx context.Context, orgID, collection string, dense []float32, sparse *embedding.SparseVector, limit int) ([]qdrant.ScoredPoint, error)
}

// Embedder produces query embeddings.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedSparseQuery(ctx context.Context, text string) (embedding.SparseVector, error)
	SupportsSparse() bool
}

// Service is the retrieval orchestrator.
type Service struct {
	config   *Config
	store    VectorStore
	embedder Embedder
	lexical  *lexical.Registry
	reranker *reranker.Provider
	logger   *logrus.Logger
}

// NewService builds a retrieval Service.
func NewService(config *Config, store VectorStore, embedder Embedder, registry *lexical.Registry, rr *reranker.Provider, logger *logrus.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, kberr.NewConfig("invalid retrieval config: %v", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		config:   config,
		store:    store,
		embedder: embedder,
		lexical:  registry,
		reranker: rr,
		logger:   logger,
	}, nil
}

// DefaultOptions returns the configured defaults as per-call options.
func (s *Service) DefaultOptions() Options {
	return Options{
		Limit:    s.config.Limit,
		MinScore: s.config.MinScore,
		Rerank:   s.config.Rerank,
		Hybrid:   s.config.Hybrid,
	}
}

func ms(since time.Time) float64 {
	return float64(time.Since(since)) / float64(time.Millisecond)
}

// Retrieve answers a query against the tenant collection. A missing
// collection degrades to an empty result; every other failure propagates.
// The latency breakdown is always returned, even on the degraded path.
func (s *Service) Retrieve(ctx context.Context, query, orgID, collection string, opts Options) ([]RetrievedChunk, Latency, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.config.Limit
	}

	log := s.logger.WithFields(logrus.Fields{
		"collection": collection,
		"org_id":     orgID,
		"limit":      opts.Limit,
		"min_score":  opts.MinScore,
		"rerank":     opts.Rerank,
		"hybrid":     opts.Hybrid,
	})
	log.WithField("query", truncate(query, 100)).Info("Starting retrieval")

	var latency Latency
	totalStart := time.Now()
	timer := metrics.NewTimer(metrics.RetrievalDuration)
	defer timer.ObserveDuration()

	embedStart := time.Now()
	dense, err := s.embedder.EmbedQuery(ctx, query)
	latency.EmbeddingMS = ms(embedStart)
	if err != nil {
		latency.TotalMS = ms(totalStart)
		return nil, latency, err
	}

	var sparse *embedding.SparseVector
	if opts.Hybrid && s.embedder.SupportsSparse() {
		sparseStart := time.Now()
		sv, err := s.embedder.EmbedSparseQuery(ctx, query)
		latency.SparseEmbeddingMS = ms(sparseStart)
		if err != nil {
			latency.TotalMS = ms(totalStart)
			return nil, latency, err
		}
		sparse = &sv
	}

	// Widen the candidate pool when a later stage will narrow it again.
	searchLimit := opts.Limit
	if opts.Rerank || opts.Hybrid {
		searchLimit = opts.Limit * 4
	}

	searchStart := time.Now()
	var points []qdrant.ScoredPoint
	if opts.Hybrid && sparse != nil {
		points, err = s.store.HybridQuery(ctx, orgID, collection, dense, sparse, searchLimit)
	} else {
		points, err = s.store.Search(ctx, orgID, collection, dense, searchLimit, 0)
	}
	latency.SearchMS = ms(searchStart)
	if err != nil {
		latency.TotalMS = ms(totalStart)
		if kberr.IsNotFound(err) {
			log.Warn("Collection not found, returning empty result")
			return []RetrievedChunk{}, latency, nil
		}
		return nil, latency, err
	}
	log.WithField("results", len(points)).Debug("Vector search complete")

	// Lexical search plus client-side RRF when hybrid is on.
	if opts.Hybrid {
		bm25Start := time.Now()
		hits := s.lexical.Search(qdrant.CollectionName(orgID, collection), query, searchLimit)
		latency.BM25MS = ms(bm25Start)
		log.WithField("hits", len(hits)).Debug("Lexical search complete")

		if len(hits) > 0 {
			points = fuseWithLexical(points, hits, searchLimit)
			log.WithField("fused", len(points)).Debug("Applied reciprocal rank fusion")
		}
	}

	// Pre-rerank score filter on the dense or fused score.
	chunks := make([]RetrievedChunk, 0, len(points))
	filtered := 0
	for _, p := range points {
		if p.Score >= opts.MinScore {
			chunks = append(chunks, chunkFromPayload(p))
		} else {
			filtered++
		}
	}
	log.WithFields(logrus.Fields{
		"kept":     len(chunks),
		"filtered": filtered,
	}).Debug("Applied score threshold")

	switch {
	case opts.Rerank && len(chunks) > 0:
		rerankStart := time.Now()
		chunks, err = s.rerank(ctx, query, chunks, opts.Limit)
		latency.RerankMS = ms(rerankStart)
		if err != nil {
			latency.TotalMS = ms(totalStart)
			return nil, latency, err
		}
	case opts.Rerank:
		chunks = []RetrievedChunk{}
	default:
		if len(chunks) > opts.Limit {
			chunks = chunks[:opts.Limit]
		}
	}

	latency.TotalMS = ms(totalStart)
	log.WithFields(logrus.Fields{
		"chunks":   len(chunks),
		"total_ms": latency.TotalMS,
	}).Info("Retrieval complete")
	return chunks, latency, nil
}

// fuseWithLexical merges dense hits and lexical hits with reciprocal rank
// fusion, keyed by chunk text. Only hits that also appeared in the dense
// result set survive, since lexical hits carry no payload to reconstitute.
func fuseWithLexical(points []qdrant.ScoredPoint, hits []lexical.Result, limit int) []qdrant.ScoredPoint {
	denseRanked := make([]fusion.Ranked, 0, len(points))
	byText := make(map[string]qdrant.ScoredPoint, len(points))
	for _, p := range points {
		text := payloadString(p.Payload, "chunk_text")
		denseRanked = append(denseRanked, fusion.Ranked{Key: text, Score: p.Score})
		if _, ok := byText[text]; !ok {
			byText[text] = p
		}
	}

	lexRanked := make([]fusion.Ranked, 0, len(hits))
	for _, h := range hits {
		lexRanked = append(lexRanked, fusion.Ranked{Key: h.Text, Score: h.Score})
	}

	fused := fusion.RRF([][]fusion.Ranked{denseRanked, lexRanked}, fusion.DefaultK)

	out := make([]qdrant.ScoredPoint, 0, limit)
	for _, f := range fused {
		if len(out) >= limit {
			break
		}
		p, ok := byText[f.Key]
		if !ok {
			continue
		}
		p.Score = f.Score
		out = append(out, p)
	}
	return out
}

func (s *Service) rerank(ctx context.Context, query string, chunks []RetrievedChunk, topK int) ([]RetrievedChunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.ChunkText
	}

	ranked, err := s.reranker.Rerank(ctx, query, texts, topK)
	if err != nil {
		return nil, err
	}

	out := make([]RetrievedChunk, 0, len(ranked))
	for _, r := range ranked {
		chunk := chunks[r.Index]
		chunk.Score = r.Score
		out = append(out, chunk)
	}
	return out, nil
}

func chunkFromPayload(p qdrant.ScoredPoint) RetrievedChunk {
	return RetrievedChunk{
		DocumentID:    payloadString(p.Payload, "document_id"),
		DocumentName:  payloadString(p.Payload, "document_name"),
		ChunkText:     payloadString(p.Payload, "chunk_text"),
		ChunkPosition: payloadInt(p.Payload, "chunk_position"),
		Score:         p.Score,
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// FormatContext renders chunks as a context block for prompt assembly.
func FormatContext(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return "No relevant information found in the knowledge base."
	}

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, chunk.DocumentName, chunk.ChunkText)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
