package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilogo/simba/internal/document"
	"github.com/zilogo/simba/internal/ingest"
	"github.com/zilogo/simba/internal/kberr"
	"github.com/zilogo/simba/internal/retrieval"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type stubRetriever struct {
	chunks   []retrieval.RetrievedChunk
	err      error
	lastOpts retrieval.Options
}

func (s *stubRetriever) Retrieve(ctx context.Context, query, orgID, collection string, opts retrieval.Options) ([]retrieval.RetrievedChunk, retrieval.Latency, error) {
	s.lastOpts = opts
	if s.err != nil {
		return nil, retrieval.Latency{}, s.err
	}
	return s.chunks, retrieval.Latency{TotalMS: 1}, nil
}

func (s *stubRetriever) DefaultOptions() retrieval.Options {
	return retrieval.Options{Limit: 8, MinScore: 0.3, Rerank: true}
}

type stubIngestor struct {
	processErr   error
	reprocessErr error
	processed    []string
	reprocessed  []string
}

func (s *stubIngestor) Process(ctx context.Context, documentID string) error {
	s.processed = append(s.processed, documentID)
	return s.processErr
}

func (s *stubIngestor) Reprocess(ctx context.Context, documentID string) error {
	s.reprocessed = append(s.reprocessed, documentID)
	return s.reprocessErr
}

type stubHealth struct{ err error }

func (s *stubHealth) HealthCheck(ctx context.Context) error { return s.err }

func newTestRouter(retriever *stubRetriever, ingestor *stubIngestor, health map[string]HealthChecker) http.Handler {
	return New(retriever, ingestor, health, testLogger()).Router("test")
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRetrieveEndpoint(t *testing.T) {
	retriever := &stubRetriever{chunks: []retrieval.RetrievedChunk{
		{DocumentID: "d1", DocumentName: "guide.md", ChunkText: "passage", ChunkPosition: 0, Score: 0.8},
	}}
	router := newTestRouter(retriever, &stubIngestor{}, nil)

	w := postJSON(t, router, "/api/v1/retrieve", payload{
		"query":           "how do queues work",
		"organization_id": "acme",
		"collection":      "kb",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Chunks  []retrieval.RetrievedChunk `json:"chunks"`
		Context string                     `json:"context"`
		Latency retrieval.Latency          `json:"latency"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Chunks, 1)
	assert.Equal(t, "passage", resp.Chunks[0].ChunkText)
	assert.Contains(t, resp.Context, "[Source 1: guide.md]")
	assert.Equal(t, 1.0, resp.Latency.TotalMS)

	// Unset options fall back to the service defaults.
	assert.Equal(t, 8, retriever.lastOpts.Limit)
	assert.True(t, retriever.lastOpts.Rerank)
}

type payload map[string]interface{}

func TestRetrieveEndpointOverrides(t *testing.T) {
	retriever := &stubRetriever{}
	router := newTestRouter(retriever, &stubIngestor{}, nil)

	w := postJSON(t, router, "/api/v1/retrieve", payload{
		"query":           "q",
		"organization_id": "acme",
		"collection":      "kb",
		"limit":           3,
		"min_score":       0.9,
		"rerank":          false,
		"hybrid":          true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, retriever.lastOpts.Limit)
	assert.InDelta(t, 0.9, retriever.lastOpts.MinScore, 1e-9)
	assert.False(t, retriever.lastOpts.Rerank)
	assert.True(t, retriever.lastOpts.Hybrid)
}

func TestRetrieveEndpointValidation(t *testing.T) {
	router := newTestRouter(&stubRetriever{}, &stubIngestor{}, nil)

	w := postJSON(t, router, "/api/v1/retrieve", payload{"query": "q"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetrieveEndpointUpstreamFailure(t *testing.T) {
	retriever := &stubRetriever{err: kberr.NewUpstream("qdrant", errors.New("connection refused"))}
	router := newTestRouter(retriever, &stubIngestor{}, nil)

	w := postJSON(t, router, "/api/v1/retrieve", payload{
		"query":           "q",
		"organization_id": "acme",
		"collection":      "kb",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProcessEndpoint(t *testing.T) {
	ingestor := &stubIngestor{}
	router := newTestRouter(&stubRetriever{}, ingestor, nil)

	w := postJSON(t, router, "/api/v1/documents/doc-1/process", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"doc-1"}, ingestor.processed)
}

func TestProcessEndpointMissingDocument(t *testing.T) {
	ingestor := &stubIngestor{processErr: kberr.NewNotFound("document", "doc-1")}
	router := newTestRouter(&stubRetriever{}, ingestor, nil)

	w := postJSON(t, router, "/api/v1/documents/doc-1/process", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessEndpointParseFailure(t *testing.T) {
	ingestor := &stubIngestor{processErr: kberr.NewParse("document parsing resulted in empty text")}
	router := newTestRouter(&stubRetriever{}, ingestor, nil)

	w := postJSON(t, router, "/api/v1/documents/doc-1/process", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProcessEndpointStatusConflict(t *testing.T) {
	ingestor := &stubIngestor{processErr: &ingest.StatusError{
		DocumentID: "doc-1",
		Status:     document.StatusReady,
		Transition: "process",
	}}
	router := newTestRouter(&stubRetriever{}, ingestor, nil)

	w := postJSON(t, router, "/api/v1/documents/doc-1/process", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "cannot be processed")
}

func TestReprocessEndpoint(t *testing.T) {
	ingestor := &stubIngestor{}
	router := newTestRouter(&stubRetriever{}, ingestor, nil)

	w := postJSON(t, router, "/api/v1/documents/doc-1/reprocess", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"doc-1"}, ingestor.reprocessed)
}

func TestHealthzAllHealthy(t *testing.T) {
	router := newTestRouter(&stubRetriever{}, &stubIngestor{}, map[string]HealthChecker{
		"qdrant": &stubHealth{},
		"minio":  &stubHealth{},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHealthzDegraded(t *testing.T) {
	router := newTestRouter(&stubRetriever{}, &stubIngestor{}, map[string]HealthChecker{
		"qdrant": &stubHealth{err: errors.New("unreachable")},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&stubRetriever{}, &stubIngestor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
