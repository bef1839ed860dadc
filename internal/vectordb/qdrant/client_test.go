package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilogo/simba/internal/embedding"
	"github.com/zilogo/simba/internal/kberr"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	client, err := NewClient(&Config{
		Host:     u.Hostname(),
		Port:     port,
		Timeout:  5 * time.Second,
		Distance: "Cosine",
	}, logger)
	require.NoError(t, err)
	return client, server
}

func TestNewClientInvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{Host: ""}, nil)
	require.Error(t, err)
	assert.True(t, kberr.IsConfig(err))
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var created map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/exists", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"exists": false},
		})
	})
	mux.HandleFunc("/collections/org_docs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		json.NewEncoder(w).Encode(map[string]interface{}{"result": true})
	})

	client, _ := newTestClient(t, mux)
	err := client.EnsureCollection(context.Background(), "org_docs", 384)
	require.NoError(t, err)

	vectors := created["vectors"].(map[string]interface{})
	dense := vectors["dense"].(map[string]interface{})
	assert.Equal(t, float64(384), dense["size"])
	assert.Equal(t, "Cosine", dense["distance"])

	sparse := created["sparse_vectors"].(map[string]interface{})
	assert.Contains(t, sparse, "sparse")
}

func TestEnsureCollectionSkipsWhenPresent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/exists", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"exists": true},
		})
	})
	mux.HandleFunc("/collections/org_docs", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("collection should not be recreated")
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.EnsureCollection(context.Background(), "org_docs", 384))
}

func TestUpsertSendsNamedVectors(t *testing.T) {
	var received map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/points", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{"result": map[string]interface{}{"status": "completed"}})
	})

	client, _ := newTestClient(t, mux)
	err := client.Upsert(context.Background(), "org_docs", []Point{
		{
			ID:    "11111111-1111-1111-1111-111111111111",
			Dense: []float32{0.1, 0.2},
			Sparse: &embedding.SparseVector{
				Indices: []uint32{3, 8},
				Values:  []float32{1.5, 0.5},
			},
			Payload: map[string]interface{}{"document_id": "doc-1", "chunk_text": "hello"},
		},
	})
	require.NoError(t, err)

	points := received["points"].([]interface{})
	require.Len(t, points, 1)
	point := points[0].(map[string]interface{})
	vector := point["vector"].(map[string]interface{})
	assert.Contains(t, vector, "dense")
	sparse := vector["sparse"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(3), float64(8)}, sparse["indices"])

	payload := point["payload"].(map[string]interface{})
	assert.Equal(t, "doc-1", payload["document_id"])
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	require.NoError(t, client.Upsert(context.Background(), "org_docs", nil))
}

func TestSearchParsesHits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/points/search", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		vector := body["vector"].(map[string]interface{})
		assert.Equal(t, "dense", vector["name"])
		assert.Equal(t, true, body["with_payload"])
		assert.Equal(t, float64(0.3), body["score_threshold"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": []map[string]interface{}{
				{"id": "a", "score": 0.9, "payload": map[string]interface{}{"chunk_text": "first"}},
				{"id": "b", "score": 0.4, "payload": map[string]interface{}{"chunk_text": "second"}},
			},
		})
	})

	client, _ := newTestClient(t, mux)
	hits, err := client.Search(context.Background(), "org_docs", []float32{0.1}, 8, 0.3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-9)
	assert.Equal(t, "first", hits[0].Payload["chunk_text"])
}

func TestSearchMissingCollection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Search(context.Background(), "org_missing", []float32{0.1}, 8, 0)
	require.Error(t, err)
	assert.True(t, kberr.IsNotFound(err))
}

func TestHybridQueryPrefetchShape(t *testing.T) {
	var body map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/points/query", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"points": []map[string]interface{}{
					{"id": "a", "score": 0.5, "payload": map[string]interface{}{"chunk_text": "hit"}},
				},
			},
		})
	})

	client, _ := newTestClient(t, mux)
	sparse := &embedding.SparseVector{Indices: []uint32{1}, Values: []float32{2}}
	hits, err := client.HybridQuery(context.Background(), "org_docs", []float32{0.1}, sparse, 32)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	prefetch := body["prefetch"].([]interface{})
	require.Len(t, prefetch, 2)
	assert.Equal(t, "dense", prefetch[0].(map[string]interface{})["using"])
	assert.Equal(t, "sparse", prefetch[1].(map[string]interface{})["using"])

	query := body["query"].(map[string]interface{})
	assert.Equal(t, "rrf", query["fusion"])
}

func TestHybridQuerySkipsEmptySparse(t *testing.T) {
	var body map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/points/query", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"points": []map[string]interface{}{}},
		})
	})

	client, _ := newTestClient(t, mux)
	_, err := client.HybridQuery(context.Background(), "org_docs", []float32{0.1}, nil, 8)
	require.NoError(t, err)

	prefetch := body["prefetch"].([]interface{})
	assert.Len(t, prefetch, 1)
}

func TestDeleteByDocumentFilter(t *testing.T) {
	var body map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/points/delete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]interface{}{"result": map[string]interface{}{"status": "completed"}})
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.DeleteByDocument(context.Background(), "org_docs", "doc-9"))

	filter := body["filter"].(map[string]interface{})
	must := filter["must"].([]interface{})
	require.Len(t, must, 1)
	cond := must[0].(map[string]interface{})
	assert.Equal(t, "document_id", cond["key"])
	assert.Equal(t, "doc-9", cond["match"].(map[string]interface{})["value"])
}

func TestCountByDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/org_docs/points/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"count": 7},
		})
	})

	client, _ := newTestClient(t, mux)
	count, err := client.CountByDocument(context.Background(), "org_docs", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestGatewayNamespacesCollections(t *testing.T) {
	var paths []string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"exists": true, "count": 0, "points": []interface{}{}},
		})
	})

	client, _ := newTestClient(t, handler)
	gateway := NewGateway(client)

	_, err := gateway.CollectionExists(context.Background(), "acme", "kb")
	require.NoError(t, err)
	require.NoError(t, gateway.DeleteByDocument(context.Background(), "acme", "kb", "doc-1"))

	for _, p := range paths {
		assert.Contains(t, p, "/collections/acme_kb")
	}
}
