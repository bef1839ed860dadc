package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/embedding"
	"github.com/zilogo/simba/internal/kberr"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Point is a single vector record with its payload.
type Point struct {
	ID      string
	Dense   []float32
	Sparse  *embedding.SparseVector
	Payload map[string]interface{}
}

// ScoredPoint is a search hit returned by Qdrant.
type ScoredPoint struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// Client is a Qdrant REST API client.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
}

// NewClient creates a Qdrant client from the configuration.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, kberr.NewConfig("invalid qdrant config: %v", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    config.GetHTTPURL(),
		logger:     logger,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return kberr.NewUpstream("qdrant", fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return kberr.NewUpstream("qdrant", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return kberr.NewUpstream("qdrant", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return kberr.NewUpstream("qdrant", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusNotFound {
		return kberr.NewNotFound("resource", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return kberr.NewUpstream("qdrant", fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return kberr.NewUpstream("qdrant", fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// CollectionExists reports whether the named collection exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	err := c.doRequest(ctx, http.MethodGet, "/collections/"+name+"/exists", nil, &result)
	if err != nil {
		if kberr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return result.Result.Exists, nil
}

// EnsureCollection creates the collection if it does not already exist.
// Collections carry a named dense vector and a named sparse vector.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			denseVectorName: map[string]interface{}{
				"size":     dimension,
				"distance": c.config.Distance,
			},
		},
		"sparse_vectors": map[string]interface{}{
			sparseVectorName: map[string]interface{}{},
		},
	}

	if err := c.doRequest(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"collection": name,
		"dimension":  dimension,
	}).Info("Created Qdrant collection")
	return nil
}

// DeleteCollection removes a collection. Missing collections are not an error.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	err := c.doRequest(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
	if kberr.IsNotFound(err) {
		return nil
	}
	return err
}

// Upsert writes points into the collection.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		vector := map[string]interface{}{
			denseVectorName: p.Dense,
		}
		if p.Sparse != nil {
			vector[sparseVectorName] = map[string]interface{}{
				"indices": p.Sparse.Indices,
				"values":  p.Sparse.Values,
			}
		}
		wire = append(wire, map[string]interface{}{
			"id":      p.ID,
			"vector":  vector,
			"payload": p.Payload,
		})
	}

	body := map[string]interface{}{"points": wire}
	if err := c.doRequest(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
		if kberr.IsNotFound(err) {
			return kberr.NewNotFound("collection", collection)
		}
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"collection": collection,
		"points":     len(points),
	}).Debug("Upserted points")
	return nil
}

// Search runs a dense similarity search over the named dense vector.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	body := map[string]interface{}{
		"vector": map[string]interface{}{
			"name":   denseVectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		body["score_threshold"] = scoreThreshold
	}

	var result struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &result); err != nil {
		if kberr.IsNotFound(err) {
			return nil, kberr.NewNotFound("collection", collection)
		}
		return nil, err
	}
	return result.Result, nil
}

// HybridQuery runs dense and sparse prefetch branches fused server-side with RRF.
func (c *Client) HybridQuery(ctx context.Context, collection string, dense []float32, sparse *embedding.SparseVector, limit int) ([]ScoredPoint, error) {
	prefetch := []map[string]interface{}{
		{
			"query": dense,
			"using": denseVectorName,
			"limit": limit,
		},
	}
	if sparse != nil && len(sparse.Indices) > 0 {
		prefetch = append(prefetch, map[string]interface{}{
			"query": map[string]interface{}{
				"indices": sparse.Indices,
				"values":  sparse.Values,
			},
			"using": sparseVectorName,
			"limit": limit,
		})
	}

	body := map[string]interface{}{
		"prefetch":     prefetch,
		"query":        map[string]interface{}{"fusion": "rrf"},
		"limit":        limit,
		"with_payload": true,
	}

	var result struct {
		Result struct {
			Points []ScoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/query", body, &result); err != nil {
		if kberr.IsNotFound(err) {
			return nil, kberr.NewNotFound("collection", collection)
		}
		return nil, err
	}
	return result.Result.Points, nil
}

func documentFilter(documentID string) map[string]interface{} {
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{
				"key":   "document_id",
				"match": map[string]interface{}{"value": documentID},
			},
		},
	}
}

// DeleteByDocument removes every point whose payload carries the document ID.
func (c *Client) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	body := map[string]interface{}{
		"filter": documentFilter(documentID),
	}
	err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body, nil)
	if err != nil {
		if kberr.IsNotFound(err) {
			return kberr.NewNotFound("collection", collection)
		}
		return err
	}
	c.logger.WithFields(logrus.Fields{
		"collection":  collection,
		"document_id": documentID,
	}).Debug("Deleted document points")
	return nil
}

// CountByDocument counts points belonging to the document.
func (c *Client) CountByDocument(ctx context.Context, collection, documentID string) (int, error) {
	body := map[string]interface{}{
		"filter": documentFilter(documentID),
		"exact":  true,
	}
	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/count", body, &result); err != nil {
		if kberr.IsNotFound(err) {
			return 0, kberr.NewNotFound("collection", collection)
		}
		return 0, err
	}
	return result.Result.Count, nil
}

// CountPoints counts all points in the collection.
func (c *Client) CountPoints(ctx context.Context, collection string) (int, error) {
	body := map[string]interface{}{"exact": true}
	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/count", body, &result); err != nil {
		if kberr.IsNotFound(err) {
			return 0, kberr.NewNotFound("collection", collection)
		}
		return 0, err
	}
	return result.Result.Count, nil
}

// ScrollPayloads pages through every point payload in the collection.
func (c *Client) ScrollPayloads(ctx context.Context, collection string, batchSize int) ([]map[string]interface{}, error) {
	if batchSize <= 0 {
		batchSize = 256
	}

	var payloads []map[string]interface{}
	var offset interface{}
	for {
		body := map[string]interface{}{
			"limit":        batchSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var result struct {
			Result struct {
				Points []struct {
					Payload map[string]interface{} `json:"payload"`
				} `json:"points"`
				NextPageOffset interface{} `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", body, &result); err != nil {
			if kberr.IsNotFound(err) {
				return nil, kberr.NewNotFound("collection", collection)
			}
			return nil, err
		}

		for _, p := range result.Result.Points {
			payloads = append(payloads, p.Payload)
		}
		if result.Result.NextPageOffset == nil || len(result.Result.Points) == 0 {
			return payloads, nil
		}
		offset = result.Result.NextPageOffset
	}
}

// HealthCheck verifies the Qdrant server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.doRequest(ctx, http.MethodGet, "/collections", nil, nil)
}
