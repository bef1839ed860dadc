package qdrant

import (
	"context"
	"fmt"

	"github.com/zilogo/simba/internal/embedding"
)

// CollectionName builds the tenant-scoped collection name.
func CollectionName(organizationID, collection string) string {
	return fmt.Sprintf("%s_%s", organizationID, collection)
}

// Gateway scopes every storage operation to an organization. Callers hand it
// logical collection names; the raw namespaced name never leaves this package.
type Gateway struct {
	client *Client
}

// NewGateway wraps a client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// EnsureCollection creates the tenant collection if missing.
func (g *Gateway) EnsureCollection(ctx context.Context, orgID, collection string, dimension int) error {
	return g.client.EnsureCollection(ctx, CollectionName(orgID, collection), dimension)
}

// CollectionExists reports whether the tenant collection exists.
func (g *Gateway) CollectionExists(ctx context.Context, orgID, collection string) (bool, error) {
	return g.client.CollectionExists(ctx, CollectionName(orgID, collection))
}

// DeleteCollection removes the tenant collection.
func (g *Gateway) DeleteCollection(ctx context.Context, orgID, collection string) error {
	return g.client.DeleteCollection(ctx, CollectionName(orgID, collection))
}

// Upsert writes points into the tenant collection.
func (g *Gateway) Upsert(ctx context.Context, orgID, collection string, points []Point) error {
	return g.client.Upsert(ctx, CollectionName(orgID, collection), points)
}

// Search runs a dense search against the tenant collection.
func (g *Gateway) Search(ctx context.Context, orgID, collection string, vector []float32, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	return g.client.Search(ctx, CollectionName(orgID, collection), vector, limit, scoreThreshold)
}

// HybridQuery runs a fused dense+sparse search against the tenant collection.
func (g *Gateway) HybridQuery(ctx context.Context, orgID, collection string, dense []float32, sparse *embedding.SparseVector, limit int) ([]ScoredPoint, error) {
	return g.client.HybridQuery(ctx, CollectionName(orgID, collection), dense, sparse, limit)
}

// DeleteByDocument purges a document's points from the tenant collection.
func (g *Gateway) DeleteByDocument(ctx context.Context, orgID, collection, documentID string) error {
	return g.client.DeleteByDocument(ctx, CollectionName(orgID, collection), documentID)
}

// CountByDocument counts a document's points in the tenant collection.
func (g *Gateway) CountByDocument(ctx context.Context, orgID, collection, documentID string) (int, error) {
	return g.client.CountByDocument(ctx, CollectionName(orgID, collection), documentID)
}

// ScrollPayloads pages through every payload in the tenant collection.
func (g *Gateway) ScrollPayloads(ctx context.Context, orgID, collection string, batchSize int) ([]map[string]interface{}, error) {
	return g.client.ScrollPayloads(ctx, CollectionName(orgID, collection), batchSize)
}

// CountPoints counts all points in the tenant collection.
func (g *Gateway) CountPoints(ctx context.Context, orgID, collection string) (int, error) {
	return g.client.CountPoints(ctx, CollectionName(orgID, collection))
}
