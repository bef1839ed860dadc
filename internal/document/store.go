package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zilogo/simba/internal/kberr"
)

// Store persists document and collection records.
type Store interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	SaveDocument(ctx context.Context, doc *Document) error
	// SetStatus transitions a document. MarkReady-style updates that also
	// touch chunk count go through SaveDocument.
	SetStatus(ctx context.Context, id string, status Status, errorMessage string) error
	GetCollection(ctx context.Context, id string) (*Collection, error)
	SaveCollection(ctx context.Context, c *Collection) error
	// CountReadyDocuments counts ready documents in a collection.
	CountReadyDocuments(ctx context.Context, collectionID string) (int, error)
	ListDocuments(ctx context.Context, collectionID string) ([]*Document, error)
}

// MemStore is an in-memory Store. It backs tests and single-process
// deployments; the interface leaves room for a database-backed store.
type MemStore struct {
	mu          sync.RWMutex
	documents   map[string]*Document
	collections map[string]*Collection
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		documents:   make(map[string]*Document),
		collections: make(map[string]*Collection),
	}
}

func (s *MemStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, kberr.NewNotFound("document", id)
	}
	copied := *doc
	return &copied, nil
}

func (s *MemStore) SaveDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	copied.UpdatedAt = time.Now()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = copied.UpdatedAt
	}
	s.documents[doc.ID] = &copied
	return nil
}

func (s *MemStore) SetStatus(ctx context.Context, id string, status Status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return kberr.NewNotFound("document", id)
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, kberr.NewNotFound("collection", id)
	}
	copied := *c
	return &copied, nil
}

func (s *MemStore) SaveCollection(ctx context.Context, c *Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *c
	s.collections[c.ID] = &copied
	return nil
}

func (s *MemStore) CountReadyDocuments(ctx context.Context, collectionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, doc := range s.documents {
		if doc.CollectionID == collectionID && doc.Status == StatusReady {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) ListDocuments(ctx context.Context, collectionID string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []*Document
	for _, doc := range s.documents {
		if doc.CollectionID == collectionID {
			copied := *doc
			docs = append(docs, &copied)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}
