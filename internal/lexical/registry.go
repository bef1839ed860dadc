package lexical

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry caches one BM25 index per collection. Process-local and
// ephemeral: rebuilding after a restart is the caller's responsibility.
// Build replaces the index object wholesale, so concurrent readers only
// ever observe a fully built index.
type Registry struct {
	mu        sync.RWMutex
	indices   map[string]*Index
	tokenizer *Tokenizer
	logger    *logrus.Logger
}

// NewRegistry creates an empty registry sharing one tokenizer.
func NewRegistry(tokenizer *Tokenizer, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		indices:   make(map[string]*Index),
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// Build indexes documents for the collection, replacing any prior index.
func (r *Registry) Build(collection string, documents []string) *Index {
	idx := NewIndex(documents, r.tokenizer)

	r.mu.Lock()
	r.indices[collection] = idx
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"collection": collection,
		"documents":  len(documents),
	}).Info("BM25 index built")
	return idx
}

// Get returns the index for the collection, or nil when absent.
func (r *Registry) Get(collection string) *Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indices[collection]
}

// Search runs a BM25 query against the collection's index. A missing
// index is not an error: it yields an empty result set, signaling that
// lexical search is unavailable for the collection.
func (r *Registry) Search(collection, query string, topK int) []Result {
	idx := r.Get(collection)
	if idx == nil {
		r.logger.WithField("collection", collection).Debug("BM25 index not found")
		return []Result{}
	}
	return idx.Search(r.tokenizer.Tokenize(query), topK)
}

// Clear drops the collection's index.
func (r *Registry) Clear(collection string) {
	r.mu.Lock()
	delete(r.indices, collection)
	r.mu.Unlock()
}
