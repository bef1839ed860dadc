package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilogo/simba/internal/kberr"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusProcessing.Valid())
	assert.True(t, StatusReady.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.False(t, Status("archived").Valid())
}

func TestMemStoreDocumentRoundTrip(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	doc := &Document{
		ID:             "doc-1",
		OrganizationID: "acme",
		CollectionID:   "col-1",
		Name:           "handbook.md",
		Status:         StatusPending,
	}
	require.NoError(t, store.SaveDocument(ctx, doc))

	loaded, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "handbook.md", loaded.Name)
	assert.Equal(t, StatusPending, loaded.Status)
	assert.False(t, loaded.UpdatedAt.IsZero())

	// Mutating the returned copy must not touch the store.
	loaded.Status = StatusReady
	reloaded, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reloaded.Status)
}

func TestMemStoreGetDocumentMissing(t *testing.T) {
	store := NewMemStore()

	_, err := store.GetDocument(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, kberr.IsNotFound(err))
}

func TestMemStoreSetStatus(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "doc-1", Status: StatusProcessing}))
	require.NoError(t, store.SetStatus(ctx, "doc-1", StatusFailed, "parse error: empty text"))

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, doc.Status)
	assert.Equal(t, "parse error: empty text", doc.ErrorMessage)

	err = store.SetStatus(ctx, "missing", StatusReady, "")
	assert.True(t, kberr.IsNotFound(err))
}

func TestMemStoreCountReadyDocuments(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "a", CollectionID: "col-1", Status: StatusReady}))
	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "b", CollectionID: "col-1", Status: StatusFailed}))
	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "c", CollectionID: "col-1", Status: StatusReady}))
	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "d", CollectionID: "col-2", Status: StatusReady}))

	count, err := store.CountReadyDocuments(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemStoreCollections(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.GetCollection(ctx, "col-1")
	assert.True(t, kberr.IsNotFound(err))

	require.NoError(t, store.SaveCollection(ctx, &Collection{ID: "col-1", OrganizationID: "acme", Name: "kb"}))
	c, err := store.GetCollection(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, "kb", c.Name)
}

func TestMemStoreListDocuments(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "a", CollectionID: "col-1"}))
	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "b", CollectionID: "col-1"}))
	require.NoError(t, store.SaveDocument(ctx, &Document{ID: "c", CollectionID: "col-2"}))

	docs, err := store.ListDocuments(ctx, "col-1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
