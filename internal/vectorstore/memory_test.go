package vectorstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(vals ...float32) []float32 { return vals }

func TestSearchTenantIsolation(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	tenantA := uuid.New()
	tenantB := uuid.New()
	docA := uuid.New()
	docB := uuid.New()

	require.NoError(t, store.ReplaceDocument(ctx, tenantA, docA, []Chunk{
		{ChunkIndex: 0, Content: "tenant A refund policy", Embedding: vec(1, 0)},
	}))
	require.NoError(t, store.ReplaceDocument(ctx, tenantB, docB, []Chunk{
		{ChunkIndex: 0, Content: "tenant B refund policy", Embedding: vec(1, 0)},
	}))

	// Identical query and identical embeddings, but only tenant A's chunk
	// may come back.
	results, err := store.Search(ctx, tenantA, vec(1, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tenant A refund policy", results[0].Content)
	assert.Equal(t, docA, results[0].DocumentID)
}

func TestSearchOrderingAndTopK(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	tenant := uuid.New()
	doc := uuid.New()

	require.NoError(t, store.ReplaceDocument(ctx, tenant, doc, []Chunk{
		{ChunkIndex: 0, Content: "far", Embedding: vec(0, 5)},
		{ChunkIndex: 1, Content: "near", Embedding: vec(1, 0)},
		{ChunkIndex: 2, Content: "mid", Embedding: vec(0, 2)},
	}))

	results, err := store.Search(ctx, tenant, vec(1, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Content)
	assert.Equal(t, "mid", results[1].Content)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestSearchTieBreakDocumentAgeThenChunkIndex(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	tenant := uuid.New()
	older := uuid.New()
	newer := uuid.New()

	// All four chunks are equidistant from the query.
	require.NoError(t, store.ReplaceDocument(ctx, tenant, older, []Chunk{
		{ChunkIndex: 1, Content: "older-1", Embedding: vec(0, 1)},
		{ChunkIndex: 0, Content: "older-0", Embedding: vec(0, 1)},
	}))
	require.NoError(t, store.ReplaceDocument(ctx, tenant, newer, []Chunk{
		{ChunkIndex: 0, Content: "newer-0", Embedding: vec(0, 1)},
		{ChunkIndex: 1, Content: "newer-1", Embedding: vec(0, 1)},
	}))

	results, err := store.Search(ctx, tenant, vec(0, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "older-0", results[0].Content)
	assert.Equal(t, "older-1", results[1].Content)
	assert.Equal(t, "newer-0", results[2].Content)
	assert.Equal(t, "newer-1", results[3].Content)
}

func TestSearchFewerThanTopK(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	tenant := uuid.New()
	require.NoError(t, store.ReplaceDocument(ctx, tenant, uuid.New(), []Chunk{
		{ChunkIndex: 0, Content: "only one", Embedding: vec(1, 1)},
	}))

	results, err := store.Search(ctx, tenant, vec(1, 1), 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchEmptyCorpus(t *testing.T) {
	store := NewMemoryStore(2)

	results, err := store.Search(context.Background(), uuid.New(), vec(1, 1), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDimensionMismatch(t *testing.T) {
	store := NewMemoryStore(4)

	_, err := store.Search(context.Background(), uuid.New(), vec(1, 1), 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReplaceDocumentIsIdempotent(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	tenant := uuid.New()
	doc := uuid.New()

	chunks := []Chunk{
		{ChunkIndex: 0, Content: "v1 chunk 0", Embedding: vec(1, 0)},
		{ChunkIndex: 1, Content: "v1 chunk 1", Embedding: vec(0, 1)},
	}
	require.NoError(t, store.ReplaceDocument(ctx, tenant, doc, chunks))
	require.NoError(t, store.ReplaceDocument(ctx, tenant, doc, chunks))

	results, err := store.Search(ctx, tenant, vec(1, 0), 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "re-ingesting must not duplicate chunks")
}

func TestReplaceDocumentSwapsChunkSet(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	tenant := uuid.New()
	doc := uuid.New()

	require.NoError(t, store.ReplaceDocument(ctx, tenant, doc, []Chunk{
		{ChunkIndex: 0, Content: "old content", Embedding: vec(1, 0)},
		{ChunkIndex: 1, Content: "old extra", Embedding: vec(1, 0)},
		{ChunkIndex: 2, Content: "old more", Embedding: vec(1, 0)},
	}))
	require.NoError(t, store.ReplaceDocument(ctx, tenant, doc, []Chunk{
		{ChunkIndex: 0, Content: "new content", Embedding: vec(1, 0)},
	}))

	results, err := store.Search(ctx, tenant, vec(1, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new content", results[0].Content)
}

func TestReplaceDocumentRejectsBadDimensions(t *testing.T) {
	store := NewMemoryStore(4)

	err := store.ReplaceDocument(context.Background(), uuid.New(), uuid.New(), []Chunk{
		{ChunkIndex: 0, Content: "bad", Embedding: vec(1, 0)},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDeleteDocumentRemovesOnlyItsChunks(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	tenant := uuid.New()
	keep := uuid.New()
	drop := uuid.New()

	require.NoError(t, store.ReplaceDocument(ctx, tenant, keep, []Chunk{
		{ChunkIndex: 0, Content: "keep me", Embedding: vec(1, 0)},
	}))
	require.NoError(t, store.ReplaceDocument(ctx, tenant, drop, []Chunk{
		{ChunkIndex: 0, Content: "drop me", Embedding: vec(1, 0)},
	}))

	require.NoError(t, store.DeleteDocument(ctx, tenant, drop))

	results, err := store.Search(ctx, tenant, vec(1, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep me", results[0].Content)
}
