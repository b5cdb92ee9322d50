// Package vectorstore persists embedded document chunks and serves
// tenant-scoped nearest-neighbor retrieval.
package vectorstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDimensionMismatch is returned when a query or chunk vector does not
// match the store's configured dimensionality.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Chunk is an embedded window of a document. ChunkIndex is its zero-based
// position within the document; Embedding has the store's fixed dimension.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	TenantID   uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// SearchResult is one retrieved chunk with its L2 distance to the query
// (smaller is closer).
type SearchResult struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Distance   float64
}

// Store holds chunk vectors partitioned by tenant. Search never returns
// chunks belonging to another tenant, regardless of similarity.
//
// Result ordering is deterministic: ascending distance, then document
// creation time, then chunk index. ReplaceDocument swaps a document's chunk
// set atomically so readers never observe a mix of old and new chunks.
type Store interface {
	ReplaceDocument(ctx context.Context, tenantID, documentID uuid.UUID, chunks []Chunk) error
	DeleteDocument(ctx context.Context, tenantID, documentID uuid.UUID) error
	Search(ctx context.Context, tenantID uuid.UUID, query []float32, topK int) ([]SearchResult, error)
}
