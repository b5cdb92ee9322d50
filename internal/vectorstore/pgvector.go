package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PgVectorStore struct {
	db         *pgxpool.Pool
	dimensions int
}

func NewPgVectorStore(db *pgxpool.Pool, dimensions int) *PgVectorStore {
	return &PgVectorStore{db: db, dimensions: dimensions}
}

// ReplaceDocument deletes the document's existing chunks and inserts the new
// set in a single transaction. Re-running an ingestion therefore converges
// to the same chunk set with no duplicates.
func (s *PgVectorStore) ReplaceDocument(ctx context.Context, tenantID, documentID uuid.UUID, chunks []Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return fmt.Errorf("chunk %d: %w (got %d, want %d)", c.ChunkIndex, ErrDimensionMismatch, len(c.Embedding), s.dimensions)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"DELETE FROM document_chunks WHERE document_id = $1 AND tenant_id = $2",
		documentID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, tenant_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, documentID, tenantID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) DeleteDocument(ctx context.Context, tenantID, documentID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM document_chunks WHERE document_id = $1 AND tenant_id = $2",
		documentID, tenantID,
	)
	return err
}

// Search returns the topK chunks nearest to query by L2 distance, scoped to
// the tenant. Ties break on document creation time, then chunk index, so
// identical corpora always retrieve in the same order.
func (s *PgVectorStore) Search(ctx context.Context, tenantID uuid.UUID, query []float32, topK int) ([]SearchResult, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w (got %d, want %d)", ErrDimensionMismatch, len(query), s.dimensions)
	}
	if topK <= 0 {
		topK = 5
	}

	embedding := pgvector.NewVector(query)

	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.document_id, c.chunk_index, c.content,
		        c.embedding <-> $1 AS distance
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.tenant_id = $2
		 ORDER BY distance, d.created_at, c.chunk_index
		 LIMIT $3`,
		embedding, tenantID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
