package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// It mirrors the pgvector semantics: tenant isolation, atomic document
// replacement, and L2 ordering with document-age and chunk-index tie-breaks.
type MemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	chunks     map[uuid.UUID][]Chunk // tenant -> chunks
	docSeq     map[uuid.UUID]int64   // document -> first-seen order
	nextSeq    int64
}

func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		dimensions: dimensions,
		chunks:     make(map[uuid.UUID][]Chunk),
		docSeq:     make(map[uuid.UUID]int64),
	}
}

func (s *MemoryStore) ReplaceDocument(_ context.Context, tenantID, documentID uuid.UUID, chunks []Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return fmt.Errorf("chunk %d: %w (got %d, want %d)", c.ChunkIndex, ErrDimensionMismatch, len(c.Embedding), s.dimensions)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[tenantID][:0:0]
	for _, c := range s.chunks[tenantID] {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}

	if _, ok := s.docSeq[documentID]; !ok {
		s.docSeq[documentID] = s.nextSeq
		s.nextSeq++
	}

	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.DocumentID = documentID
		c.TenantID = tenantID
		kept = append(kept, c)
	}
	s.chunks[tenantID] = kept
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, tenantID, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[tenantID][:0:0]
	for _, c := range s.chunks[tenantID] {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	s.chunks[tenantID] = kept
	return nil
}

func (s *MemoryStore) Search(_ context.Context, tenantID uuid.UUID, query []float32, topK int) ([]SearchResult, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w (got %d, want %d)", ErrDimensionMismatch, len(query), s.dimensions)
	}
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		SearchResult
		docSeq int64
	}

	results := make([]scored, 0, len(s.chunks[tenantID]))
	for _, c := range s.chunks[tenantID] {
		results = append(results, scored{
			SearchResult: SearchResult{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				ChunkIndex: c.ChunkIndex,
				Content:    c.Content,
				Distance:   l2Distance(query, c.Embedding),
			},
			docSeq: s.docSeq[c.DocumentID],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		if results[i].docSeq != results[j].docSeq {
			return results[i].docSeq < results[j].docSeq
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = r.SearchResult
	}
	return out, nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
