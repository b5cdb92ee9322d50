// Package embedding turns chunk text into fixed-dimension vectors via the
// LLM gateway.
package embedding

import (
	"context"
	"fmt"

	"github.com/supportflow/backend/internal/llm"
)

// maxBatchSize caps inputs per provider call.
const maxBatchSize = 100

type Service struct {
	gateway    llm.Gateway
	model      string
	dimensions int
}

func NewService(gateway llm.Gateway, model string, dimensions int) *Service {
	return &Service{
		gateway:    gateway,
		model:      model,
		dimensions: dimensions,
	}
}

func (s *Service) Dimensions() int { return s.dimensions }

// EmbedTexts embeds all texts in order, splitting into batches of at most
// maxBatchSize. A failed batch fails the whole call: callers get either one
// vector per input or an error, never a partial result.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embed batch [%d:%d]: got %d vectors for %d inputs",
				start, end, len(resp.Embeddings), end-start)
		}
		for i, vec := range resp.Embeddings {
			if len(vec) != s.dimensions {
				return nil, fmt.Errorf("embed batch [%d:%d]: vector %d has %d dimensions, want %d",
					start, end, i, len(vec), s.dimensions)
			}
		}

		out = append(out, resp.Embeddings...)
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
